// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package protocol

import (
	"encoding/json"

	"github.com/sigil-dev/walletlink/internal/store"
)

// Event is a peer- or connection-originated notification from an adapter.
// Every event carries the local session ID and the topic it arrived on.
type Event interface {
	Meta() EventMeta
}

// EventMeta tags an event with its session.
type EventMeta struct {
	SessionID string
	Topic     string
}

func (m EventMeta) Meta() EventMeta { return m }

// Proposal is the dApp's session proposal.
type Proposal struct {
	EventMeta
	PeerMeta store.PeerMeta
	ChainID  string
	Methods  []string
	Events   []string
}

// Approved reports that an approval was delivered. Topic is the settled
// session topic, which for v2 differs from the pairing topic.
type Approved struct {
	EventMeta
	PeerMeta store.PeerMeta
	ChainID  string
	Accounts []string
}

// Update is a session update sent by the peer.
type Update struct {
	EventMeta
	Approved bool
	ChainID  string
	Accounts []string
}

// Request is a peer method call awaiting a response.
type Request struct {
	EventMeta
	ID     RequestID
	Method string
	Params json.RawMessage
	// ChainID is set when the request targets a specific chain.
	ChainID string
}

// Connected reports that the relay connection is up.
type Connected struct {
	EventMeta
}

// Disconnected reports that the relay connection dropped. DeletionNeeded is
// set when the peer or relay removed the session.
type Disconnected struct {
	EventMeta
	DeletionNeeded bool
	Err            error
}

// Error is a protocol or transport failure that does not end the session.
type Error struct {
	EventMeta
	Err error
}

// Killed reports that the peer ended the session.
type Killed struct {
	EventMeta
}
