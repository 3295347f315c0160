// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package v2adapter

import (
	"context"
	"encoding/json"

	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
)

// SignClient is the part of a v2 sign client the adapter drives. The relay
// connection and its crypto live behind it.
type SignClient interface {
	// SetHandler registers the receiver of relay events.
	SetHandler(h Handler)

	Pair(ctx context.Context, uri string) error
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error

	// ApproveSession settles a proposal and returns the session topic.
	ApproveSession(ctx context.Context, proposalID int64, namespaces map[string]namespace.Session) (string, error)
	RejectSession(ctx context.Context, proposalID int64, reason protocol.ErrorResponse) error
	UpdateSession(ctx context.Context, topic string, namespaces map[string]namespace.Session) error
	Disconnect(ctx context.Context, topic string, reason protocol.ErrorResponse) error

	Respond(ctx context.Context, topic string, id int64, result json.RawMessage) error
	RespondError(ctx context.Context, topic string, id int64, resp protocol.ErrorResponse) error
}

// Handler receives relay events from the SignClient.
type Handler interface {
	OnSessionProposal(p SessionProposal)
	OnSessionRequest(r SessionRequest)
	OnSessionDelete(topic string)
	OnConnectionStateChange(connected bool)
	OnError(topic string, err error)
}

// SessionProposal is a proposal delivered on a pairing topic.
type SessionProposal struct {
	ID           int64
	PairingTopic string
	Proposer     store.PeerMeta
	Namespaces   map[string]namespace.Proposal
}

// SessionRequest is a method call on a settled session topic.
type SessionRequest struct {
	ID      int64
	Topic   string
	ChainID string
	Method  string
	Params  json.RawMessage
}
