// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package protocol defines the contract between the session coordinator and
// the per-generation WalletConnect adapters. Adapters translate library
// callbacks into Event values and coordinator commands into library calls;
// nothing above this package knows which protocol generation it talks to.
package protocol

import (
	"context"

	"github.com/sigil-dev/walletlink/internal/store"
)

// Version is the WalletConnect protocol generation.
type Version = store.ProtocolVersion

const (
	V1 = store.ProtocolV1
	V2 = store.ProtocolV2
)

// RequestID identifies a peer request within a session.
type RequestID int64

// Adapter opens and restores sessions for one protocol generation.
type Adapter interface {
	Version() Version
	// IsValidSessionURL reports whether uri belongs to this adapter. Open is
	// only called with URIs that pass this check.
	IsValidSessionURL(uri string) bool
	// Open creates a handle for a freshly scanned connection URI. The
	// handshake is not started until Handle.Connect.
	Open(ctx context.Context, sessionID, uri string, sink Sink) (Handle, error)
	// Restore rebuilds a handle for a persisted session.
	Restore(ctx context.Context, s *store.Session, sink Sink) (Handle, error)
}

// Handle is a live connection to one peer.
type Handle interface {
	SessionID() string
	// Topic may change once, when a v2 proposal settles on its session topic.
	Topic() string
	Version() Version

	Connect(ctx context.Context) error
	Approve(ctx context.Context, accounts []string, chainID string) error
	Update(ctx context.Context, accounts []string, chainID string) error
	Reject(ctx context.Context) error
	Kill(ctx context.Context) error
	Disconnect(ctx context.Context) error

	ApproveRequest(ctx context.Context, id RequestID, payload Payload) error
	RejectRequest(ctx context.Context, id RequestID, resp ErrorResponse) error

	// Close releases local resources without notifying the peer.
	Close() error
}

// Sink receives adapter events. Emit must not block.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }
