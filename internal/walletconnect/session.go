// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"time"

	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
)

// Session is the application-facing view of an approved session: the durable
// row, its session namespaces and live connection state.
type Session struct {
	ID                           string                       `json:"id"`
	Version                      protocol.Version             `json:"version"`
	Topic                        string                       `json:"topic"`
	PeerMeta                     store.PeerMeta               `json:"peer_meta"`
	ChainID                      string                       `json:"chain_id"`
	Accounts                     []string                     `json:"accounts"`
	Namespaces                   map[string]namespace.Session `json:"namespaces"`
	FallbackBrowserGroupResponse string                       `json:"fallback_browser_group_response,omitempty"`
	IsSubscribed                 bool                         `json:"is_subscribed"`
	IsConnected                  bool                         `json:"is_connected"`
	CreatedAt                    time.Time                    `json:"created_at"`
}

// Identifier returns the session's identifier.
func (s *Session) Identifier() SessionIdentifier {
	return SessionIdentifier{id: s.ID}
}

// project builds the view for row. Namespaces are recomputed from the current
// account list; live reports whether a handle is registered for the session.
func project(row *store.Session, live bool) *Session {
	accounts := append([]string(nil), row.Accounts...)
	return &Session{
		ID:                           row.ID,
		Version:                      row.Version,
		Topic:                        row.Topic,
		PeerMeta:                     row.PeerMeta,
		ChainID:                      row.ChainID,
		Accounts:                     accounts,
		Namespaces:                   namespace.BuildSession(row.ChainID, accounts, nil, nil),
		FallbackBrowserGroupResponse: row.FallbackBrowserGroupResponse,
		IsSubscribed:                 row.IsSubscribed,
		IsConnected:                  row.IsConnected && live,
		CreatedAt:                    row.CreatedAt,
	}
}
