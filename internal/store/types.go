// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "time"

// ProtocolVersion identifies the WalletConnect protocol generation a session
// was negotiated with.
type ProtocolVersion int

const (
	ProtocolV1 ProtocolVersion = 1
	ProtocolV2 ProtocolVersion = 2
)

// PeerMeta describes the dApp on the other end of a session.
type PeerMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Session is the durable record of an approved wallet/dApp session.
//
// Accounts is populated from the account-link table on read; callers must not
// rely on it being written by Insert (pass accounts separately).
type Session struct {
	ID       string
	Version  ProtocolVersion
	Topic    string
	PeerMeta PeerMeta
	// ChainID is the negotiated chain identifier. Legacy numeric chain ids are
	// stored in decimal form.
	ChainID  string
	Accounts []string

	// FallbackBrowserGroupResponse routes in-app-browser dApps back to the
	// browser group that opened them.
	FallbackBrowserGroupResponse string

	IsSubscribed bool
	IsConnected  bool
	CreatedAt    time.Time
}

// HasAccount reports whether address is linked to the session.
func (s *Session) HasAccount(address string) bool {
	for _, a := range s.Accounts {
		if a == address {
			return true
		}
	}
	return false
}
