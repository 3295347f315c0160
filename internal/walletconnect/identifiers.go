// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
)

// SessionIdentifier names a session across the application boundary. The
// zero value is unresolved and every Client operation treats it as a no-op.
type SessionIdentifier struct {
	id string
}

// ParseSessionIdentifier accepts the canonical uuid form handed out by the
// Client. Malformed input yields ok=false.
func ParseSessionIdentifier(raw string) (SessionIdentifier, bool) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return SessionIdentifier{}, false
	}
	return SessionIdentifier{id: u.String()}, true
}

func (s SessionIdentifier) String() string { return s.id }

// Valid reports whether the identifier resolved to a session ID.
func (s SessionIdentifier) Valid() bool { return s.id != "" }

// RequestIdentifier names a peer request within a session.
type RequestIdentifier struct {
	id protocol.RequestID
}

// NewRequestIdentifier wraps a request ID received in a SessionRequestEvent.
func NewRequestIdentifier(id protocol.RequestID) RequestIdentifier {
	return RequestIdentifier{id: id}
}

// ParseRequestIdentifier parses the decimal form of a request ID.
func ParseRequestIdentifier(raw string) (RequestIdentifier, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return RequestIdentifier{}, false
	}
	return RequestIdentifier{id: protocol.RequestID(n)}, true
}

func (r RequestIdentifier) ID() protocol.RequestID { return r.id }

func (r RequestIdentifier) String() string { return strconv.FormatInt(int64(r.id), 10) }

func (r RequestIdentifier) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(r.id), 10), nil
}
