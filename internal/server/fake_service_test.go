// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sigil-dev/walletlink/internal/walletconnect"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

const (
	sessionA = "6f1c6a02-8d7e-4c41-9a57-2f0d3f4b7e10"
	sessionB = "0b9a4d2e-51f3-4c7a-8e62-7d1b2c3a4f50"
	addrA    = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"
)

// fakeSessions records commands and serves canned sessions.
type fakeSessions struct {
	mu       sync.Mutex
	calls    []string
	payloads []protocol.Payload
	rejects  []protocol.ErrorResponse
	fallback string

	sessions map[string]*walletconnect.Session
	ongoing  map[string]bool
	listErr  error

	subscribed chan walletconnect.Listener
	listeners  []walletconnect.Listener
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: map[string]*walletconnect.Session{
			sessionA: {ID: sessionA, Topic: "topic-a", Accounts: []string{addrA}, IsConnected: true},
			sessionB: {ID: sessionB, Topic: "topic-b", Accounts: []string{}, IsConnected: false},
		},
		ongoing:    map[string]bool{},
		subscribed: make(chan walletconnect.Listener, 4),
	}
}

func (f *fakeSessions) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSessions) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSessions) IsValidSessionURL(uri string) bool {
	return strings.HasPrefix(uri, "wc:")
}

func (f *fakeSessions) Connect(_ context.Context, uri string, opts ...walletconnect.ConnectOption) {
	f.record("connect %s opts=%d", uri, len(opts))
}

func (f *fakeSessions) ApproveSession(_ context.Context, id walletconnect.SessionIdentifier, accounts []string, chainID string) {
	f.record("approve %s %s %s", id, strings.Join(accounts, ","), chainID)
}

func (f *fakeSessions) RejectSession(_ context.Context, id walletconnect.SessionIdentifier) {
	f.record("reject %s", id)
}

func (f *fakeSessions) UpdateSession(_ context.Context, id walletconnect.SessionIdentifier, accounts []string, chainID, removed string) {
	f.record("update %s %s %s removed=%s", id, strings.Join(accounts, ","), chainID, removed)
}

func (f *fakeSessions) KillSession(_ context.Context, id walletconnect.SessionIdentifier) {
	f.record("kill %s", id)
}

func (f *fakeSessions) ApproveRequest(_ context.Context, id walletconnect.SessionIdentifier, reqID walletconnect.RequestIdentifier, payload protocol.Payload) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	f.record("approve_request %s %s", id, reqID)
}

func (f *fakeSessions) RejectRequest(_ context.Context, id walletconnect.SessionIdentifier, reqID walletconnect.RequestIdentifier, resp protocol.ErrorResponse) {
	f.mu.Lock()
	f.rejects = append(f.rejects, resp)
	f.mu.Unlock()
	f.record("reject_request %s %s", id, reqID)
}

func (f *fakeSessions) DisconnectFromAllSessions(context.Context) {
	f.record("disconnect_all")
}

func (f *fakeSessions) ConnectToDisconnectedSessions(context.Context) {
	f.record("reconnect_all")
}

func (f *fakeSessions) GetSession(_ context.Context, id walletconnect.SessionIdentifier) (*walletconnect.Session, error) {
	s, ok := f.sessions[id.String()]
	if !ok {
		return nil, wlerr.New(wlerr.CodeStoreSessionGetNotFound, "session not found", wlerr.FieldSessionID(id.String()))
	}
	return s, nil
}

func (f *fakeSessions) GetAllSessions(context.Context) ([]*walletconnect.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []*walletconnect.Session{f.sessions[sessionA], f.sessions[sessionB]}, nil
}

func (f *fakeSessions) GetSessionsByAccountAddress(_ context.Context, address string) ([]*walletconnect.Session, error) {
	var out []*walletconnect.Session
	for _, id := range []string{sessionA, sessionB} {
		for _, a := range f.sessions[id].Accounts {
			if a == address {
				out = append(out, f.sessions[id])
			}
		}
	}
	return out, nil
}

func (f *fakeSessions) GetDisconnectedSessions(context.Context) ([]*walletconnect.Session, error) {
	return []*walletconnect.Session{f.sessions[sessionB]}, nil
}

func (f *fakeSessions) HasOngoingRequest(id walletconnect.SessionIdentifier) bool {
	return f.ongoing[id.String()]
}

func (f *fakeSessions) GetSessionRetryCount(walletconnect.SessionIdentifier) int {
	return 2
}

func (f *fakeSessions) Subscribe(l walletconnect.Listener) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
	f.subscribed <- l
	return func() {}
}
