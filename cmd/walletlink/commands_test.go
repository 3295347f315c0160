// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionID = "6f9c2a4e-3b1d-4c8e-9a7f-2d5e8b1c0a34"

// recordedRequest is one request seen by the fake bridge.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

// fakeBridge serves canned responses and records every request.
type fakeBridge struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter)
}

func newFakeBridge(t *testing.T) (*fakeBridge, *httptest.Server) {
	t.Helper()
	fb := &fakeBridge{routes: make(map[string]func(http.ResponseWriter))}
	ts := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(ts.Close)
	return fb, ts
}

func (fb *fakeBridge) handle(method, path string, fn func(w http.ResponseWriter)) {
	fb.routes[method+" "+path] = fn
}

func (fb *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	fb.mu.Lock()
	fb.requests = append(fb.requests, rec)
	fb.mu.Unlock()

	if fn, ok := fb.routes[r.Method+" "+r.URL.Path]; ok {
		fn(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, `{"status":"accepted"}`)
}

func (fb *fakeBridge) last(t *testing.T) recordedRequest {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests)
	return fb.requests[len(fb.requests)-1]
}

func writeJSON(body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

const sessionsJSON = `{"sessions":[{"id":"` + testSessionID + `","version":2,"topic":"t1",` +
	`"peer_meta":{"name":"Example dApp","url":"https://dapp.example"},"chain_id":"416001",` +
	`"accounts":["ADDR1","ADDR2"],"is_subscribed":true,"is_connected":true,"created_at":"2026-01-02T03:04:05Z"}]}`

func TestStatusCommand(t *testing.T) {
	fb, ts := newFakeBridge(t)
	fb.handle(http.MethodGet, "/api/v1/status", writeJSON(`{"status":"ok","sessions":3,"disconnected":1}`))

	out, err := executeCmd(t, nil, "status", "--address", ts.URL, "--token", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (3 sessions, 1 disconnected)")
	assert.Equal(t, "Bearer s3cret", fb.last(t).Auth)
}

func TestStatusCommand_NotRunning(t *testing.T) {
	out, err := executeCmd(t, nil, "status", "--address", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "is not running")
}

func TestStatusCommand_KeyringToken(t *testing.T) {
	store := newMockSecretStore()
	store.data["api-token"] = "from-keyring"
	useSecretStore(t, store)

	fb, ts := newFakeBridge(t)
	fb.handle(http.MethodGet, "/api/v1/status", writeJSON(`{"status":"ok"}`))

	_, err := executeCmd(t, nil, "status", "--address", ts.URL, "--token", "keyring://walletlink/api-token")
	require.NoError(t, err)
	assert.Equal(t, "Bearer from-keyring", fb.last(t).Auth)
}

func TestSessionList(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "table",
			contains: []string{"ID", "PEER", testSessionID, "Example dApp", "416001", "v2"},
		},
		{
			name:     "json",
			args:     []string{"-o", "json"},
			contains: []string{`"id": "` + testSessionID + `"`, `"chain_id": "416001"`},
		},
		{
			name:     "yaml",
			args:     []string{"-o", "yaml"},
			contains: []string{"- id: " + testSessionID, "name: Example dApp", "connected: true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, ts := newFakeBridge(t)
			fb.handle(http.MethodGet, "/api/v1/sessions", writeJSON(sessionsJSON))

			args := append([]string{"session", "list", "--address", ts.URL}, tt.args...)
			out, err := executeCmd(t, nil, args...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestSessionList_Filters(t *testing.T) {
	fb, ts := newFakeBridge(t)
	fb.handle(http.MethodGet, "/api/v1/sessions", writeJSON(`{"sessions":[]}`))

	out, err := executeCmd(t, nil, "session", "list", "--address", ts.URL, "--account", "ADDR1", "--disconnected")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
	assert.Equal(t, "address=ADDR1&disconnected=true", fb.last(t).Query)
}

func TestSessionList_BadFormat(t *testing.T) {
	_, err := executeCmd(t, nil, "session", "list", "-o", "xml")
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeCLIInputInvalid))
}

func TestSessionShow(t *testing.T) {
	fb, ts := newFakeBridge(t)
	fb.handle(http.MethodGet, "/api/v1/sessions/"+testSessionID, writeJSON(
		`{"id":"`+testSessionID+`","version":1,"accounts":["ADDR1"],"has_ongoing_request":true,"retry_count":2}`))

	out, err := executeCmd(t, nil, "session", "show", testSessionID, "--address", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "id: "+testSessionID)
	assert.Contains(t, out, "ongoing_request: true")
	assert.Contains(t, out, "retry_count: 2")
}

func TestSessionShow_NotFound(t *testing.T) {
	fb, ts := newFakeBridge(t)
	fb.handle(http.MethodGet, "/api/v1/sessions/"+testSessionID, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"title":"Not Found","status":404,"detail":"session not found"}`)
	})

	_, err := executeCmd(t, nil, "session", "show", testSessionID, "--address", ts.URL)
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeCLIRequestFailure))
	assert.Contains(t, err.Error(), "status 404: session not found")
}

func TestSessionCommands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		method   string
		path     string
		body     map[string]any
		contains string
	}{
		{
			name:     "approve",
			args:     []string{"session", "approve", testSessionID, "--accounts", "ADDR1,ADDR2", "--chain", "416002"},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/" + testSessionID + "/approve",
			body:     map[string]any{"accounts": []any{"ADDR1", "ADDR2"}, "chain_id": "416002"},
			contains: "Approval of " + testSessionID + " submitted",
		},
		{
			name:     "reject",
			args:     []string{"session", "reject", testSessionID},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/" + testSessionID + "/reject",
			contains: "Rejection of " + testSessionID + " submitted",
		},
		{
			name:     "kill",
			args:     []string{"session", "kill", testSessionID},
			method:   http.MethodDelete,
			path:     "/api/v1/sessions/" + testSessionID,
			contains: "Kill of " + testSessionID + " submitted",
		},
		{
			name:     "disconnect all",
			args:     []string{"session", "disconnect-all"},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/disconnect",
			contains: "Disconnect of all sessions submitted",
		},
		{
			name:     "reconnect all",
			args:     []string{"session", "reconnect-all"},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/reconnect",
			contains: "Reconnect of disconnected sessions submitted",
		},
		{
			name:     "connect",
			args:     []string{"connect", "wc:abc@2?relay-protocol=irn&symKey=00", "--fallback-browser-group", "pera"},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/connect",
			body:     map[string]any{"uri": "wc:abc@2?relay-protocol=irn&symKey=00", "fallback_browser_group_response": "pera"},
			contains: "Connection submitted",
		},
		{
			name:     "approve request",
			args:     []string{"request", "approve", testSessionID, "42", "--item", "", "--item", "c2lnbmVk"},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/" + testSessionID + "/requests/42/approve",
			body:     map[string]any{"kind": "signed_transactions", "items": []any{"", "c2lnbmVk"}},
			contains: "Response to request 42 submitted",
		},
		{
			name:     "reject request",
			args:     []string{"request", "reject", testSessionID, "42", "--code", "4100", "--message", "nope"},
			method:   http.MethodPost,
			path:     "/api/v1/sessions/" + testSessionID + "/requests/42/reject",
			body:     map[string]any{"code": float64(4100), "message": "nope"},
			contains: "Rejection of request 42 submitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, ts := newFakeBridge(t)

			out, err := executeCmd(t, nil, append(tt.args, "--address", ts.URL)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.contains)

			got := fb.last(t)
			assert.Equal(t, tt.method, got.Method)
			assert.Equal(t, tt.path, got.Path)
			if tt.body != nil {
				assert.Equal(t, tt.body, got.Body)
			} else {
				assert.Empty(t, got.Body)
			}
		})
	}
}

func TestSessionCommands_InputValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "approve without accounts", args: []string{"session", "approve", testSessionID}},
		{name: "request without items", args: []string{"request", "approve", testSessionID, "1"}},
		{name: "request with unknown kind", args: []string{"request", "approve", testSessionID, "1", "--kind", "raw", "--item", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCmd(t, nil, tt.args...)
			require.Error(t, err)
			assert.True(t, wlerr.HasCode(err, wlerr.CodeCLIInputInvalid))
		})
	}
}

func TestSessionCommand_NotRunning(t *testing.T) {
	_, err := executeCmd(t, nil, "session", "kill", testSessionID, "--address", "127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeCLIGatewayNotRunning))
}

func TestEventsCommand(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ": connected\n\n")
		_, _ = io.WriteString(w, "event: session_proposal\ndata: {\"session_id\":\"a\"}\n\n")
		_, _ = io.WriteString(w, ": ping\n\n")
		_, _ = io.WriteString(w, "event: session_delete\ndata: {\"session_id\":\"a\"}\n\n")
	}))
	t.Cleanup(ts.Close)

	out, err := executeCmd(t, nil, "events", "--address", ts.URL, "--session", testSessionID)
	require.NoError(t, err)
	assert.Equal(t, "session_id="+testSessionID, gotQuery)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `session_proposal {"session_id":"a"}`, lines[0])
	assert.Equal(t, `session_delete {"session_id":"a"}`, lines[1])
}

func TestEventsCommand_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"missing or invalid bearer token"}`)
	}))
	t.Cleanup(ts.Close)

	_, err := executeCmd(t, nil, "events", "--address", ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestCopyEvents(t *testing.T) {
	in := "data: plain\n\n" +
		"event: multi\ndata: one\ndata: two\n\n" +
		"event: empty\n\n"

	var out strings.Builder
	require.NoError(t, copyEvents(&out, strings.NewReader(in)))
	assert.Equal(t, "message plain\nmulti one\ntwo\n", out.String())
}
