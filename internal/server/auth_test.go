// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"net/http"
	"testing"

	"github.com/sigil-dev/walletlink/internal/server"
	"github.com/stretchr/testify/assert"
)

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, server.Config{APIToken: "s3cret"})
	h := srv.Handler()

	tests := []struct {
		name    string
		path    string
		headers []string
		want    int
	}{
		{name: "health is public", path: "/health", want: http.StatusOK},
		{name: "missing token", path: "/api/v1/status", want: http.StatusUnauthorized},
		{name: "wrong token", path: "/api/v1/status", headers: []string{"Authorization", "Bearer nope"}, want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/api/v1/status", headers: []string{"Authorization", "Basic s3cret"}, want: http.StatusUnauthorized},
		{name: "valid token", path: "/api/v1/status", headers: []string{"Authorization", "Bearer s3cret"}, want: http.StatusOK},
		{name: "lowercase scheme", path: "/api/v1/status", headers: []string{"Authorization", "bearer s3cret"}, want: http.StatusOK},
		{name: "query token only on events", path: "/api/v1/status?access_token=s3cret", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.path, "", tt.headers...)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuth_UnauthorizedBody(t *testing.T) {
	srv, _ := newTestServer(t, server.Config{APIToken: "s3cret"})

	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
	assert.Equal(t, "server.auth.unauthorized", decode(t, w)["code"])
}

func TestAuth_Disabled(t *testing.T) {
	srv, _ := newTestServer(t, server.Config{})

	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
