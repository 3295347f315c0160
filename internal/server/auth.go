// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// eventsPath accepts the token as an access_token query parameter because
// browser EventSource clients cannot set headers.
const eventsPath = "/api/v1/events"

// authMiddleware requires token as a bearer credential on /api routes. An
// empty token disables authentication.
func authMiddleware(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				slog.Debug("auth disabled: passing request through",
					"method", r.Method,
					"path", r.URL.Path,
				)
				next.ServeHTTP(w, r)
			})
		}
	}

	want := sha256.Sum256([]byte(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			got := sha256.Sum256([]byte(credential(r)))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				slog.Warn("rejected unauthenticated request",
					"method", r.Method,
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	if r.URL.Path == eventsPath {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="walletlink"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(http.StatusUnauthorized),
		"status": http.StatusUnauthorized,
		"detail": "missing or invalid bearer token",
		"code":   wlerr.CodeServerAuthUnauthorized,
	})
}
