// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// RateLimitConfig limits session command submissions per client IP. Queries
// and the event stream are never limited.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained command rate per IP. Zero disables
	// limiting.
	RequestsPerSecond float64
	// Burst is the number of commands accepted back to back.
	Burst int
}

// Validate checks that the RateLimitConfig is usable.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return wlerr.Errorf(wlerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return wlerr.Errorf(wlerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	return nil
}

// idleBucketTTL is how long an untouched bucket is kept. A bucket idle that
// long has refilled completely, so dropping it changes nothing.
const idleBucketTTL = 10 * time.Minute

// commandLimiter is a token bucket per client IP.
type commandLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

func newCommandLimiter(cfg RateLimitConfig, now func() time.Time) *commandLimiter {
	if now == nil {
		now = time.Now
	}
	return &commandLimiter{
		cfg:       cfg,
		now:       now,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
	}
}

// allow takes one token from ip's bucket.
func (l *commandLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleBucketTTL {
		l.sweep(now)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst), refilled: now}
		l.buckets[ip] = b
	}

	b.tokens += now.Sub(b.refilled).Seconds() * l.cfg.RequestsPerSecond
	if burst := float64(l.cfg.Burst); b.tokens > burst {
		b.tokens = burst
	}
	b.refilled = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *commandLimiter) sweep(now time.Time) {
	for ip, b := range l.buckets {
		if now.Sub(b.refilled) > idleBucketTTL {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

func (l *commandLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// isCommand reports whether r submits a session command.
func isCommand(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// rateLimitMiddleware applies l to session commands. A nil limiter passes
// everything through.
func rateLimitMiddleware(l *commandLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isCommand(r) {
				next.ServeHTTP(w, r)
				return
			}

			// Key by IP, not by connection: ephemeral ports would each get a
			// fresh bucket.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !l.allow(ip) {
				slog.Warn("command rate limit exceeded", "ip", ip, "path", r.URL.Path)
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(http.StatusTooManyRequests),
		"status": http.StatusTooManyRequests,
		"detail": "too many session commands, retry shortly",
		"code":   wlerr.CodeServerRateLimited,
	})
}
