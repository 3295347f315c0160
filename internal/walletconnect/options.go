// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"time"

	"github.com/google/uuid"
	"github.com/sigil-dev/walletlink/internal/namespace"
)

// MaxLocalSessionCount is the default retention ceiling enforced by
// InitializeClient.
const MaxLocalSessionCount = 30

// Options tunes a Client.
type Options struct {
	// MaxLocalSessions caps the durable sessions kept across restarts.
	MaxLocalSessions int
	// AddressValidator rejects malformed account addresses before approve and
	// update commands are issued.
	AddressValidator func(address string) error
	// EventBufferSize bounds events held while nobody is subscribed.
	EventBufferSize int

	now   func() time.Time
	newID func() string
}

// Option configures a Client.
type Option func(*Options)

// WithMaxLocalSessions overrides MaxLocalSessionCount.
func WithMaxLocalSessions(n int) Option {
	return func(o *Options) { o.MaxLocalSessions = n }
}

// WithAddressValidator overrides the Algorand address check.
func WithAddressValidator(fn func(string) error) Option {
	return func(o *Options) { o.AddressValidator = fn }
}

// WithEventBufferSize overrides DefaultEventBufferSize.
func WithEventBufferSize(n int) Option {
	return func(o *Options) { o.EventBufferSize = n }
}

// WithClock sets the time source used for session creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.now = now }
}

// WithIDGenerator sets the generator for new session IDs. IDs must parse
// with ParseSessionIdentifier.
func WithIDGenerator(fn func() string) Option {
	return func(o *Options) { o.newID = fn }
}

func defaultOptions() Options {
	return Options{
		MaxLocalSessions: MaxLocalSessionCount,
		AddressValidator: namespace.ValidateAddress,
		EventBufferSize:  DefaultEventBufferSize,
		now:              time.Now,
		newID:            func() string { return uuid.NewString() },
	}
}

// ConnectOption configures a single Connect call.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	fallbackBrowserGroupResponse string
}

// WithFallbackBrowserGroupResponse records the in-app browser group that
// opened the connection so the dApp can be returned to after signing.
func WithFallbackBrowserGroupResponse(group string) ConnectOption {
	return func(o *connectOptions) { o.fallbackBrowserGroupResponse = group }
}
