// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "context"

// SessionStore persists approved WalletConnect sessions and the account
// addresses linked to them. Implementations MUST be safe for concurrent use.
//
// GetByID returns an error satisfying errors.IsNotFound (pkg/errors) when no
// row exists. Mutations on a missing row are no-ops rather than errors, so
// teardown paths stay idempotent.
type SessionStore interface {
	// Insert writes a new session row together with its account links.
	Insert(ctx context.Context, session *Session, accounts []string) error
	GetByID(ctx context.Context, id string) (*Session, error)
	GetAll(ctx context.Context) ([]*Session, error)
	GetByAccountAddress(ctx context.Context, address string) ([]*Session, error)
	GetAllDisconnected(ctx context.Context) ([]*Session, error)
	DeleteByID(ctx context.Context, id string) error

	// InsertAccountLinks links additional addresses to an existing session.
	// Already-linked addresses are ignored.
	InsertAccountLinks(ctx context.Context, sessionID string, accounts []string) error
	DeleteAccountLink(ctx context.Context, sessionID, address string) error

	SetConnected(ctx context.Context, id string) error
	SetDisconnected(ctx context.Context, id string) error
	SetAllDisconnected(ctx context.Context) error
	SetSubscribed(ctx context.Context, id string) error

	CountAll(ctx context.Context) (int, error)
	// GetOldestByCreation returns up to n sessions ordered by CreatedAt ascending.
	GetOldestByCreation(ctx context.Context, n int) ([]*Session, error)

	Close() error
}
