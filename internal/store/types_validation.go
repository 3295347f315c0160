// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Valid reports whether the version is a known protocol generation.
func (v ProtocolVersion) Valid() bool {
	switch v {
	case ProtocolV1, ProtocolV2:
		return true
	default:
		return false
	}
}

// Validate checks that the Session has all required fields set correctly.
func (s Session) Validate() error {
	if s.ID == "" {
		return wlerr.New(wlerr.CodeStoreInvalidInput, "session: ID is required")
	}
	if s.Topic == "" {
		return wlerr.New(wlerr.CodeStoreInvalidInput, "session: Topic is required")
	}
	if !s.Version.Valid() {
		return wlerr.Errorf(wlerr.CodeStoreInvalidInput, "session: invalid protocol version %d", s.Version)
	}
	if s.CreatedAt.IsZero() {
		return wlerr.New(wlerr.CodeStoreInvalidInput, "session: CreatedAt is required")
	}
	return nil
}

// ValidateAccounts checks the account list for an approved session: it must
// be non-empty and contain no blank or duplicate entries.
func ValidateAccounts(accounts []string) error {
	if len(accounts) == 0 {
		return wlerr.New(wlerr.CodeStoreInvalidInput, "session: at least one account is required")
	}
	seen := make(map[string]struct{}, len(accounts))
	for i, a := range accounts {
		if a == "" {
			return wlerr.Errorf(wlerr.CodeStoreInvalidInput, "session: accounts[%d] is empty", i)
		}
		if _, dup := seen[a]; dup {
			return wlerr.Errorf(wlerr.CodeStoreInvalidInput, "session: duplicate account %q", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
