// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"testing"

	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/store/memory"
	"github.com/sigil-dev/walletlink/internal/store/sqlite"
)

// Compile-time interface satisfaction checks.
func TestSessionStoreImplementations(t *testing.T) {
	var _ store.SessionStore = (*sqlite.SessionStore)(nil)
	var _ store.SessionStore = (*memory.SessionStore)(nil)
}
