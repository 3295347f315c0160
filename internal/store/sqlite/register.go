// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/walletlink/internal/store"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// DatabaseFileName is the session database created under the data directory.
const DatabaseFileName = "walletconnect_sessions.db"

func init() {
	store.RegisterBackend("sqlite", newSessionStore)
}

func newSessionStore(dataPath string) (store.SessionStore, error) {
	if dataPath != "" {
		if err := os.MkdirAll(dataPath, 0o700); err != nil {
			return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "creating data directory %s", dataPath)
		}
	}

	ss, err := NewSessionStore(filepath.Join(dataPath, DatabaseFileName))
	if err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "creating session store")
	}
	return ss, nil
}
