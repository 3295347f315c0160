// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"sort"
	"sync"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// SessionStoreFactory creates a SessionStore rooted at the given data directory.
type SessionStoreFactory func(dataPath string) (SessionStore, error)

var (
	sessionFactories = map[string]SessionStoreFactory{}
	factoriesMu      sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory SessionStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	sessionFactories[name] = factory
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(sessionFactories))
	for name := range sessionFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewSessionStore creates the session store for the configured backend.
func NewSessionStore(cfg *StorageConfig, dataPath string) (SessionStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := sessionFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, wlerr.Errorf(wlerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
