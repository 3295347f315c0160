// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/sigil-dev/walletlink/internal/secrets"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/viper"
)

// executeCmd runs the root command with args against a fresh global Viper and
// an empty home directory, so no user config is discovered.
func executeCmd(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	logger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(logger) })

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// useSecretStore swaps secretStoreFactory for the duration of the test.
func useSecretStore(t *testing.T, store *mockSecretStore) {
	t.Helper()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = orig })
}

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // key → value (service is always "walletlink")
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", wlerr.Errorf(wlerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return wlerr.Errorf(wlerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
