// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

func TestWarnInsecurePermissions(t *testing.T) {
	tests := []struct {
		name       string
		perm       os.FileMode
		expectWarn bool
	}{
		{name: "owner only 0600", perm: 0o600},
		{name: "read only 0400", perm: 0o400},
		{name: "group readable 0640", perm: 0o640, expectWarn: true},
		{name: "other readable 0604", perm: 0o604, expectWarn: true},
		{name: "world readable 0644", perm: 0o644, expectWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "walletlink.yaml")
			require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: memory\n"), 0o600))
			require.NoError(t, os.Chmod(path, tt.perm))

			buf := captureLogs(t)
			WarnInsecurePermissions(path)

			if tt.expectWarn {
				assert.Contains(t, buf.String(), "insecure permissions")
				assert.Contains(t, buf.String(), path)
				assert.Contains(t, buf.String(), "recommended=0600")
			} else {
				assert.NotContains(t, buf.String(), "insecure permissions")
			}
		})
	}
}

func TestWarnInsecurePermissions_Directory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.Chmod(dir, 0o755))

	buf := captureLogs(t)
	WarnInsecurePermissions(dir)

	assert.Contains(t, buf.String(), "recommended=0700")
}

func TestWarnInsecurePermissions_EmptyPath(t *testing.T) {
	buf := captureLogs(t)
	WarnInsecurePermissions("")
	assert.Empty(t, buf.String())
}

func TestWarnInsecurePermissions_MissingFile(t *testing.T) {
	buf := captureLogs(t)
	WarnInsecurePermissions(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Contains(t, buf.String(), "could not stat")
	assert.NotContains(t, buf.String(), "insecure permissions")
}
