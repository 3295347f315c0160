// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Help(t *testing.T) {
	out, err := executeCmd(t, nil, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"walletlink", "start", "status", "session", "connect", "request", "events", "secret", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCmd(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "walletlink dev")
}

func TestStartCommand_MissingConfigFile(t *testing.T) {
	_, err := executeCmd(t, nil, "start", "--config", "/nonexistent/path.yaml")
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeConfigLoadReadFailure))
}

func TestStartCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o600))

	useSecretStore(t, newMockSecretStore())
	_, err := executeCmd(t, nil, "start", "--config", path)
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeConfigValidateInvalidValue))
}

func TestInitViper_BootstrapsDefaultConfig(t *testing.T) {
	_, err := executeCmd(t, nil, "version")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".config", "walletlink", "walletlink.yaml"))
	assert.Equal(t, "sqlite", viper.GetString("storage.backend"))
}

func TestInitViper_ConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "walletlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networking:\n  listen: 127.0.0.1:9999\n"), 0o600))

	_, err := executeCmd(t, nil, "--config", path, "--data-dir", dir, "--verbose", "version")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", viper.GetString("networking.listen"))
	assert.Equal(t, dir, viper.GetString("data_dir"))
	assert.True(t, viper.GetBool("verbose"))
}
