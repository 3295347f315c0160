// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigil-dev/walletlink/internal/config"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walletlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:18790", cfg.Networking.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 30, cfg.Sessions.MaxLocalSessions)
	assert.Equal(t, "walletlink", cfg.WalletConnect.ClientMeta.Name)
	assert.False(t, cfg.WalletConnect.KeyringSessionKeys)
	assert.InDelta(t, 5.0, cfg.Server.CommandRateLimit.RequestsPerSecond, 1e-9)
	assert.Equal(t, 20, cfg.Server.CommandRateLimit.Burst)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
networking:
  listen: "0.0.0.0:9999"
  cors_origins:
    - "http://localhost:5173"
storage:
  backend: memory
sessions:
  max_local_sessions: 5
walletconnect:
  keyring_session_keys: true
  client_meta:
    name: Pera
    url: https://perawallet.app
    icons:
      - https://perawallet.app/icon.png
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Networking.Listen)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Networking.CORSOrigins)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Sessions.MaxLocalSessions)
	assert.True(t, cfg.WalletConnect.KeyringSessionKeys)

	meta := cfg.WalletConnect.ClientMeta.PeerMeta()
	assert.Equal(t, "Pera", meta.Name)
	assert.Equal(t, "https://perawallet.app", meta.URL)
	assert.Equal(t, []string{"https://perawallet.app/icon.png"}, meta.Icons)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WALLETLINK_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("WALLETLINK_STORAGE_BACKEND", "memory")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestLoad_EmbeddedDefaultIsValid(t *testing.T) {
	path := writeConfig(t, string(config.DefaultConfigYAML))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 30, cfg.Sessions.MaxLocalSessions)
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("sessions.max_local_sessions", 12)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Sessions.MaxLocalSessions)
}

func validConfig() *config.Config {
	return &config.Config{
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:18790"},
		Storage:    config.StorageConfig{Backend: "sqlite"},
		Sessions:   config.SessionsConfig{MaxLocalSessions: 30},
		WalletConnect: config.WalletConnectConfig{
			ClientMeta: config.ClientMetaConfig{Name: "walletlink"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{
			name:    "empty listen",
			mutate:  func(c *config.Config) { c.Networking.Listen = "" },
			wantErr: "networking.listen must not be empty",
		},
		{
			name:    "listen without port",
			mutate:  func(c *config.Config) { c.Networking.Listen = "localhost" },
			wantErr: "valid host:port",
		},
		{
			name:    "non numeric port",
			mutate:  func(c *config.Config) { c.Networking.Listen = "localhost:http" },
			wantErr: "port must be a number",
		},
		{
			name:    "port out of range",
			mutate:  func(c *config.Config) { c.Networking.Listen = "localhost:70000" },
			wantErr: "between 1 and 65535",
		},
		{
			name:    "bad cors origin",
			mutate:  func(c *config.Config) { c.Networking.CORSOrigins = []string{"localhost:3000"} },
			wantErr: "cors_origins[0]",
		},
		{
			name:    "negative command rate",
			mutate:  func(c *config.Config) { c.Server.CommandRateLimit.RequestsPerSecond = -1 },
			wantErr: "requests_per_second must not be negative",
		},
		{
			name:    "command rate without burst",
			mutate:  func(c *config.Config) { c.Server.CommandRateLimit = config.RateLimitConfig{RequestsPerSecond: 2} },
			wantErr: "command_rate_limit.burst",
		},
		{
			name:   "rate limit disabled",
			mutate: func(c *config.Config) { c.Server.CommandRateLimit = config.RateLimitConfig{} },
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Storage.Backend = "redis" },
			wantErr: "storage.backend",
		},
		{
			name:    "zero retention",
			mutate:  func(c *config.Config) { c.Sessions.MaxLocalSessions = 0 },
			wantErr: "max_local_sessions",
		},
		{
			name:    "missing client name",
			mutate:  func(c *config.Config) { c.WalletConnect.ClientMeta.Name = "" },
			wantErr: "client_meta.name",
		},
		{
			name:    "bad client url",
			mutate:  func(c *config.Config) { c.WalletConnect.ClientMeta.URL = "ftp://wallet" },
			wantErr: "client_meta.url",
		},
		{
			name:    "bad icon",
			mutate:  func(c *config.Config) { c.WalletConnect.ClientMeta.Icons = []string{"icon.png"} },
			wantErr: "icons[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{}
	errs := cfg.Validate()
	// listen, backend, retention and client name
	assert.Len(t, errs, 4)
}

func TestResolvedDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = "/var/lib/walletlink"
	dir, err := cfg.ResolvedDataDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/walletlink", dir)

	cfg.DataDir = ""
	dir, err = cfg.ResolvedDataDir()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, filepath.Join(".local", "share", "walletlink")), dir)
}

func TestBootstrapConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "walletlink.yaml")

	assert.Equal(t, path, config.BootstrapConfig(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Empty(t, config.BootstrapConfig(path), "existing file is left alone")
}
