// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigil-dev/walletlink/internal/config"
	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/secrets"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	"github.com/sigil-dev/walletlink/internal/walletconnect/v2adapter"
	"github.com/sigil-dev/walletlink/internal/wcv1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSymKey = strings.Repeat("ab", 32)
	testV1URI  = "wc:8a5e5bdc-a0e4-4702-ba63-8f1a5655744f@1?bridge=https%3A%2F%2Fbridge.example.org&key=" + testSymKey
	testV2URI  = "wc:7f6e5d4c3b2a19080706050403020100f0e0d0c0b0a090807060504030201000@2?relay-protocol=irn&symKey=" + testSymKey
)

// nopSignClient satisfies v2adapter.SignClient without a relay.
type nopSignClient struct{}

func (nopSignClient) SetHandler(v2adapter.Handler)              {}
func (nopSignClient) Pair(context.Context, string) error        { return nil }
func (nopSignClient) Subscribe(context.Context, string) error   { return nil }
func (nopSignClient) Unsubscribe(context.Context, string) error { return nil }
func (nopSignClient) RejectSession(context.Context, int64, protocol.ErrorResponse) error {
	return nil
}

func (nopSignClient) ApproveSession(context.Context, int64, map[string]namespace.Session) (string, error) {
	return "session-topic", nil
}

func (nopSignClient) UpdateSession(context.Context, string, map[string]namespace.Session) error {
	return nil
}

func (nopSignClient) Disconnect(context.Context, string, protocol.ErrorResponse) error {
	return nil
}

func (nopSignClient) Respond(context.Context, string, int64, json.RawMessage) error { return nil }

func (nopSignClient) RespondError(context.Context, string, int64, protocol.ErrorResponse) error {
	return nil
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:0"},
		Storage:    config.StorageConfig{Backend: backend},
		Sessions:   config.SessionsConfig{MaxLocalSessions: 5},
		WalletConnect: config.WalletConnectConfig{
			ClientMeta: config.ClientMetaConfig{Name: "walletlink-test", URL: "https://wallet.example"},
		},
	}
}

func wireTestBridge(t *testing.T, cfg *config.Config, opts BridgeOptions) *Bridge {
	t.Helper()
	bridge, err := WireBridge(context.Background(), cfg, t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, bridge.Close()) })
	return bridge
}

func TestWireBridge_Memory(t *testing.T) {
	bridge := wireTestBridge(t, testConfig("memory"), BridgeOptions{})

	assert.True(t, bridge.Client.IsValidSessionURL(testV1URI))
	assert.False(t, bridge.Client.IsValidSessionURL(testV2URI), "v2 needs a sign client")

	ts := httptest.NewServer(bridge.Server.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Zero(t, body.Sessions)
}

func TestWireBridge_WithSignClient(t *testing.T) {
	bridge := wireTestBridge(t, testConfig("memory"), BridgeOptions{SignClient: nopSignClient{}})

	assert.True(t, bridge.Client.IsValidSessionURL(testV1URI))
	assert.True(t, bridge.Client.IsValidSessionURL(testV2URI))
}

func TestWireBridge_SQLite(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	bridge, err := WireBridge(context.Background(), testConfig("sqlite"), dataDir, BridgeOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, bridge.Close()) })

	assert.DirExists(t, dataDir)
	assert.FileExists(t, filepath.Join(dataDir, "walletconnect_sessions.db"))

	sessions, err := bridge.Client.GetAllSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestWireBridge_APIToken(t *testing.T) {
	cfg := testConfig("memory")
	cfg.Server.APIToken = "bridge-token"
	bridge := wireTestBridge(t, cfg, BridgeOptions{})

	ts := httptest.NewServer(bridge.Server.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer bridge-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestV1Storage(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		backend string
		keyring bool
		check   func(t *testing.T, s wcv1.Storage)
	}{
		{
			name:    "memory backend",
			backend: "memory",
			check: func(t *testing.T, s wcv1.Storage) {
				assert.IsType(t, &wcv1.MemoryStorage{}, s)
			},
		},
		{
			name:    "sqlite backend keeps state on disk",
			backend: "sqlite",
			check: func(t *testing.T, s wcv1.Storage) {
				assert.IsType(t, &wcv1.FileStorage{}, s)
			},
		},
		{
			name:    "keys in keyring",
			backend: "sqlite",
			keyring: true,
			check: func(t *testing.T, s wcv1.Storage) {
				assert.IsType(t, &secrets.SessionKeyStorage{}, s)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.backend)
			cfg.WalletConnect.KeyringSessionKeys = tt.keyring
			tt.check(t, v1Storage(cfg, dir, newMockSecretStore()))
		})
	}
}

func TestV1Storage_KeyringKeepsKeyOutOfDataDir(t *testing.T) {
	cfg := testConfig("memory")
	cfg.WalletConnect.KeyringSessionKeys = true
	sec := newMockSecretStore()

	storage := v1Storage(cfg, t.TempDir(), sec)
	require.NoError(t, storage.Save(&wcv1.SessionState{Topic: "topic-1", Key: testSymKey}))

	assert.Len(t, sec.data, 1)
	loaded, err := storage.Load("topic-1")
	require.NoError(t, err)
	assert.Equal(t, testSymKey, loaded.Key)
}
