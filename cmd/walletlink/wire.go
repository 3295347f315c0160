// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/sigil-dev/walletlink/internal/config"
	"github.com/sigil-dev/walletlink/internal/secrets"
	"github.com/sigil-dev/walletlink/internal/server"
	"github.com/sigil-dev/walletlink/internal/store"
	_ "github.com/sigil-dev/walletlink/internal/store/memory" // register memory backend
	_ "github.com/sigil-dev/walletlink/internal/store/sqlite" // register sqlite backend
	"github.com/sigil-dev/walletlink/internal/walletconnect"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	"github.com/sigil-dev/walletlink/internal/walletconnect/v1adapter"
	"github.com/sigil-dev/walletlink/internal/walletconnect/v2adapter"
	"github.com/sigil-dev/walletlink/internal/wcv1"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Bridge holds all wired subsystems and manages their lifecycle.
type Bridge struct {
	Server *server.Server
	Client *walletconnect.Client
	Store  store.SessionStore

	unsubscribe func()
}

// BridgeOptions carries dependencies that are not derived from config.
type BridgeOptions struct {
	// Secrets backs keyring_session_keys. Nil uses the OS keyring.
	Secrets secrets.Store
	// SignClient enables WalletConnect v2. Without it only v1 URIs are
	// accepted.
	SignClient v2adapter.SignClient
}

// WireBridge creates all subsystems and wires them together.
// The dataDir is the root directory for all persistent state.
func WireBridge(ctx context.Context, cfg *config.Config, dataDir string, opts BridgeOptions) (*Bridge, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, wlerr.Errorf(wlerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}
	config.WarnInsecurePermissions(dataDir)

	// 1. Session store.
	st, err := store.NewSessionStore(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return nil, wlerr.Errorf(wlerr.CodeCLISetupFailure, "creating session store: %w", err)
	}

	// 2. Protocol adapters.
	adapters := []protocol.Adapter{
		v1adapter.New(v1adapter.Config{
			ClientMeta: cfg.WalletConnect.ClientMeta.PeerMeta(),
			Storage:    v1Storage(cfg, dataDir, opts.Secrets),
		}),
	}
	if opts.SignClient != nil {
		adapters = append(adapters, v2adapter.New(opts.SignClient))
	} else {
		slog.Info("walletconnect v2 disabled: no sign client configured")
	}

	// 3. Session lifecycle coordinator.
	client := walletconnect.NewClient(st, adapters,
		walletconnect.WithMaxLocalSessions(cfg.Sessions.MaxLocalSessions),
	)
	unsubscribe := client.Subscribe(walletconnect.ListenerFunc(logEvent))

	if err := client.InitializeClient(ctx); err != nil {
		unsubscribe()
		return nil, errors.Join(
			wlerr.Errorf(wlerr.CodeCLISetupFailure, "initializing walletconnect client: %w", err),
			client.Close(),
			st.Close(),
		)
	}

	// 4. HTTP server.
	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is not set, the API accepts unauthenticated requests")
	}
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		APIToken:    cfg.Server.APIToken,
		CommandRateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.CommandRateLimit.RequestsPerSecond,
			Burst:             cfg.Server.CommandRateLimit.Burst,
		},
	}, client)
	if err != nil {
		unsubscribe()
		return nil, errors.Join(
			wlerr.Errorf(wlerr.CodeCLISetupFailure, "creating server: %w", err),
			client.Close(),
			st.Close(),
		)
	}

	return &Bridge{
		Server:      srv,
		Client:      client,
		Store:       st,
		unsubscribe: unsubscribe,
	}, nil
}

// v1Storage picks where v1 session state lives. Symmetric keys move to the
// keyring when keyring_session_keys is set.
func v1Storage(cfg *config.Config, dataDir string, sec secrets.Store) wcv1.Storage {
	var storage wcv1.Storage
	if cfg.Storage.Backend == "memory" {
		storage = wcv1.NewMemoryStorage()
	} else {
		storage = wcv1.NewFileStorage(dataDir)
	}

	if !cfg.WalletConnect.KeyringSessionKeys {
		return storage
	}
	if sec == nil {
		sec = secrets.NewKeyringStore()
	}
	return secrets.NewSessionKeyStorage(storage, sec)
}

func logEvent(ev walletconnect.Event) {
	slog.Debug("walletconnect event", "kind", ev.Kind(), "session_id", ev.Subject())
}

// Start resumes persisted sessions and serves the API until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	b.Client.ConnectToDisconnectedSessions(ctx)
	return b.Server.Start(ctx)
}

// Close releases the client and the store.
func (b *Bridge) Close() error {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	return errors.Join(b.Client.Close(), b.Store.Close())
}
