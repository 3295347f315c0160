// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/walletlink/internal/config"
	"github.com/sigil-dev/walletlink/internal/secrets"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the walletlink bridge",
		Long:  "Load configuration, restore persisted sessions and serve the local session API.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()

	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		return wlerr.Errorf(wlerr.CodeCLISetupFailure, "resolving keyring references: %w", err)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	dataDir, err := cfg.ResolvedDataDir()
	if err != nil {
		return err
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridge, err := WireBridge(ctx, cfg, dataDir, BridgeOptions{Secrets: secretStoreFactory()})
	if err != nil {
		return err
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			slog.Error("closing bridge", "error", err)
		}
	}()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "walletlink listening on %s (data: %s)\n", cfg.Networking.Listen, dataDir)

	if err := bridge.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
