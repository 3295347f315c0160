// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/sigil-dev/walletlink/internal/config"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root walletlink command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "walletlink",
		Short:         "walletlink: WalletConnect session bridge",
		Long:          "walletlink manages WalletConnect v1 and v2 sessions for a wallet and exposes them to local applications over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			setupLogging(cmd, viper.GetBool("verbose"))
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newSessionCmd(),
		newConnectCmd(),
		newRequestCmd(),
		newEventsCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings and an optional config file so that flag > env > file > defaults
// holds for every command.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return wlerr.Errorf(wlerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType stays unset. With it Viper also tries the bare name,
		// which matches the walletlink binary in the working directory.
		v.SetConfigName("walletlink")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/walletlink")
		v.AddConfigPath("/etc/walletlink")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return wlerr.Errorf(wlerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(""); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return wlerr.Errorf(wlerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return wlerr.Errorf(wlerr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return wlerr.Errorf(wlerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}

func setupLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
}
