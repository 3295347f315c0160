// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/sigil-dev/walletlink/internal/secrets"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Set, list and delete secrets stored under the walletlink service in the " +
			"operating system keyring. Reference them from config as keyring://walletlink/<name>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		if err != nil && line == "" {
			return wlerr.Errorf(wlerr.CodeCLIInputInvalid, "reading secret from stdin: %w", err)
		}
		return wlerr.New(wlerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Store(secrets.ServiceName, name, value); err != nil {
		return wlerr.Errorf(wlerr.CodeSecretStoreFailure, "storing secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (keyring://%s/%s)\n", name, secrets.ServiceName, name)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	keys, err := store.List(secrets.ServiceName)
	if err != nil {
		return wlerr.Errorf(wlerr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(secrets.ServiceName, name); err != nil {
		if wlerr.HasCode(err, wlerr.CodeSecretNotFound) {
			return wlerr.Errorf(wlerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return wlerr.Errorf(wlerr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
