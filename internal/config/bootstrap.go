// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

//go:embed walletlink.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/walletlink/walletlink.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", wlerr.Errorf(wlerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "walletlink", "walletlink.yaml"), nil
}

// DefaultDataDir returns ~/.local/share/walletlink, where the session
// database and v1 session state live when data_dir is unset.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", wlerr.Errorf(wlerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "walletlink"), nil
}

// BootstrapConfig writes the default commented config to path if it does not
// already exist. It returns the path written, or "" when the file existed or
// could not be written. Failures are logged and skipped.
func BootstrapConfig(path string) string {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			slog.Debug("skipping config bootstrap", "error", err)
			return ""
		}
	}

	if _, err := os.Stat(path); err == nil {
		return ""
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
