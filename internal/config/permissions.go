// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the file at path is readable by
// group or other. The config file can carry the API token and the data
// directory holds session symmetric keys, so both are checked at startup.
// Startup is never failed by this check.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat file for permission check", "path", path, "error", err)
		return
	}

	const groupOrOtherRead fs.FileMode = 0o044
	if info.Mode().Perm()&groupOrOtherRead == 0 {
		return
	}

	recommended := "0600"
	if info.IsDir() {
		recommended = "0700"
	}
	slog.Warn("file has insecure permissions, session keys or tokens may be exposed to other users",
		"path", path,
		"mode", info.Mode(),
		"recommended", recommended,
	)
}
