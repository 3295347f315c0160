// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, which uses ACLs rather than
// mode bits.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("permission check not implemented on Windows", "path", path)
	}
}
