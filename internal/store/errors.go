// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "errors"

// Sentinel errors for store operations.
// Backends wrap these with a coded error (pkg/errors) so callers can use either
// errors.Is() or the code-based classifiers.
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a general database error occurred.
	ErrDatabase = errors.New("database error")
)
