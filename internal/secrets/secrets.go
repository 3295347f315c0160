// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps sensitive values, the API token and v1 session keys,
// out of config files and the data directory by storing them in the OS
// keyring.
package secrets

// ServiceName is the keyring service under which walletlink stores its
// secrets.
const ServiceName = "walletlink"

// Store provides secret storage keyed by service and key.
type Store interface {
	Store(service, key, value string) error

	// Retrieve returns the secret. A missing secret yields an error with
	// code CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret. A missing secret yields an error with code
	// CodeSecretNotFound.
	Delete(service, key string) error

	// List returns the key names stored under service.
	List(service string) ([]string, error)
}
