// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"errors"
	"strings"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/viper"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value is a keyring://service/key reference.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key. The key may contain slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", wlerr.Errorf(wlerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", wlerr.Errorf(wlerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ResolveKeyringURI returns the secret referenced by value, or value itself
// when it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", wlerr.Wrapf(err, wlerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string value in v with the
// secret it references. Every unresolved key is reported in the returned
// error and left unchanged in v.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, wlerr.Wrapf(err, wlerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
