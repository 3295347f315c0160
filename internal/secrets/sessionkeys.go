// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"github.com/sigil-dev/walletlink/internal/wcv1"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// sessionKeyPrefix namespaces v1 session keys within ServiceName.
const sessionKeyPrefix = "wcv1/"

var _ wcv1.Storage = (*SessionKeyStorage)(nil)

// SessionKeyStorage wraps a wcv1.Storage so that the symmetric session key is
// kept in a secret Store and only the remaining session state reaches the
// inner storage.
type SessionKeyStorage struct {
	inner   wcv1.Storage
	secrets Store
	service string
}

// NewSessionKeyStorage returns a SessionKeyStorage saving keys under
// ServiceName.
func NewSessionKeyStorage(inner wcv1.Storage, secrets Store) *SessionKeyStorage {
	return &SessionKeyStorage{inner: inner, secrets: secrets, service: ServiceName}
}

func (s *SessionKeyStorage) Load(topic string) (*wcv1.SessionState, error) {
	state, err := s.inner.Load(topic)
	if err != nil {
		return nil, err
	}
	if state.Key != "" {
		// Written before keys moved to the keyring.
		return state, nil
	}

	key, err := s.secrets.Retrieve(s.service, sessionKeyPrefix+topic)
	if err != nil {
		if wlerr.HasCode(err, wlerr.CodeSecretNotFound) {
			return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectSessionNotFound, "v1 session key missing",
				wlerr.FieldTopic(topic))
		}
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "loading v1 session key",
			wlerr.FieldTopic(topic))
	}
	state.Key = key
	return state, nil
}

func (s *SessionKeyStorage) Save(state *wcv1.SessionState) error {
	if state.Key != "" {
		if err := s.secrets.Store(s.service, sessionKeyPrefix+state.Topic, state.Key); err != nil {
			return wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "saving v1 session key",
				wlerr.FieldTopic(state.Topic))
		}
	}
	stripped := *state
	stripped.Key = ""
	return s.inner.Save(&stripped)
}

func (s *SessionKeyStorage) Remove(topic string) error {
	err := s.secrets.Delete(s.service, sessionKeyPrefix+topic)
	if err != nil && !wlerr.HasCode(err, wlerr.CodeSecretNotFound) {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "removing v1 session key",
			wlerr.FieldTopic(topic))
	}
	return s.inner.Remove(topic)
}
