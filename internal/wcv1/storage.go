// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// SessionCacheFileName is the file holding native v1 session state under the
// data directory.
const SessionCacheFileName = "wc_sessions_v1.json"

// SessionState is everything needed to resume a v1 session after a restart.
type SessionState struct {
	Topic       string    `json:"topic"`
	Bridge      string    `json:"bridge"`
	Key         string    `json:"key"`
	ClientID    string    `json:"clientId"`
	ClientMeta  PeerMeta  `json:"clientMeta"`
	PeerID      string    `json:"peerId,omitempty"`
	PeerMeta    *PeerMeta `json:"peerMeta,omitempty"`
	HandshakeID int64     `json:"handshakeId,omitempty"`
	ChainID     int64     `json:"chainId,omitempty"`
	Accounts    []string  `json:"accounts,omitempty"`
	Approved    bool      `json:"approved"`
}

// Storage persists SessionState keyed by topic.
type Storage interface {
	// Load returns the state for topic. The error satisfies
	// errors.IsNotFound (pkg/errors) when nothing is stored.
	Load(topic string) (*SessionState, error)
	Save(state *SessionState) error
	Remove(topic string) error
}

// FileStorage keeps all session states in a single JSON file.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage returns a FileStorage writing SessionCacheFileName under dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{path: filepath.Join(dir, SessionCacheFileName)}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Load(topic string) (*SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.read()
	if err != nil {
		return nil, err
	}
	state, ok := states[topic]
	if !ok {
		return nil, wlerr.New(wlerr.CodeWalletConnectSessionNotFound, "no v1 session state", wlerr.FieldTopic(topic))
	}
	return state, nil
}

func (f *FileStorage) Save(state *SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.read()
	if err != nil {
		return err
	}
	states[state.Topic] = state
	return f.write(states)
}

func (f *FileStorage) Remove(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := states[topic]; !ok {
		return nil
	}
	delete(states, topic)
	return f.write(states)
}

func (f *FileStorage) read() (map[string]*SessionState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*SessionState{}, nil
	}
	if err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeWalletConnectSessionStateFailure, "reading %s", f.path)
	}

	states := map[string]*SessionState{}
	if len(data) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeWalletConnectSessionStateFailure, "parsing %s", f.path)
	}
	return states, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (f *FileStorage) write(states map[string]*SessionState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "encoding session state")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectSessionStateFailure, "creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".wc_sessions_v1-*.json")
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "writing session state")
	}
	if err := tmp.Close(); err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectSessionStateFailure, "closing temp file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectSessionStateFailure, "replacing %s", f.path)
	}
	return nil
}

// MemoryStorage is a Storage that keeps state in process.
type MemoryStorage struct {
	mu     sync.Mutex
	states map[string]SessionState
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{states: make(map[string]SessionState)}
}

func (m *MemoryStorage) Load(topic string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[topic]
	if !ok {
		return nil, wlerr.New(wlerr.CodeWalletConnectSessionNotFound, "no v1 session state", wlerr.FieldTopic(topic))
	}
	return &state, nil
}

func (m *MemoryStorage) Save(state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Topic] = *state
	return nil
}

func (m *MemoryStorage) Remove(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, topic)
	return nil
}
