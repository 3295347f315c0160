// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package memory provides an in-process SessionStore. It is registered as the
// "memory" backend and is intended for tests and ephemeral runs; nothing is
// written to disk.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/sigil-dev/walletlink/internal/store"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

var _ store.SessionStore = (*SessionStore)(nil)

func init() {
	store.RegisterBackend("memory", func(string) (store.SessionStore, error) {
		return NewSessionStore(), nil
	})
}

type row struct {
	session store.Session
	seq     uint64
}

// SessionStore keeps session rows in a map guarded by a RWMutex. Returned
// sessions are copies; callers may mutate them freely.
type SessionStore struct {
	mu   sync.RWMutex
	rows map[string]*row
	seq  uint64
}

// NewSessionStore creates an empty in-memory store.
func NewSessionStore() *SessionStore {
	return &SessionStore{rows: make(map[string]*row)}
}

func (s *SessionStore) Insert(_ context.Context, session *store.Session, accounts []string) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[session.ID]; exists {
		return wlerr.Errorf(wlerr.CodeStoreConflict, "session %s already exists", session.ID)
	}

	s.seq++
	r := &row{session: *session, seq: s.seq}
	r.session.PeerMeta.Icons = slices.Clone(session.PeerMeta.Icons)
	r.session.Accounts = appendUnique(nil, accounts)
	s.rows[session.ID] = r
	return nil
}

func (s *SessionStore) GetByID(_ context.Context, id string) (*store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, wlerr.Wrapf(store.ErrNotFound, wlerr.CodeStoreSessionGetNotFound, "session %s", id)
	}
	return r.copy(), nil
}

func (s *SessionStore) GetAll(_ context.Context) ([]*store.Session, error) {
	return s.filter(func(*store.Session) bool { return true }), nil
}

func (s *SessionStore) GetByAccountAddress(_ context.Context, address string) ([]*store.Session, error) {
	return s.filter(func(sess *store.Session) bool { return sess.HasAccount(address) }), nil
}

func (s *SessionStore) GetAllDisconnected(_ context.Context) ([]*store.Session, error) {
	return s.filter(func(sess *store.Session) bool { return !sess.IsConnected }), nil
}

func (s *SessionStore) GetOldestByCreation(_ context.Context, n int) ([]*store.Session, error) {
	if n <= 0 {
		return nil, nil
	}
	all := s.filter(func(*store.Session) bool { return true })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (s *SessionStore) CountAll(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func (s *SessionStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *SessionStore) InsertAccountLinks(_ context.Context, sessionID string, accounts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[sessionID]; ok {
		r.session.Accounts = appendUnique(r.session.Accounts, accounts)
	}
	return nil
}

func (s *SessionStore) DeleteAccountLink(_ context.Context, sessionID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[sessionID]; ok {
		r.session.Accounts = slices.DeleteFunc(r.session.Accounts, func(a string) bool { return a == address })
	}
	return nil
}

func (s *SessionStore) SetConnected(_ context.Context, id string) error {
	s.update(id, func(sess *store.Session) { sess.IsConnected = true })
	return nil
}

func (s *SessionStore) SetDisconnected(_ context.Context, id string) error {
	s.update(id, func(sess *store.Session) { sess.IsConnected = false })
	return nil
}

func (s *SessionStore) SetAllDisconnected(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		r.session.IsConnected = false
	}
	return nil
}

func (s *SessionStore) SetSubscribed(_ context.Context, id string) error {
	s.update(id, func(sess *store.Session) { sess.IsSubscribed = true })
	return nil
}

// Close is a no-op; the store holds no external resources.
func (s *SessionStore) Close() error { return nil }

func (s *SessionStore) update(id string, fn func(*store.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		fn(&r.session)
	}
}

// filter returns copies of matching rows ordered by CreatedAt, then insertion.
func (s *SessionStore) filter(match func(*store.Session) bool) []*store.Session {
	s.mu.RLock()
	matched := make([]row, 0, len(s.rows))
	for _, r := range s.rows {
		if match(&r.session) {
			matched = append(matched, row{session: *r.copy(), seq: r.seq})
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.session.CreatedAt.Equal(b.session.CreatedAt) {
			return a.session.CreatedAt.Before(b.session.CreatedAt)
		}
		return a.seq < b.seq
	})

	out := make([]*store.Session, 0, len(matched))
	for i := range matched {
		out = append(out, &matched[i].session)
	}
	return out
}

func (r *row) copy() *store.Session {
	sess := r.session
	sess.Accounts = slices.Clone(r.session.Accounts)
	sess.PeerMeta.Icons = slices.Clone(r.session.PeerMeta.Icons)
	return &sess
}

func appendUnique(dst, accounts []string) []string {
	for _, a := range accounts {
		if !slices.Contains(dst, a) {
			dst = append(dst, a)
		}
	}
	return dst
}
