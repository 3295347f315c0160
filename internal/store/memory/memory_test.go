// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/store/memory"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string, createdAt time.Time) *store.Session {
	return &store.Session{
		ID:        id,
		Version:   store.ProtocolV2,
		Topic:     "topic-" + id,
		ChainID:   "algorand:wGHE2Pwdvd7S12BL5FaOP20EGYesN73k",
		CreatedAt: createdAt,
	}
}

func TestSessionStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	ss := memory.NewSessionStore()

	require.NoError(t, ss.Insert(ctx, newSession("a", time.Now()), []string{"ADDR1", "ADDR1", "ADDR2"}))

	got, err := ss.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADDR1", "ADDR2"}, got.Accounts)

	// Returned values are copies.
	got.Accounts[0] = "MUTATED"
	again, err := ss.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "ADDR1", again.Accounts[0])

	err = ss.Insert(ctx, newSession("a", time.Now()), []string{"ADDR1"})
	require.Error(t, err)
	assert.True(t, wlerr.IsConflict(err))
}

func TestSessionStore_GetByIDNotFound(t *testing.T) {
	_, err := memory.NewSessionStore().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, wlerr.IsNotFound(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionStore_AccountLinks(t *testing.T) {
	ctx := context.Background()
	ss := memory.NewSessionStore()
	require.NoError(t, ss.Insert(ctx, newSession("a", time.Now()), []string{"ADDR1"}))

	require.NoError(t, ss.InsertAccountLinks(ctx, "a", []string{"ADDR1", "ADDR2"}))
	require.NoError(t, ss.DeleteAccountLink(ctx, "a", "ADDR1"))
	require.NoError(t, ss.InsertAccountLinks(ctx, "missing", []string{"ADDR3"}))

	got, err := ss.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADDR2"}, got.Accounts)

	byAddr, err := ss.GetByAccountAddress(ctx, "ADDR2")
	require.NoError(t, err)
	require.Len(t, byAddr, 1)
	assert.Equal(t, "a", byAddr[0].ID)

	byAddr, err = ss.GetByAccountAddress(ctx, "ADDR3")
	require.NoError(t, err)
	assert.Empty(t, byAddr)
}

func TestSessionStore_Flags(t *testing.T) {
	ctx := context.Background()
	ss := memory.NewSessionStore()

	s := newSession("a", time.Now())
	s.IsConnected = true
	require.NoError(t, ss.Insert(ctx, s, []string{"ADDR1"}))
	require.NoError(t, ss.Insert(ctx, newSession("b", time.Now()), []string{"ADDR2"}))

	disconnected, err := ss.GetAllDisconnected(ctx)
	require.NoError(t, err)
	require.Len(t, disconnected, 1)
	assert.Equal(t, "b", disconnected[0].ID)

	require.NoError(t, ss.SetAllDisconnected(ctx))
	require.NoError(t, ss.SetConnected(ctx, "b"))
	require.NoError(t, ss.SetSubscribed(ctx, "b"))

	b, err := ss.GetByID(ctx, "b")
	require.NoError(t, err)
	assert.True(t, b.IsConnected)
	assert.True(t, b.IsSubscribed)

	a, err := ss.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, a.IsConnected)

	require.NoError(t, ss.SetDisconnected(ctx, "missing"))
}

func TestSessionStore_Ordering(t *testing.T) {
	ctx := context.Background()
	ss := memory.NewSessionStore()

	base := time.Now()
	same := base.Add(time.Minute)
	require.NoError(t, ss.Insert(ctx, newSession("late-1", same), []string{"A"}))
	require.NoError(t, ss.Insert(ctx, newSession("early", base), []string{"B"}))
	require.NoError(t, ss.Insert(ctx, newSession("late-2", same), []string{"C"}))

	all, err := ss.GetAll(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"early", "late-1", "late-2"}, ids)

	oldest, err := ss.GetOldestByCreation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, oldest, 1)
	assert.Equal(t, "early", oldest[0].ID)

	require.NoError(t, ss.DeleteByID(ctx, "early"))
	require.NoError(t, ss.DeleteByID(ctx, "early"))
	n, err := ss.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
