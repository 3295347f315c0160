// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/walletlink/internal/walletconnect"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_SerializesWork(t *testing.T) {
	lane := walletconnect.NewLane("session-1")
	defer lane.Close()

	var mu sync.Mutex
	var order []int

	for i := range 5 {
		require.NoError(t, lane.Enqueue(context.Background(), func(_ context.Context) error {
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}

	// Submit waits behind everything enqueued before it.
	require.NoError(t, lane.Submit(context.Background(), func(_ context.Context) error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "work must execute in FIFO order")
}

func TestLane_EnqueueFromWorkDoesNotBlock(t *testing.T) {
	lane := walletconnect.NewLane("session-nested")
	defer lane.Close()

	ran := make(chan struct{})
	err := lane.Submit(context.Background(), func(ctx context.Context) error {
		return lane.Enqueue(ctx, func(_ context.Context) error {
			close(ran)
			return nil
		})
	})
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("nested work never ran")
	}
}

func TestLane_SubmitReturnsWorkError(t *testing.T) {
	lane := walletconnect.NewLane("session-err")
	defer lane.Close()

	sentinel := errors.New("boom")
	err := lane.Submit(context.Background(), func(_ context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestLane_PanicRecovered(t *testing.T) {
	lane := walletconnect.NewLane("session-panic")
	defer lane.Close()

	err := lane.Submit(context.Background(), func(_ context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeWalletConnectLaneFailure))

	// The lane keeps working after a panic.
	assert.NoError(t, lane.Submit(context.Background(), func(_ context.Context) error { return nil }))
}

func TestLane_ContextCancellation(t *testing.T) {
	lane := walletconnect.NewLane("session-cancel")
	defer lane.Close()

	// Occupy the lane.
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, lane.Enqueue(context.Background(), func(_ context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lane.Submit(ctx, func(_ context.Context) error {
		t.Error("should not execute")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}

func TestLane_CloseDrainsAndRejects(t *testing.T) {
	lane := walletconnect.NewLane("session-close")

	var ran atomic.Int32
	for range 3 {
		require.NoError(t, lane.Enqueue(context.Background(), func(_ context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	lane.Close()
	lane.Close()
	assert.Equal(t, int32(3), ran.Load(), "queued work drains before Close returns")

	err := lane.Enqueue(context.Background(), func(_ context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeWalletConnectClientClosed))
}

func TestLanePool_ConcurrentSessions(t *testing.T) {
	pool := walletconnect.NewLanePool()
	defer pool.Close()

	var peak atomic.Int32
	var running atomic.Int32

	var wg sync.WaitGroup
	for _, sid := range []string{"sess-a", "sess-b", "sess-c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Submit(context.Background(), sid, func(_ context.Context) error {
				cur := running.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.GreaterOrEqual(t, peak.Load(), int32(2),
		"at least 2 lanes should have run concurrently")
}

func TestLanePool_SameLanePerSession(t *testing.T) {
	pool := walletconnect.NewLanePool()
	defer pool.Close()

	assert.Same(t, pool.Get("a"), pool.Get("a"))
	assert.NotSame(t, pool.Get("a"), pool.Get("b"))
}

func TestLanePool_FlushWaitsForChainedWork(t *testing.T) {
	pool := walletconnect.NewLanePool()
	defer pool.Close()

	var done atomic.Bool
	require.NoError(t, pool.Enqueue(context.Background(), "a", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return pool.Enqueue(ctx, "b", func(_ context.Context) error {
			time.Sleep(10 * time.Millisecond)
			done.Store(true)
			return nil
		})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Flush(ctx))
	assert.True(t, done.Load())
}

func TestLanePool_FlushIdle(t *testing.T) {
	pool := walletconnect.NewLanePool()
	defer pool.Close()

	assert.NoError(t, pool.Flush(context.Background()))
}

func TestLanePool_ReleaseFromOwnLane(t *testing.T) {
	pool := walletconnect.NewLanePool()
	defer pool.Close()

	first := pool.Get("a")
	require.NoError(t, pool.Submit(context.Background(), "a", func(_ context.Context) error {
		pool.Release("a")
		return nil
	}))

	assert.NotSame(t, first, pool.Get("a"), "released lane is replaced on next access")
	assert.NoError(t, pool.Flush(context.Background()))
}

func TestLanePool_Len(t *testing.T) {
	pool := walletconnect.NewLanePool()
	defer pool.Close()

	pool.Get("a")
	pool.Get("b")
	assert.Equal(t, 2, pool.Len())

	pool.Release("a")
	pool.Release("missing")
	assert.Equal(t, 1, pool.Len())
}

func TestLanePool_ClosedPoolRejects(t *testing.T) {
	pool := walletconnect.NewLanePool()
	pool.Close()

	assert.Nil(t, pool.Get("a"))
	err := pool.Enqueue(context.Background(), "a", func(_ context.Context) error { return nil })
	assert.True(t, wlerr.HasCode(err, wlerr.CodeWalletConnectClientClosed))
}
