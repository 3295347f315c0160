// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// workItem represents a unit of work queued on a Lane. result is nil for
// fire-and-forget work.
type workItem struct {
	fn     func(context.Context) error
	ctx    context.Context
	result chan<- error
}

// Lane serialises work for a single session. Work is executed one item at a
// time in FIFO order by a background goroutine. The queue is unbounded so
// that adapter callbacks and lane work itself can enqueue without blocking.
type Lane struct {
	sessionID string
	track     func(delta int)

	mu      sync.Mutex
	queue   []workItem
	wake    chan struct{}
	done    chan struct{}
	closing chan struct{} // Closed immediately when Close() is called

	once sync.Once
}

// NewLane creates a Lane for the given session and starts its background
// processing goroutine. Call Close when the lane is no longer needed.
func NewLane(sessionID string) *Lane {
	return newLane(sessionID, nil)
}

func newLane(sessionID string, track func(int)) *Lane {
	if track == nil {
		track = func(int) {}
	}
	l := &Lane{
		sessionID: sessionID,
		track:     track,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
	}
	go l.run()
	return l
}

// run processes work items sequentially until the lane is closed.
func (l *Lane) run() {
	defer close(l.done)
	for {
		if w, ok := l.next(); ok {
			l.executeWork(w)
			continue
		}
		select {
		case <-l.wake:
		case <-l.closing:
			// Drain any remaining queued items before exiting.
			for {
				w, ok := l.next()
				if !ok {
					return
				}
				l.executeWork(w)
			}
		}
	}
}

func (l *Lane) next() (workItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return workItem{}, false
	}
	w := l.queue[0]
	l.queue[0] = workItem{}
	l.queue = l.queue[1:]
	return w, true
}

func (l *Lane) isClosing() bool {
	select {
	case <-l.closing:
		return true
	default:
		return false
	}
}

func (l *Lane) push(w workItem) error {
	// Count before the item becomes visible to the worker so the pending
	// total never dips below the true backlog.
	l.track(1)

	l.mu.Lock()
	if l.isClosing() {
		l.mu.Unlock()
		l.track(-1)
		return wlerr.New(wlerr.CodeWalletConnectClientClosed, "lane is closed",
			wlerr.FieldSessionID(l.sessionID))
	}
	l.queue = append(l.queue, w)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// executeWork runs a work item with panic recovery.
func (l *Lane) executeWork(w workItem) {
	defer l.track(-1)

	// Skip execution if the submitter's context is already cancelled.
	if err := w.ctx.Err(); err != nil {
		l.report(w, err)
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				slog.Error("lane worker panic recovered",
					"session_id", l.sessionID,
					"panic", r,
					"stack", string(stack))
				err = wlerr.Errorf(wlerr.CodeWalletConnectLaneFailure,
					"worker panic: %v", r)
			}
		}()
		err = w.fn(w.ctx)
	}()

	l.report(w, err)
}

func (l *Lane) report(w workItem, err error) {
	if w.result != nil {
		w.result <- err
		return
	}
	if err != nil {
		slog.Warn("lane work failed",
			"session_id", l.sessionID,
			"error", err)
	}
}

// Enqueue schedules fn on this lane without waiting for it. It never blocks.
// Returns an error if the lane has been closed.
func (l *Lane) Enqueue(ctx context.Context, fn func(context.Context) error) error {
	return l.push(workItem{fn: fn, ctx: ctx})
}

// Submit enqueues fn for execution on this lane and blocks until it completes.
// If ctx is cancelled before execution begins, ctx.Err() is returned without
// executing fn. Submit must not be called from work running on the same lane.
func (l *Lane) Submit(ctx context.Context, fn func(context.Context) error) error {
	// Fast path: bail immediately if context is already done.
	if err := ctx.Err(); err != nil {
		return err
	}

	result := make(chan error, 1)
	if err := l.push(workItem{fn: fn, ctx: ctx, result: result}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// Close shuts down the lane's background goroutine and waits for it to finish
// processing any already-enqueued work. Close is idempotent and safe for
// concurrent calls, but must not be called from work running on the lane.
func (l *Lane) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		close(l.closing)
		l.mu.Unlock()
		<-l.done
	})
}

// LanePool manages a set of Lanes keyed by session ID. It creates lanes on
// first access and is safe for concurrent use. The pool tracks the total
// number of queued and running work items so callers can wait for quiescence.
type LanePool struct {
	mu      sync.Mutex
	lanes   map[string]*Lane
	pending int
	idle    chan struct{}
	closed  bool
}

// NewLanePool returns an empty LanePool.
func NewLanePool() *LanePool {
	return &LanePool{
		lanes: make(map[string]*Lane),
	}
}

func (p *LanePool) trackPending(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending += delta
	if p.pending == 0 && p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

// Get returns the Lane for the given session, creating one if it does not
// already exist. Returns nil once the pool has been closed.
func (p *LanePool) Get(sessionID string) *Lane {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	if l, ok := p.lanes[sessionID]; ok {
		return l
	}

	l := newLane(sessionID, p.trackPending)
	p.lanes[sessionID] = l
	return l
}

// Enqueue schedules fn on the session's lane without waiting.
func (p *LanePool) Enqueue(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	l := p.Get(sessionID)
	if l == nil {
		return wlerr.New(wlerr.CodeWalletConnectClientClosed, "lane pool is closed",
			wlerr.FieldSessionID(sessionID))
	}
	return l.Enqueue(ctx, fn)
}

// Submit runs fn on the session's lane and waits for the result.
func (p *LanePool) Submit(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	l := p.Get(sessionID)
	if l == nil {
		return wlerr.New(wlerr.CodeWalletConnectClientClosed, "lane pool is closed",
			wlerr.FieldSessionID(sessionID))
	}
	return l.Submit(ctx, fn)
}

// Release detaches the session's lane from the pool and shuts it down in the
// background once its backlog drains. Safe to call from work running on that
// lane.
func (p *LanePool) Release(sessionID string) {
	p.mu.Lock()
	l, ok := p.lanes[sessionID]
	delete(p.lanes, sessionID)
	p.mu.Unlock()

	if ok {
		go l.Close()
	}
}

// Len returns the number of lanes currently held by the pool.
func (p *LanePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}

// Flush blocks until every queued work item, including work enqueued while
// flushing, has finished.
func (p *LanePool) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.pending == 0 {
		p.mu.Unlock()
		return nil
	}
	if p.idle == nil {
		p.idle = make(chan struct{})
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down all lanes managed by the pool.
func (p *LanePool) Close() {
	p.mu.Lock()
	lanes := p.lanes
	p.lanes = make(map[string]*Lane)
	p.closed = true
	p.mu.Unlock()

	for _, l := range lanes {
		l.Close()
	}
}
