// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package walletconnect coordinates WalletConnect session lifecycles across
// protocol generations. The Client owns the live session cache, the per-topic
// request gate and the durable session store, and serialises every event and
// command for a session on that session's lane.
package walletconnect

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Client is the session lifecycle coordinator. Command methods never block on
// the peer: they enqueue work on the session's lane and report failures as
// SessionErrorEvent. Query methods read the store directly.
type Client struct {
	store    store.SessionStore
	adapters []protocol.Adapter
	opts     Options

	cache  *SessionCache
	gate   *RequestGate
	lanes  *LanePool
	events *dispatcher

	closed atomic.Bool
}

// NewClient returns a Client over st that dispatches URIs and persisted
// sessions to adapters. Call InitializeClient before issuing commands.
func NewClient(st store.SessionStore, adapters []protocol.Adapter, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxLocalSessions <= 0 {
		o.MaxLocalSessions = MaxLocalSessionCount
	}
	if o.AddressValidator == nil {
		o.AddressValidator = defaultOptions().AddressValidator
	}

	return &Client{
		store:    st,
		adapters: adapters,
		opts:     o,
		cache:    newSessionCache(),
		gate:     NewRequestGate(),
		lanes:    NewLanePool(),
		events:   newDispatcher(o.EventBufferSize),
	}
}

// InitializeClient marks every persisted session disconnected and evicts the
// oldest sessions beyond the retention ceiling.
func (c *Client) InitializeClient(ctx context.Context) error {
	if err := c.store.SetAllDisconnected(ctx); err != nil {
		return wlerr.Wrap(err, wlerr.CodeStoreDatabaseFailure, "marking sessions disconnected")
	}
	return c.enforceRetention(ctx)
}

func (c *Client) enforceRetention(ctx context.Context) error {
	count, err := c.store.CountAll(ctx)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeStoreDatabaseFailure, "counting sessions")
	}
	excess := count - c.opts.MaxLocalSessions
	if excess <= 0 {
		return nil
	}

	oldest, err := c.store.GetOldestByCreation(ctx, excess)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeStoreDatabaseFailure, "listing oldest sessions")
	}

	slog.Info("evicting sessions over retention limit",
		"count", count,
		"limit", c.opts.MaxLocalSessions,
		"evicting", len(oldest))

	for _, s := range oldest {
		sessionID := s.ID
		err := c.lanes.Submit(ctx, sessionID, func(ctx context.Context) error {
			c.teardown(ctx, sessionID, true)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Connect opens a session from a scanned connection URI and starts the
// handshake. The dApp's proposal arrives as a SessionProposalEvent.
func (c *Client) Connect(ctx context.Context, uri string, opts ...ConnectOption) {
	if c.closed.Load() {
		slog.Debug("client closed, dropping connect")
		return
	}
	var co connectOptions
	for _, opt := range opts {
		opt(&co)
	}

	adapter := c.adapterForURI(uri)
	if adapter == nil {
		c.emitError("", wlerr.CodeWalletConnectURIInvalid,
			wlerr.New(wlerr.CodeWalletConnectURIInvalid, "connection uri not recognised by any protocol adapter"))
		return
	}

	e := &cachedSession{
		sessionID: c.opts.newID(),
		version:   adapter.Version(),
		fallback:  co.fallbackBrowserGroupResponse,
	}
	h, err := adapter.Open(ctx, e.sessionID, uri, c.sinkFor(e))
	if err != nil {
		c.emitError("", wlerr.CodeWalletConnectURIInvalid, err)
		return
	}
	c.install(ctx, e, h)

	c.enqueue(ctx, e.sessionID, "connect", func(ctx context.Context) error {
		c.handshake(ctx, e)
		return nil
	})
}

// Reconnect restores a persisted session and starts its handshake. The retry
// counter of any live handle it replaces is carried over.
func (c *Client) Reconnect(ctx context.Context, id SessionIdentifier) {
	if !id.Valid() {
		return
	}
	c.enqueue(ctx, id.id, "reconnect", func(ctx context.Context) error {
		row, err := c.store.GetByID(ctx, id.id)
		if err != nil {
			if wlerr.IsNotFound(err) {
				c.releaseIfGone(ctx, id.id)
			} else {
				c.emitError(id.id, wlerr.CodeStoreDatabaseFailure, err)
			}
			return nil
		}

		adapter := c.adapterForVersion(row.Version)
		if adapter == nil {
			c.emitError(id.id, wlerr.CodeWalletConnectAdapterUnsupported,
				wlerr.New(wlerr.CodeWalletConnectAdapterUnsupported, "no adapter for session protocol version",
					wlerr.FieldSessionID(id.id), wlerr.FieldVersion(int(row.Version))))
			return nil
		}

		e := &cachedSession{
			sessionID: row.ID,
			version:   row.Version,
			fallback:  row.FallbackBrowserGroupResponse,
		}
		if old, ok := c.cache.get(row.ID); ok {
			e.retryCount = old.retries()
		}

		h, err := adapter.Restore(ctx, row, c.sinkFor(e))
		if err != nil {
			c.emitError(id.id, wlerr.CodeWalletConnectSessionStateFailure, err)
			return nil
		}
		c.install(ctx, e, h)
		c.handshake(ctx, e)
		return nil
	})
}

// ApproveSession approves the pending proposal with accounts on chainID. The
// session is persisted when the adapter confirms the approval.
func (c *Client) ApproveSession(ctx context.Context, id SessionIdentifier, accounts []string, chainID string) {
	if !id.Valid() {
		return
	}
	if code, err := c.validateAccounts(accounts); err != nil {
		c.emitError(id.id, code, err)
		return
	}
	accounts = append([]string(nil), accounts...)

	c.enqueue(ctx, id.id, "approve", func(ctx context.Context) error {
		e, ok := c.cache.get(id.id)
		if !ok {
			c.releaseIfGone(ctx, id.id)
			return nil
		}
		if err := e.handle.Approve(ctx, accounts, chainID); err != nil {
			c.commandFailed(e.sessionID, "approve", err)
		}
		return nil
	})
}

// UpdateSession pushes a new account list to the peer, links the accounts and
// unlinks removedAccountAddress when set and absent from accounts.
func (c *Client) UpdateSession(ctx context.Context, id SessionIdentifier, accounts []string, chainID, removedAccountAddress string) {
	if !id.Valid() {
		return
	}
	if code, err := c.validateAccounts(accounts); err != nil {
		c.emitError(id.id, code, err)
		return
	}
	accounts = append([]string(nil), accounts...)

	c.enqueue(ctx, id.id, "update", func(ctx context.Context) error {
		e, ok := c.cache.get(id.id)
		if !ok {
			c.releaseIfGone(ctx, id.id)
			return nil
		}
		if _, err := c.store.GetByID(ctx, id.id); err != nil {
			if wlerr.IsNotFound(err) {
				logMissingSession(id.id, "update")
			} else {
				c.emitError(id.id, wlerr.CodeStoreDatabaseFailure, err)
			}
			return nil
		}

		if err := e.handle.Update(ctx, accounts, chainID); err != nil {
			c.commandFailed(e.sessionID, "update", err)
			return nil
		}
		if err := c.store.InsertAccountLinks(ctx, id.id, accounts); err != nil {
			c.emitError(id.id, wlerr.CodeStoreDatabaseFailure, err)
			return nil
		}
		switch {
		case removedAccountAddress == "":
		case slices.Contains(accounts, removedAccountAddress):
			slog.Debug("removed account is still in the account list, keeping link",
				"session_id", id.id,
				"address", removedAccountAddress)
		default:
			if err := c.store.DeleteAccountLink(ctx, id.id, removedAccountAddress); err != nil {
				c.emitError(id.id, wlerr.CodeStoreDatabaseFailure, err)
			}
		}
		return nil
	})
}

// RejectSession rejects a pending proposal and drops the live handle.
func (c *Client) RejectSession(ctx context.Context, id SessionIdentifier) {
	if !id.Valid() {
		return
	}
	c.enqueue(ctx, id.id, "reject", func(ctx context.Context) error {
		e, ok := c.cache.get(id.id)
		if !ok {
			c.releaseIfGone(ctx, id.id)
			return nil
		}
		if err := e.handle.Reject(ctx); err != nil {
			c.commandFailed(e.sessionID, "reject", err)
		}
		topic := c.cache.topicOf(e)
		if c.cache.removeEntry(e) {
			c.gate.Clear(topic)
			c.closeHandle(e)
			c.lanes.Release(e.sessionID)
		}
		return nil
	})
}

// ApproveRequest answers a peer request with payload. The topic's gate is
// released only when requestID is the displayed request.
func (c *Client) ApproveRequest(ctx context.Context, id SessionIdentifier, requestID RequestIdentifier, payload protocol.Payload) {
	if !id.Valid() {
		return
	}
	c.enqueue(ctx, id.id, "approve_request", func(ctx context.Context) error {
		e, ok := c.cache.get(id.id)
		if !ok {
			c.releaseIfGone(ctx, id.id)
			return nil
		}
		var err error
		if payload == nil {
			err = wlerr.New(wlerr.CodeWalletConnectPayloadInvalid, "missing response payload",
				wlerr.FieldRequestID(int64(requestID.id)))
		} else {
			err = e.handle.ApproveRequest(ctx, requestID.id, payload)
		}
		c.gate.ClearIf(c.cache.topicOf(e), requestID.id)
		if err != nil {
			c.commandFailed(e.sessionID, "approve_request", err)
		}
		return nil
	})
}

// RejectRequest answers a peer request with resp. The topic's gate is
// released only when requestID is the displayed request.
func (c *Client) RejectRequest(ctx context.Context, id SessionIdentifier, requestID RequestIdentifier, resp protocol.ErrorResponse) {
	if !id.Valid() {
		return
	}
	c.enqueue(ctx, id.id, "reject_request", func(ctx context.Context) error {
		e, ok := c.cache.get(id.id)
		if !ok {
			c.releaseIfGone(ctx, id.id)
			return nil
		}
		err := e.handle.RejectRequest(ctx, requestID.id, resp)
		c.gate.ClearIf(c.cache.topicOf(e), requestID.id)
		if err != nil {
			c.commandFailed(e.sessionID, "reject_request", err)
		}
		return nil
	})
}

// KillSession ends the session with the peer, deletes it and emits a single
// SessionDeleteEvent. Killing an already removed session does nothing.
func (c *Client) KillSession(ctx context.Context, id SessionIdentifier) {
	if !id.Valid() {
		return
	}
	c.enqueue(ctx, id.id, "kill", func(ctx context.Context) error {
		c.teardown(ctx, id.id, true)
		return nil
	})
}

// DisconnectFromAllSessions drops every live relay connection and marks all
// sessions disconnected. Handles stay cached so sessions can be reconnected.
func (c *Client) DisconnectFromAllSessions(ctx context.Context) {
	for _, e := range c.cache.all() {
		err := c.lanes.Submit(ctx, e.sessionID, func(ctx context.Context) error {
			if !c.cache.isCurrent(e) {
				return nil
			}
			return e.handle.Disconnect(ctx)
		})
		if err != nil {
			slog.Warn("disconnect failed",
				"session_id", e.sessionID,
				"error", err)
		}
	}
	if err := c.store.SetAllDisconnected(ctx); err != nil {
		c.emitError("", wlerr.CodeStoreDatabaseFailure, err)
	}
}

// ConnectToDisconnectedSessions reconnects every session marked disconnected.
func (c *Client) ConnectToDisconnectedSessions(ctx context.Context) {
	rows, err := c.store.GetAllDisconnected(ctx)
	if err != nil {
		c.emitError("", wlerr.CodeStoreDatabaseFailure, err)
		return
	}
	for _, row := range rows {
		c.Reconnect(ctx, SessionIdentifier{id: row.ID})
	}
}

// GetSession returns the session for id.
func (c *Client) GetSession(ctx context.Context, id SessionIdentifier) (*Session, error) {
	if !id.Valid() {
		return nil, wlerr.New(wlerr.CodeWalletConnectSessionNotFound, "unresolved session identifier")
	}
	row, err := c.store.GetByID(ctx, id.id)
	if err != nil {
		return nil, err
	}
	return c.project(row), nil
}

// GetAllSessions returns every persisted session, oldest first.
func (c *Client) GetAllSessions(ctx context.Context) ([]*Session, error) {
	rows, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return c.projectAll(rows), nil
}

// GetSessionsByAccountAddress returns the sessions linked to address.
func (c *Client) GetSessionsByAccountAddress(ctx context.Context, address string) ([]*Session, error) {
	rows, err := c.store.GetByAccountAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return c.projectAll(rows), nil
}

// GetDisconnectedSessions returns the sessions marked disconnected.
func (c *Client) GetDisconnectedSessions(ctx context.Context) ([]*Session, error) {
	rows, err := c.store.GetAllDisconnected(ctx)
	if err != nil {
		return nil, err
	}
	return c.projectAll(rows), nil
}

// HasOngoingRequest reports whether a peer request is displayed for the
// session.
func (c *Client) HasOngoingRequest(id SessionIdentifier) bool {
	e, ok := c.liveEntry(id)
	if !ok {
		return false
	}
	return c.gate.HasOngoingRequest(c.cache.topicOf(e))
}

func (c *Client) GetSessionRetryCount(id SessionIdentifier) int {
	e, ok := c.liveEntry(id)
	if !ok {
		return 0
	}
	return e.retries()
}

func (c *Client) SetSessionRetryCount(id SessionIdentifier, n int) {
	if e, ok := c.liveEntry(id); ok {
		e.setRetries(n)
	}
}

func (c *Client) ClearSessionRetryCount(id SessionIdentifier) {
	c.SetSessionRetryCount(id, 0)
}

// SetSessionSubscribed records that push notifications are registered for
// the session.
func (c *Client) SetSessionSubscribed(ctx context.Context, id SessionIdentifier) {
	if !id.Valid() {
		return
	}
	if err := c.store.SetSubscribed(ctx, id.id); err != nil {
		c.emitError(id.id, wlerr.CodeStoreDatabaseFailure, err)
	}
}

// Subscribe registers l and returns a function that removes it. Events
// emitted before the first subscription are replayed to it.
func (c *Client) Subscribe(l Listener) func() {
	return c.events.subscribe(l)
}

// Flush waits until all queued session work has finished.
func (c *Client) Flush(ctx context.Context) error {
	return c.lanes.Flush(ctx)
}

// Close stops all lanes and releases live handles without notifying peers.
// The store is owned by the caller and left open.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.lanes.Close()
	for _, e := range c.cache.all() {
		if c.cache.removeEntry(e) {
			c.closeHandle(e)
		}
	}
	return nil
}

// IsValidSessionURL reports whether any configured adapter accepts uri.
func (c *Client) IsValidSessionURL(uri string) bool {
	return c.adapterForURI(uri) != nil
}

func (c *Client) adapterForURI(uri string) protocol.Adapter {
	for _, a := range c.adapters {
		if a.IsValidSessionURL(uri) {
			return a
		}
	}
	return nil
}

func (c *Client) adapterForVersion(v protocol.Version) protocol.Adapter {
	for _, a := range c.adapters {
		if a.Version() == v {
			return a
		}
	}
	return nil
}

func (c *Client) liveEntry(id SessionIdentifier) (*cachedSession, bool) {
	if !id.Valid() {
		return nil, false
	}
	return c.cache.get(id.id)
}

func (c *Client) validateAccounts(accounts []string) (wlerr.Code, error) {
	if err := store.ValidateAccounts(accounts); err != nil {
		return wlerr.CodeWalletConnectAccountsMissing,
			wlerr.Wrap(err, wlerr.CodeWalletConnectAccountsMissing, "invalid account list")
	}
	for _, addr := range accounts {
		if err := c.opts.AddressValidator(addr); err != nil {
			return wlerr.CodeWalletConnectAccountInvalid,
				wlerr.Wrap(err, wlerr.CodeWalletConnectAccountInvalid, "invalid account address",
					wlerr.FieldAddress(addr))
		}
	}
	return "", nil
}

// install registers e with its handle, closing any handles it displaces.
func (c *Client) install(ctx context.Context, e *cachedSession, h protocol.Handle) {
	e.handle = h
	e.topic = h.Topic()
	for _, old := range c.cache.put(e) {
		c.closeHandle(old)
		if old.sessionID != e.sessionID {
			c.releaseIfGone(ctx, old.sessionID)
		}
	}
}

// releaseIfGone drops the session's lane once the session has neither a live
// entry nor a durable row.
func (c *Client) releaseIfGone(ctx context.Context, sessionID string) {
	if _, ok := c.cache.get(sessionID); ok {
		return
	}
	if _, err := c.store.GetByID(ctx, sessionID); !wlerr.IsNotFound(err) {
		return
	}
	c.lanes.Release(sessionID)
}

func (c *Client) handshake(ctx context.Context, e *cachedSession) {
	if !c.cache.isCurrent(e) {
		return
	}
	if err := e.handle.Connect(ctx); err != nil {
		c.emitError(e.sessionID, wlerr.CodeWalletConnectTransportFailure,
			wlerr.Wrap(err, wlerr.CodeWalletConnectTransportFailure, "session handshake failed",
				wlerr.FieldSessionID(e.sessionID)))
	}
}

func (c *Client) closeHandle(e *cachedSession) {
	if err := e.handle.Close(); err != nil {
		slog.Debug("closing session handle",
			"session_id", e.sessionID,
			"error", err)
	}
}

// teardown removes every trace of a session: an in-flight request is
// rejected, the peer is notified when notifyPeer is set, the handle and row
// are dropped and one SessionDeleteEvent is emitted if anything was removed.
func (c *Client) teardown(ctx context.Context, sessionID string, notifyPeer bool) {
	removed := false

	if e, ok := c.cache.get(sessionID); ok {
		topic := c.cache.topicOf(e)
		c.cache.removeEntry(e)
		removed = true

		if reqID, busy := c.gate.Clear(topic); busy {
			if err := e.handle.RejectRequest(ctx, reqID, protocol.Reject(protocol.RejectSessionClosed)); err != nil {
				slog.Warn("rejecting in-flight request on teardown",
					"session_id", sessionID,
					"request_id", reqID,
					"error", err)
			}
		}
		if notifyPeer {
			if err := e.handle.Kill(ctx); err != nil {
				slog.Warn("kill session",
					"session_id", sessionID,
					"error", err)
			}
		}
		c.closeHandle(e)
	}

	_, err := c.store.GetByID(ctx, sessionID)
	switch {
	case err == nil:
		if err := c.store.DeleteByID(ctx, sessionID); err != nil {
			c.emitError(sessionID, wlerr.CodeStoreDatabaseFailure, err)
		} else {
			removed = true
		}
	case !wlerr.IsNotFound(err):
		c.emitError(sessionID, wlerr.CodeStoreDatabaseFailure, err)
	}

	if removed {
		slog.Info("session removed", "session_id", sessionID)
		c.events.emit(SessionDeleteEvent{SessionID: sessionID})
	}
	c.lanes.Release(sessionID)
}

func (c *Client) project(row *store.Session) *Session {
	_, live := c.cache.get(row.ID)
	return project(row, live)
}

func (c *Client) projectAll(rows []*store.Session) []*Session {
	out := make([]*Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, c.project(row))
	}
	return out
}

func (c *Client) enqueue(ctx context.Context, sessionID, op string, fn func(context.Context) error) {
	if c.closed.Load() {
		slog.Debug("client closed, dropping command",
			"session_id", sessionID,
			"op", op)
		return
	}
	if err := c.lanes.Enqueue(context.WithoutCancel(ctx), sessionID, fn); err != nil {
		slog.Debug("dropping session work",
			"session_id", sessionID,
			"op", op,
			"error", err)
	}
}

func (c *Client) commandFailed(sessionID, op string, err error) {
	c.emitError(sessionID, wlerr.CodeWalletConnectCommandFailure,
		wlerr.Wrap(err, wlerr.CodeWalletConnectCommandFailure, op+" failed",
			wlerr.FieldSessionID(sessionID)))
}

func (c *Client) emitError(sessionID string, code wlerr.Code, err error) {
	slog.Warn("session error",
		"session_id", sessionID,
		"code", code,
		"error", err)
	c.events.emit(SessionErrorEvent{
		SessionID: sessionID,
		Code:      code,
		Err:       err,
		Message:   err.Error(),
	})
}
