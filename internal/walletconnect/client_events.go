// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// sinkFor routes adapter events for e onto its session lane.
func (c *Client) sinkFor(e *cachedSession) protocol.Sink {
	return protocol.SinkFunc(func(ev protocol.Event) {
		c.enqueue(context.Background(), e.sessionID, "event", func(ctx context.Context) error {
			c.handleEvent(ctx, e, ev)
			return nil
		})
	})
}

func (c *Client) handleEvent(ctx context.Context, e *cachedSession, ev protocol.Event) {
	if !c.cache.isCurrent(e) {
		slog.Debug("dropping event from replaced handle",
			"session_id", e.sessionID,
			"event", fmt.Sprintf("%T", ev))
		c.releaseIfGone(ctx, e.sessionID)
		return
	}

	switch ev := ev.(type) {
	case protocol.Proposal:
		c.onProposal(e, ev)
	case protocol.Approved:
		c.onApproved(ctx, e, ev)
	case protocol.Update:
		c.onUpdate(ctx, e, ev)
	case protocol.Request:
		c.onRequest(ctx, e, ev)
	case protocol.Connected:
		c.onConnected(ctx, e)
	case protocol.Disconnected:
		c.onDisconnected(ctx, e, ev)
	case protocol.Error:
		code := wlerr.CodeOf(ev.Err)
		if code == "" {
			code = wlerr.CodeWalletConnectTransportFailure
		}
		c.emitError(e.sessionID, code, ev.Err)
	case protocol.Killed:
		c.teardown(ctx, e.sessionID, false)
	default:
		slog.Warn("unhandled adapter event",
			"session_id", e.sessionID,
			"event", fmt.Sprintf("%T", ev))
	}
}

func (c *Client) onProposal(e *cachedSession, ev protocol.Proposal) {
	e.setProposal(proposalDetails{
		PeerMeta: ev.PeerMeta,
		ChainID:  ev.ChainID,
		Methods:  slices.Clone(ev.Methods),
		Events:   slices.Clone(ev.Events),
	})

	c.events.emit(SessionProposalEvent{
		SessionID:                    e.sessionID,
		Version:                      e.version,
		PeerMeta:                     ev.PeerMeta,
		ChainID:                      ev.ChainID,
		Namespaces:                   namespace.BuildProposal(ev.ChainID, ev.Methods, ev.Events, strconv.Itoa(int(e.version))),
		FallbackBrowserGroupResponse: e.fallback,
	})
}

func (c *Client) onApproved(ctx context.Context, e *cachedSession, ev protocol.Approved) {
	from := c.cache.topicOf(e)
	topic := ev.Topic
	if topic == "" {
		topic = from
	}
	if topic != from {
		if displaced := c.cache.retopic(e, topic); displaced != nil {
			c.closeHandle(displaced)
			c.releaseIfGone(ctx, displaced.sessionID)
		}
		c.gate.Move(from, topic)
	}

	details, _ := e.proposalDetails()
	peer := ev.PeerMeta
	if peer.Name == "" && peer.URL == "" {
		peer = details.PeerMeta
	}
	chainID := ev.ChainID
	if chainID == "" {
		chainID = details.ChainID
	}
	accounts := dedupe(ev.Accounts)
	if err := store.ValidateAccounts(accounts); err != nil {
		c.emitError(e.sessionID, wlerr.CodeWalletConnectAccountsMissing, err)
		return
	}

	_, err := c.store.GetByID(ctx, e.sessionID)
	switch {
	case err == nil:
		// Re-approval of a restored session only refreshes links.
		if err := c.store.InsertAccountLinks(ctx, e.sessionID, accounts); err != nil {
			c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
			return
		}
		if err := c.store.SetConnected(ctx, e.sessionID); err != nil {
			c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
			return
		}
	case wlerr.IsNotFound(err):
		row := &store.Session{
			ID:                           e.sessionID,
			Version:                      e.version,
			Topic:                        topic,
			PeerMeta:                     peer,
			ChainID:                      chainID,
			FallbackBrowserGroupResponse: e.fallback,
			IsConnected:                  true,
			CreatedAt:                    c.opts.now(),
		}
		if err := c.store.Insert(ctx, row, accounts); err != nil {
			c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
			return
		}
	default:
		c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
		return
	}
	e.setRetries(0)

	row, err := c.store.GetByID(ctx, e.sessionID)
	if err != nil {
		c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
		return
	}
	slog.Info("session approved",
		"session_id", e.sessionID,
		"topic", topic,
		"version", int(e.version))
	c.events.emit(SessionSettleEvent{Session: c.project(row)})
}

func (c *Client) onUpdate(ctx context.Context, e *cachedSession, ev protocol.Update) {
	if _, err := c.store.GetByID(ctx, e.sessionID); err != nil {
		if wlerr.IsNotFound(err) {
			logMissingSession(e.sessionID, "update")
		} else {
			c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
		}
		return
	}

	c.events.emit(SessionUpdateEvent{
		SessionID: e.sessionID,
		Approved:  ev.Approved,
		ChainID:   ev.ChainID,
		Accounts:  slices.Clone(ev.Accounts),
	})
	if !ev.Approved {
		c.teardown(ctx, e.sessionID, false)
	}
}

func (c *Client) onRequest(ctx context.Context, e *cachedSession, ev protocol.Request) {
	row, err := c.store.GetByID(ctx, e.sessionID)
	if err != nil {
		if wlerr.IsNotFound(err) {
			logMissingSession(e.sessionID, "request")
		} else {
			c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
		}
		return
	}

	if code, ok := checkRequest(ev); !ok {
		slog.Info("rejecting malformed request",
			"session_id", e.sessionID,
			"request_id", ev.ID,
			"method", ev.Method,
			"code", code)
		c.rejectPeerRequest(ctx, e, ev.ID, code)
		return
	}

	topic := c.cache.topicOf(e)
	if !c.gate.Add(topic, ev.ID) {
		slog.Info("request already displayed for topic",
			"session_id", e.sessionID,
			"topic", topic,
			"request_id", ev.ID,
			"code", wlerr.CodeWalletConnectRequestBusy)
		c.rejectPeerRequest(ctx, e, ev.ID, protocol.RejectAlreadyDisplayed)
		return
	}

	c.events.emit(SessionRequestEvent{
		Session:   c.project(row),
		RequestID: NewRequestIdentifier(ev.ID),
		Method:    ev.Method,
		Params:    ev.Params,
		ChainID:   ev.ChainID,
	})
}

func (c *Client) rejectPeerRequest(ctx context.Context, e *cachedSession, id protocol.RequestID, code int) {
	if err := e.handle.RejectRequest(ctx, id, protocol.Reject(code)); err != nil {
		c.commandFailed(e.sessionID, "reject_request", err)
	}
}

func (c *Client) onConnected(ctx context.Context, e *cachedSession) {
	if err := c.store.SetConnected(ctx, e.sessionID); err != nil {
		c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
	}
	e.setRetries(0)
	c.events.emit(ConnectionChangedEvent{SessionID: e.sessionID, Connected: true})
}

func (c *Client) onDisconnected(ctx context.Context, e *cachedSession, ev protocol.Disconnected) {
	if ev.DeletionNeeded {
		c.teardown(ctx, e.sessionID, false)
		return
	}
	if ev.Err != nil {
		slog.Info("session connection lost",
			"session_id", e.sessionID,
			"error", ev.Err)
	}
	if err := c.store.SetDisconnected(ctx, e.sessionID); err != nil {
		c.emitError(e.sessionID, wlerr.CodeStoreDatabaseFailure, err)
	}
	c.events.emit(ConnectionChangedEvent{SessionID: e.sessionID, Connected: false})
}

// checkRequest validates a peer request before it reaches the application.
// Params must be a non-empty JSON array.
func checkRequest(ev protocol.Request) (int, bool) {
	if ev.Method == "" {
		return protocol.RejectInvalidInput, false
	}
	if !slices.Contains(namespace.DefaultMethods(), ev.Method) {
		return protocol.RejectUnsupported, false
	}
	raw := bytes.TrimSpace(ev.Params)
	if len(raw) == 0 || raw[0] != '[' {
		return protocol.RejectInvalidInput, false
	}
	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil || len(params) == 0 {
		return protocol.RejectInvalidInput, false
	}
	return 0, true
}

func logMissingSession(sessionID, callback string) {
	slog.Warn(fmt.Sprintf("session not found for id %s in callback %s", sessionID, callback),
		"session_id", sessionID,
		"callback", callback,
		"code", wlerr.CodeWalletConnectCallbackNotFound)
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
