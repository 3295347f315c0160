// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package v2adapter implements protocol.Adapter over an injected v2
// SignClient. One SignClient serves every session; the adapter routes relay
// events to handles by topic.
package v2adapter

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

var (
	_ protocol.Adapter = (*Adapter)(nil)
	_ protocol.Handle  = (*handle)(nil)
	_ Handler          = (*Adapter)(nil)
)

// ReasonUserDisconnected is sent to the peer when the wallet ends a session.
var ReasonUserDisconnected = protocol.ErrorResponse{Code: 6000, Message: "User disconnected"}

// Adapter opens v2 sessions over a shared SignClient.
type Adapter struct {
	client SignClient

	mu      sync.Mutex
	handles map[string]*handle // by current topic
}

// New returns an Adapter and registers it as the client's event handler.
func New(client SignClient) *Adapter {
	a := &Adapter{client: client, handles: make(map[string]*handle)}
	client.SetHandler(a)
	return a
}

func (a *Adapter) Version() protocol.Version { return protocol.V2 }

func (a *Adapter) IsValidSessionURL(uri string) bool {
	_, err := ParseURI(uri)
	return err == nil
}

func (a *Adapter) Open(_ context.Context, sessionID, uri string, sink protocol.Sink) (protocol.Handle, error) {
	p, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	h := &handle{adapter: a, sessionID: sessionID, uri: uri, topic: p.Topic, sink: sink}
	a.register(h)
	return h, nil
}

func (a *Adapter) Restore(_ context.Context, s *store.Session, sink protocol.Sink) (protocol.Handle, error) {
	h := &handle{
		adapter:   a,
		sessionID: s.ID,
		topic:     s.Topic,
		sink:      sink,
		settled:   true,
		chainID:   s.ChainID,
	}
	a.register(h)
	return h, nil
}

func (a *Adapter) register(h *handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if old, ok := a.handles[h.Topic()]; ok && old != h {
		slog.Debug("v2adapter: replacing handle", "topic", h.Topic(), "session_id", old.sessionID)
	}
	a.handles[h.Topic()] = h
}

func (a *Adapter) unregister(h *handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	topic := h.Topic()
	if a.handles[topic] == h {
		delete(a.handles, topic)
	}
}

func (a *Adapter) retopic(h *handle, topic string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := h.Topic()
	if a.handles[old] == h {
		delete(a.handles, old)
	}
	h.setTopic(topic)
	a.handles[topic] = h
}

func (a *Adapter) lookup(topic, callback string) *handle {
	a.mu.Lock()
	h, ok := a.handles[topic]
	a.mu.Unlock()
	if !ok {
		slog.Warn("v2adapter: no session for topic", "topic", topic, "callback", callback)
		return nil
	}
	return h
}

// ---------- Handler ----------

func (a *Adapter) OnSessionProposal(p SessionProposal) {
	h := a.lookup(p.PairingTopic, "session_proposal")
	if h == nil {
		return
	}

	ns := p.Namespaces[namespace.Blockchain]
	chainID := ""
	if len(ns.Chains) > 0 {
		chainID = ns.Chains[0]
	}

	h.mu.Lock()
	h.proposalID = p.ID
	h.methods = slices.Clone(ns.Methods)
	h.events = slices.Clone(ns.Events)
	h.peer = p.Proposer
	h.chainID = chainID
	h.mu.Unlock()

	h.sink.Emit(protocol.Proposal{
		EventMeta: h.meta(),
		PeerMeta:  p.Proposer,
		ChainID:   chainID,
		Methods:   slices.Clone(ns.Methods),
		Events:    slices.Clone(ns.Events),
	})
}

func (a *Adapter) OnSessionRequest(r SessionRequest) {
	h := a.lookup(r.Topic, "session_request")
	if h == nil {
		return
	}
	h.sink.Emit(protocol.Request{
		EventMeta: h.meta(),
		ID:        protocol.RequestID(r.ID),
		Method:    r.Method,
		Params:    r.Params,
		ChainID:   r.ChainID,
	})
}

func (a *Adapter) OnSessionDelete(topic string) {
	h := a.lookup(topic, "session_delete")
	if h == nil {
		return
	}
	a.unregister(h)
	h.sink.Emit(protocol.Disconnected{EventMeta: h.meta(), DeletionNeeded: true})
}

func (a *Adapter) OnConnectionStateChange(connected bool) {
	a.mu.Lock()
	handles := make([]*handle, 0, len(a.handles))
	for _, h := range a.handles {
		handles = append(handles, h)
	}
	a.mu.Unlock()

	for _, h := range handles {
		if connected {
			h.sink.Emit(protocol.Connected{EventMeta: h.meta()})
		} else {
			h.sink.Emit(protocol.Disconnected{EventMeta: h.meta()})
		}
	}
}

func (a *Adapter) OnError(topic string, err error) {
	h := a.lookup(topic, "error")
	if h == nil {
		return
	}
	h.sink.Emit(protocol.Error{EventMeta: h.meta(), Err: err})
}

// ---------- handle ----------

type handle struct {
	adapter   *Adapter
	sessionID string
	uri       string
	sink      protocol.Sink

	mu         sync.Mutex
	topic      string
	settled    bool
	proposalID int64
	peer       store.PeerMeta
	chainID    string
	methods    []string
	events     []string
}

func (h *handle) SessionID() string         { return h.sessionID }
func (h *handle) Version() protocol.Version { return protocol.V2 }

func (h *handle) Topic() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topic
}

func (h *handle) setTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topic = topic
}

func (h *handle) meta() protocol.EventMeta {
	return protocol.EventMeta{SessionID: h.sessionID, Topic: h.Topic()}
}

func (h *handle) Connect(ctx context.Context) error {
	h.mu.Lock()
	settled, topic := h.settled, h.topic
	h.mu.Unlock()

	var err error
	if settled {
		err = h.adapter.client.Subscribe(ctx, topic)
	} else {
		err = h.adapter.client.Pair(ctx, h.uri)
	}
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectTransportFailure, "connecting session %s", h.sessionID)
	}

	h.sink.Emit(protocol.Connected{EventMeta: h.meta()})
	return nil
}

func (h *handle) Approve(ctx context.Context, accounts []string, chainID string) error {
	h.mu.Lock()
	proposalID, methods, events, peer := h.proposalID, h.methods, h.events, h.peer
	h.mu.Unlock()

	if proposalID == 0 {
		return wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "no proposal to approve", wlerr.FieldSessionID(h.sessionID))
	}

	ns := namespace.BuildSession(chainID, accounts, methods, events)
	topic, err := h.adapter.client.ApproveSession(ctx, proposalID, ns)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectCommandFailure, "approving session %s", h.sessionID)
	}

	h.mu.Lock()
	h.settled = true
	h.chainID = chainID
	h.mu.Unlock()
	h.adapter.retopic(h, topic)

	h.sink.Emit(protocol.Approved{
		EventMeta: h.meta(),
		PeerMeta:  peer,
		ChainID:   chainID,
		Accounts:  slices.Clone(accounts),
	})
	return nil
}

func (h *handle) Update(ctx context.Context, accounts []string, chainID string) error {
	h.mu.Lock()
	settled, topic, methods, events := h.settled, h.topic, h.methods, h.events
	h.mu.Unlock()

	if !settled {
		return wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "session is not settled", wlerr.FieldSessionID(h.sessionID))
	}

	ns := namespace.BuildSession(chainID, accounts, methods, events)
	if err := h.adapter.client.UpdateSession(ctx, topic, ns); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectCommandFailure, "updating session %s", h.sessionID)
	}

	h.mu.Lock()
	h.chainID = chainID
	h.mu.Unlock()
	return nil
}

func (h *handle) Reject(ctx context.Context) error {
	h.mu.Lock()
	proposalID := h.proposalID
	h.mu.Unlock()

	defer h.adapter.unregister(h)
	if proposalID == 0 {
		return nil
	}
	if err := h.adapter.client.RejectSession(ctx, proposalID, protocol.Reject(protocol.RejectUserRejected)); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectCommandFailure, "rejecting session %s", h.sessionID)
	}
	return nil
}

func (h *handle) Kill(ctx context.Context) error {
	h.mu.Lock()
	settled, topic := h.settled, h.topic
	h.mu.Unlock()

	defer h.adapter.unregister(h)
	if !settled {
		return nil
	}
	if err := h.adapter.client.Disconnect(ctx, topic, ReasonUserDisconnected); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectCommandFailure, "killing session %s", h.sessionID)
	}
	return nil
}

func (h *handle) Disconnect(ctx context.Context) error {
	topic := h.Topic()
	if err := h.adapter.client.Unsubscribe(ctx, topic); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectTransportFailure, "disconnecting session %s", h.sessionID)
	}
	h.sink.Emit(protocol.Disconnected{EventMeta: h.meta()})
	return nil
}

func (h *handle) ApproveRequest(ctx context.Context, id protocol.RequestID, payload protocol.Payload) error {
	result, err := protocol.MarshalPayload(payload)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "encoding payload", wlerr.FieldRequestID(int64(id)))
	}
	if err := h.adapter.client.Respond(ctx, h.Topic(), int64(id), result); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectCommandFailure, "responding to request %d", id)
	}
	return nil
}

func (h *handle) RejectRequest(ctx context.Context, id protocol.RequestID, resp protocol.ErrorResponse) error {
	if err := h.adapter.client.RespondError(ctx, h.Topic(), int64(id), resp); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectCommandFailure, "rejecting request %d", id)
	}
	return nil
}

func (h *handle) Close() error {
	h.adapter.unregister(h)
	return nil
}
