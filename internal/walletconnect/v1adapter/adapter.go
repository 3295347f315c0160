// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package v1adapter implements protocol.Adapter over the legacy bridge
// protocol in internal/wcv1.
package v1adapter

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	"github.com/sigil-dev/walletlink/internal/wcv1"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

var (
	_ protocol.Adapter = (*Adapter)(nil)
	_ protocol.Handle  = (*handle)(nil)
	_ wcv1.Callback    = (*handle)(nil)
)

// Config configures the v1 adapter.
type Config struct {
	ClientMeta store.PeerMeta
	// DataDir holds wcv1.SessionCacheFileName. Empty keeps state in memory.
	DataDir string
	// Storage overrides the storage derived from DataDir.
	Storage wcv1.Storage
	// Transport overrides the websocket bridge transport.
	Transport wcv1.TransportFactory
}

// Adapter opens v1 sessions.
type Adapter struct {
	cfg wcv1.Config
}

// New returns a v1 Adapter.
func New(cfg Config) *Adapter {
	storage := cfg.Storage
	if storage == nil && cfg.DataDir != "" {
		storage = wcv1.NewFileStorage(cfg.DataDir)
	}
	return &Adapter{cfg: wcv1.Config{
		ClientMeta: wcv1.PeerMeta(cfg.ClientMeta),
		Transport:  cfg.Transport,
		Storage:    storage,
	}}
}

func (a *Adapter) Version() protocol.Version { return protocol.V1 }

func (a *Adapter) IsValidSessionURL(uri string) bool {
	return wcv1.IsValidSessionURL(uri)
}

func (a *Adapter) Open(_ context.Context, sessionID, uri string, sink protocol.Sink) (protocol.Handle, error) {
	u, err := wcv1.ParseURI(uri)
	if err != nil {
		return nil, err
	}

	h := &handle{sessionID: sessionID, topic: u.Topic, sink: sink}
	h.session = wcv1.NewSession(a.cfg, u, h)
	return h, nil
}

func (a *Adapter) Restore(_ context.Context, s *store.Session, sink protocol.Sink) (protocol.Handle, error) {
	h := &handle{sessionID: s.ID, topic: s.Topic, sink: sink}
	sess, err := wcv1.RestoreSession(a.cfg, s.Topic, h)
	if err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeWalletConnectSessionStateFailure, "restoring v1 session %s", s.ID)
	}
	h.session = sess
	return h, nil
}

type handle struct {
	sessionID string
	topic     string
	sink      protocol.Sink
	session   *wcv1.Session
}

func (h *handle) SessionID() string         { return h.sessionID }
func (h *handle) Topic() string             { return h.topic }
func (h *handle) Version() protocol.Version { return protocol.V1 }

func (h *handle) Connect(ctx context.Context) error {
	return h.session.Connect(ctx)
}

func (h *handle) Approve(ctx context.Context, accounts []string, chainID string) error {
	id, err := legacyChainID(chainID)
	if err != nil {
		return err
	}
	return h.session.Approve(ctx, accounts, id)
}

func (h *handle) Update(ctx context.Context, accounts []string, chainID string) error {
	id, err := legacyChainID(chainID)
	if err != nil {
		return err
	}
	return h.session.Update(ctx, accounts, id)
}

func (h *handle) Reject(ctx context.Context) error {
	return h.session.Reject(ctx)
}

func (h *handle) Kill(ctx context.Context) error {
	return h.session.Kill(ctx)
}

func (h *handle) Disconnect(context.Context) error {
	return h.session.Disconnect()
}

func (h *handle) ApproveRequest(ctx context.Context, id protocol.RequestID, payload protocol.Payload) error {
	return h.session.ApproveRequest(ctx, int64(id), payload.WireValue())
}

func (h *handle) RejectRequest(ctx context.Context, id protocol.RequestID, resp protocol.ErrorResponse) error {
	return h.session.RejectRequest(ctx, int64(id), resp.Code, resp.Message)
}

func (h *handle) Close() error {
	return h.session.Disconnect()
}

// ---------- wcv1.Callback ----------

func (h *handle) meta() protocol.EventMeta {
	return protocol.EventMeta{SessionID: h.sessionID, Topic: h.topic}
}

func (h *handle) OnStatus(ev wcv1.StatusEvent) {
	switch ev.Status {
	case wcv1.StatusConnected:
		h.sink.Emit(protocol.Connected{EventMeta: h.meta()})
	case wcv1.StatusDisconnected:
		h.sink.Emit(protocol.Disconnected{EventMeta: h.meta(), Err: ev.Err})
	case wcv1.StatusApproved:
		st := h.session.State()
		var peer store.PeerMeta
		if st.PeerMeta != nil {
			peer = store.PeerMeta(*st.PeerMeta)
		}
		h.sink.Emit(protocol.Approved{
			EventMeta: h.meta(),
			PeerMeta:  peer,
			ChainID:   strconv.FormatInt(st.ChainID, 10),
			Accounts:  st.Accounts,
		})
	case wcv1.StatusClosed:
		h.sink.Emit(protocol.Killed{EventMeta: h.meta()})
	case wcv1.StatusError:
		h.sink.Emit(protocol.Error{EventMeta: h.meta(), Err: ev.Err})
	default:
		slog.Debug("v1adapter: ignoring status", "session_id", h.sessionID, "status", ev.Status)
	}
}

func (h *handle) OnMethodCall(call wcv1.MethodCall) {
	switch c := call.(type) {
	case wcv1.SessionRequest:
		h.sink.Emit(protocol.Proposal{
			EventMeta: h.meta(),
			PeerMeta:  store.PeerMeta(c.PeerMeta),
			ChainID:   strconv.FormatInt(c.ChainID, 10),
			Methods:   namespace.DefaultMethods(),
			Events:    namespace.DefaultEvents(),
		})
	case wcv1.SessionUpdate:
		h.sink.Emit(protocol.Update{
			EventMeta: h.meta(),
			Approved:  c.Approved,
			ChainID:   strconv.FormatInt(c.ChainID, 10),
			Accounts:  slices.Clone(c.Accounts),
		})
	case wcv1.Custom:
		h.sink.Emit(protocol.Request{
			EventMeta: h.meta(),
			ID:        protocol.RequestID(c.ID),
			Method:    c.Method,
			Params:    c.Params,
		})
	default:
		slog.Debug("v1adapter: ignoring method call", "session_id", h.sessionID, "id", call.CallID())
	}
}

func legacyChainID(chainID string) (int64, error) {
	if chainID == "" {
		return wcv1.DefaultChainID, nil
	}
	id, ok := namespace.LegacyChainID(chainID)
	if !ok {
		return 0, wlerr.Errorf(wlerr.CodeWalletConnectRequestInvalid, "chain %q is not valid for a v1 session", chainID)
	}
	return id, nil
}
