// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// DefaultChainID is used when a dApp omits chainId from its session request.
const DefaultChainID int64 = 4160

const rejectSessionCode = -32000

// Status is a connection-level state change reported to the Callback.
type Status int

const (
	StatusConnected Status = iota + 1
	StatusDisconnected
	StatusApproved
	// StatusClosed means the peer ended the session.
	StatusClosed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusApproved:
		return "approved"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusEvent carries a Status and, for Disconnected and Error, the cause.
type StatusEvent struct {
	Status Status
	Err    error
}

// MethodCall is a peer-initiated JSON-RPC request.
type MethodCall interface {
	CallID() int64
}

// SessionRequest is the dApp's initial proposal.
type SessionRequest struct {
	ID       int64
	PeerID   string
	PeerMeta PeerMeta
	ChainID  int64
}

// SessionUpdate is a wc_sessionUpdate sent by the dApp. Approved=false ends
// the session.
type SessionUpdate struct {
	ID       int64
	Approved bool
	ChainID  int64
	Accounts []string
}

// Custom is any other request, typically a signing method.
type Custom struct {
	ID     int64
	Method string
	Params json.RawMessage
}

func (c SessionRequest) CallID() int64 { return c.ID }
func (c SessionUpdate) CallID() int64  { return c.ID }
func (c Custom) CallID() int64         { return c.ID }

// Callback receives session notifications. Methods may be invoked from the
// transport's read goroutine or from the goroutine issuing a command and
// must not block.
type Callback interface {
	OnStatus(ev StatusEvent)
	OnMethodCall(call MethodCall)
}

// Config is shared by every session of a client.
type Config struct {
	ClientMeta PeerMeta
	// Transport defaults to NewWebSocketTransport.
	Transport TransportFactory
	// Storage defaults to an in-memory store.
	Storage Storage
}

func (c Config) withDefaults() Config {
	if c.Transport == nil {
		c.Transport = NewWebSocketTransport
	}
	if c.Storage == nil {
		c.Storage = NewMemoryStorage()
	}
	return c
}

// Session is the wallet side of one v1 session.
type Session struct {
	cfg Config
	cb  Callback
	key []byte

	mu         sync.Mutex
	state      SessionState
	transport  Transport
	terminated bool
}

// NewSession creates a session for a freshly scanned URI.
func NewSession(cfg Config, uri *URI, cb Callback) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg: cfg,
		cb:  cb,
		key: slices.Clone(uri.Key),
		state: SessionState{
			Topic:      uri.Topic,
			Bridge:     uri.Bridge,
			Key:        hex.EncodeToString(uri.Key),
			ClientID:   uuid.NewString(),
			ClientMeta: cfg.ClientMeta,
		},
	}
}

// RestoreSession rebuilds a session from the state saved under topic.
func RestoreSession(cfg Config, topic string, cb Callback) (*Session, error) {
	cfg = cfg.withDefaults()

	state, err := cfg.Storage.Load(topic)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(state.Key)
	if err != nil || len(key) != keyLength {
		return nil, wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "stored session key is invalid", wlerr.FieldTopic(topic))
	}

	return &Session{cfg: cfg, cb: cb, key: key, state: *state}, nil
}

// Topic returns the handshake topic, which identifies the session.
func (s *Session) Topic() string {
	return s.state.Topic
}

// State returns a snapshot of the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Accounts = slices.Clone(s.state.Accounts)
	return st
}

// Connect opens the bridge connection and subscribes to the session topics.
// It is a no-op while already connected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "session is closed", wlerr.FieldTopic(s.state.Topic))
	}
	if s.transport != nil {
		s.mu.Unlock()
		return nil
	}
	t := s.cfg.Transport(s.state.Bridge)
	s.transport = t
	topics := []string{s.state.ClientID}
	if !s.state.Approved {
		topics = append(topics, s.state.Topic)
	}
	s.mu.Unlock()

	err := t.Connect(ctx, s.handleMessage, func(err error) { s.handleClose(t, err) })
	if err == nil {
		for _, topic := range topics {
			if err = t.Send(ctx, SocketMessage{Topic: topic, Type: SocketSubscribe, Silent: true}); err != nil {
				break
			}
		}
	}
	if err != nil {
		s.mu.Lock()
		if s.transport == t {
			s.transport = nil
		}
		s.mu.Unlock()
		t.Close() //nolint:errcheck
		return err
	}

	s.cb.OnStatus(StatusEvent{Status: StatusConnected})
	return nil
}

// Approve answers the pending session request.
func (s *Session) Approve(ctx context.Context, accounts []string, chainID int64) error {
	s.mu.Lock()
	handshakeID, peerID := s.state.HandshakeID, s.state.PeerID
	clientID, clientMeta := s.state.ClientID, s.state.ClientMeta
	s.mu.Unlock()

	if handshakeID == 0 || peerID == "" {
		return wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "no session request to approve", wlerr.FieldTopic(s.state.Topic))
	}

	networkID := int64(0)
	msg, err := newResult(handshakeID, sessionParams{
		Approved:  true,
		ChainID:   &chainID,
		NetworkID: &networkID,
		Accounts:  accounts,
		PeerID:    clientID,
		PeerMeta:  &clientMeta,
	})
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "encoding approval")
	}
	if err := s.send(ctx, peerID, msg, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Approved = true
	s.state.ChainID = chainID
	s.state.Accounts = slices.Clone(accounts)
	snapshot := s.state
	s.mu.Unlock()

	if err := s.cfg.Storage.Save(&snapshot); err != nil {
		return err
	}

	s.cb.OnStatus(StatusEvent{Status: StatusApproved})
	return nil
}

// Update sends new accounts and chain to the peer.
func (s *Session) Update(ctx context.Context, accounts []string, chainID int64) error {
	s.mu.Lock()
	approved, peerID := s.state.Approved, s.state.PeerID
	s.mu.Unlock()

	if !approved {
		return wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "session is not approved", wlerr.FieldTopic(s.state.Topic))
	}

	msg, err := newRequest(MethodSessionUpdate, []sessionParams{{Approved: true, ChainID: &chainID, Accounts: accounts}})
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "encoding update")
	}
	if err := s.send(ctx, peerID, msg, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.ChainID = chainID
	s.state.Accounts = slices.Clone(accounts)
	snapshot := s.state
	s.mu.Unlock()

	return s.cfg.Storage.Save(&snapshot)
}

// Reject declines the pending session request and closes the session.
func (s *Session) Reject(ctx context.Context) error {
	s.mu.Lock()
	handshakeID, peerID := s.state.HandshakeID, s.state.PeerID
	s.mu.Unlock()

	var err error
	if handshakeID != 0 && peerID != "" {
		err = s.send(ctx, peerID, newError(handshakeID, rejectSessionCode, "Session Rejected"), true)
	}
	return errors.Join(err, s.terminate())
}

// Kill ends an approved session, notifying the peer first.
func (s *Session) Kill(ctx context.Context) error {
	s.mu.Lock()
	approved, peerID, chainID := s.state.Approved, s.state.PeerID, s.state.ChainID
	s.mu.Unlock()

	var err error
	if approved && peerID != "" {
		var msg *rpcMessage
		msg, err = newRequest(MethodSessionUpdate, []sessionParams{{Approved: false, ChainID: &chainID, Accounts: []string{}}})
		if err == nil {
			err = s.send(ctx, peerID, msg, true)
		}
	}
	return errors.Join(err, s.terminate())
}

// ApproveRequest responds to a peer request with result.
func (s *Session) ApproveRequest(ctx context.Context, id int64, result any) error {
	msg, err := newResult(id, result)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "encoding result", wlerr.FieldRequestID(id))
	}
	return s.send(ctx, s.peerID(), msg, true)
}

// RejectRequest responds to a peer request with an error.
func (s *Session) RejectRequest(ctx context.Context, id int64, code int, message string) error {
	return s.send(ctx, s.peerID(), newError(id, code, message), true)
}

// Disconnect closes the bridge connection but keeps the session state so it
// can be resumed with Connect.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}

func (s *Session) peerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PeerID
}

// terminate closes the transport without reporting Disconnected and drops
// the stored state.
func (s *Session) terminate() error {
	s.mu.Lock()
	s.terminated = true
	t := s.transport
	s.transport = nil
	s.mu.Unlock()

	var closeErr error
	if t != nil {
		closeErr = t.Close()
	}
	return errors.Join(closeErr, s.cfg.Storage.Remove(s.state.Topic))
}

func (s *Session) send(ctx context.Context, topic string, msg *rpcMessage, silent bool) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return wlerr.New(wlerr.CodeWalletConnectTransportFailure, "session is not connected", wlerr.FieldTopic(s.state.Topic))
	}
	if topic == "" {
		return wlerr.New(wlerr.CodeWalletConnectSessionStateFailure, "peer is unknown", wlerr.FieldTopic(s.state.Topic))
	}

	plaintext, err := json.Marshal(msg)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "encoding message")
	}
	sealed, err := Encrypt(plaintext, s.key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(sealed)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "encoding payload")
	}

	return t.Send(ctx, SocketMessage{Topic: topic, Type: SocketPublish, Payload: string(payload), Silent: silent})
}

func (s *Session) handleClose(t Transport, err error) {
	s.mu.Lock()
	current := s.transport == t
	if current {
		s.transport = nil
	}
	terminated := s.terminated
	s.mu.Unlock()

	if terminated || !current {
		return
	}
	s.cb.OnStatus(StatusEvent{Status: StatusDisconnected, Err: err})
}

func (s *Session) handleMessage(sm SocketMessage) {
	if sm.Type != SocketPublish {
		return
	}

	msg, err := s.open(sm.Payload)
	if err != nil {
		s.cb.OnStatus(StatusEvent{Status: StatusError, Err: err})
		return
	}

	if !msg.isRequest() {
		slog.Debug("wcv1: response received", "topic", s.state.Topic, "id", msg.ID, "error", msg.Error)
		return
	}

	switch msg.Method {
	case MethodSessionRequest:
		s.handleSessionRequest(msg)
	case MethodSessionUpdate:
		s.handleSessionUpdate(msg)
	default:
		s.cb.OnMethodCall(Custom{ID: msg.ID, Method: msg.Method, Params: msg.Params})
	}
}

func (s *Session) handleSessionRequest(msg *rpcMessage) {
	var params []sessionRequestParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || len(params) == 0 || params[0].PeerID == "" {
		s.cb.OnStatus(StatusEvent{Status: StatusError, Err: wlerr.New(wlerr.CodeWalletConnectPayloadInvalid,
			"malformed session request", wlerr.FieldTopic(s.state.Topic))})
		return
	}

	p := params[0]
	chainID := DefaultChainID
	if p.ChainID != nil {
		chainID = *p.ChainID
	}
	meta := p.PeerMeta

	s.mu.Lock()
	s.state.HandshakeID = msg.ID
	s.state.PeerID = p.PeerID
	s.state.PeerMeta = &meta
	s.state.ChainID = chainID
	s.mu.Unlock()

	s.cb.OnMethodCall(SessionRequest{ID: msg.ID, PeerID: p.PeerID, PeerMeta: meta, ChainID: chainID})
}

func (s *Session) handleSessionUpdate(msg *rpcMessage) {
	var params []sessionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || len(params) == 0 {
		s.cb.OnStatus(StatusEvent{Status: StatusError, Err: wlerr.New(wlerr.CodeWalletConnectPayloadInvalid,
			"malformed session update", wlerr.FieldTopic(s.state.Topic))})
		return
	}

	p := params[0]
	s.mu.Lock()
	chainID := s.state.ChainID
	if p.ChainID != nil {
		chainID = *p.ChainID
	}
	s.mu.Unlock()

	update := SessionUpdate{ID: msg.ID, Approved: p.Approved, ChainID: chainID, Accounts: p.Accounts}

	if !p.Approved {
		if err := s.terminate(); err != nil {
			slog.Warn("wcv1: closing session after peer update", "topic", s.state.Topic, "error", err)
		}
		s.cb.OnMethodCall(update)
		s.cb.OnStatus(StatusEvent{Status: StatusClosed})
		return
	}

	s.mu.Lock()
	s.state.ChainID = chainID
	if p.Accounts != nil {
		s.state.Accounts = slices.Clone(p.Accounts)
	}
	snapshot := s.state
	s.mu.Unlock()

	if snapshot.Approved {
		if err := s.cfg.Storage.Save(&snapshot); err != nil {
			slog.Warn("wcv1: saving session after peer update", "topic", s.state.Topic, "error", err)
		}
	}
	s.cb.OnMethodCall(update)
}

func (s *Session) open(payload string) (*rpcMessage, error) {
	var sealed EncryptedPayload
	if err := json.Unmarshal([]byte(payload), &sealed); err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "decoding payload")
	}
	plaintext, err := Decrypt(&sealed, s.key)
	if err != nil {
		return nil, err
	}
	var msg rpcMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "decoding message")
	}
	return &msg, nil
}
