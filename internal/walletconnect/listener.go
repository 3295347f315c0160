// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sigil-dev/walletlink/internal/namespace"
	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// DefaultEventBufferSize bounds the events held while no listener is
// subscribed.
const DefaultEventBufferSize = 256

// Event is any notification delivered to listeners.
type Event interface {
	// Kind names the event for wire encodings such as SSE.
	Kind() string
	// Subject returns the ID of the session the event concerns, or "" for
	// client-wide failures.
	Subject() string
}

// SessionProposalEvent announces a dApp proposal awaiting approval.
type SessionProposalEvent struct {
	SessionID                    string                        `json:"session_id"`
	Version                      protocol.Version              `json:"version"`
	PeerMeta                     store.PeerMeta                `json:"peer_meta"`
	ChainID                      string                        `json:"chain_id"`
	Namespaces                   map[string]namespace.Proposal `json:"namespaces"`
	FallbackBrowserGroupResponse string                        `json:"fallback_browser_group_response,omitempty"`
}

// SessionUpdateEvent relays a peer-originated session update.
type SessionUpdateEvent struct {
	SessionID string   `json:"session_id"`
	Approved  bool     `json:"approved"`
	ChainID   string   `json:"chain_id"`
	Accounts  []string `json:"accounts"`
}

// SessionSettleEvent reports that an approved session was persisted.
type SessionSettleEvent struct {
	Session *Session `json:"session"`
}

// SessionDeleteEvent reports that a session was torn down.
type SessionDeleteEvent struct {
	SessionID string `json:"session_id"`
}

// SessionErrorEvent reports a failed command or protocol error.
type SessionErrorEvent struct {
	SessionID string     `json:"session_id,omitempty"`
	Code      wlerr.Code `json:"code"`
	Err       error      `json:"-"`
	Message   string     `json:"message"`
}

// SessionRequestEvent carries a peer request that passed the request gate.
type SessionRequestEvent struct {
	Session   *Session          `json:"session"`
	RequestID RequestIdentifier `json:"request_id"`
	Method    string            `json:"method"`
	Params    json.RawMessage   `json:"params"`
	ChainID   string            `json:"chain_id,omitempty"`
}

// ConnectionChangedEvent reports relay connectivity for a session.
type ConnectionChangedEvent struct {
	SessionID string `json:"session_id"`
	Connected bool   `json:"connected"`
}

func (SessionProposalEvent) Kind() string   { return "session_proposal" }
func (SessionUpdateEvent) Kind() string     { return "session_update" }
func (SessionSettleEvent) Kind() string     { return "session_settle" }
func (SessionDeleteEvent) Kind() string     { return "session_delete" }
func (SessionErrorEvent) Kind() string      { return "session_error" }
func (SessionRequestEvent) Kind() string    { return "session_request" }
func (ConnectionChangedEvent) Kind() string { return "connection_changed" }

func (e SessionProposalEvent) Subject() string   { return e.SessionID }
func (e SessionUpdateEvent) Subject() string     { return e.SessionID }
func (e SessionSettleEvent) Subject() string     { return e.Session.ID }
func (e SessionDeleteEvent) Subject() string     { return e.SessionID }
func (e SessionErrorEvent) Subject() string      { return e.SessionID }
func (e SessionRequestEvent) Subject() string    { return e.Session.ID }
func (e ConnectionChangedEvent) Subject() string { return e.SessionID }

// Listener receives client events. Callbacks run on the emitting session's
// lane and must not block or call Client.Subscribe.
type Listener interface {
	OnSessionProposal(ev SessionProposalEvent)
	OnSessionUpdate(ev SessionUpdateEvent)
	OnSessionSettle(ev SessionSettleEvent)
	OnSessionDelete(ev SessionDeleteEvent)
	OnSessionError(ev SessionErrorEvent)
	OnSessionRequest(ev SessionRequestEvent)
	OnConnectionChanged(ev ConnectionChangedEvent)
}

// ListenerFunc adapts a single function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnSessionProposal(ev SessionProposalEvent)     { f(ev) }
func (f ListenerFunc) OnSessionUpdate(ev SessionUpdateEvent)         { f(ev) }
func (f ListenerFunc) OnSessionSettle(ev SessionSettleEvent)         { f(ev) }
func (f ListenerFunc) OnSessionDelete(ev SessionDeleteEvent)         { f(ev) }
func (f ListenerFunc) OnSessionError(ev SessionErrorEvent)           { f(ev) }
func (f ListenerFunc) OnSessionRequest(ev SessionRequestEvent)       { f(ev) }
func (f ListenerFunc) OnConnectionChanged(ev ConnectionChangedEvent) { f(ev) }

func deliver(l Listener, ev Event) {
	switch e := ev.(type) {
	case SessionProposalEvent:
		l.OnSessionProposal(e)
	case SessionUpdateEvent:
		l.OnSessionUpdate(e)
	case SessionSettleEvent:
		l.OnSessionSettle(e)
	case SessionDeleteEvent:
		l.OnSessionDelete(e)
	case SessionErrorEvent:
		l.OnSessionError(e)
	case SessionRequestEvent:
		l.OnSessionRequest(e)
	case ConnectionChangedEvent:
		l.OnConnectionChanged(e)
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// dispatcher fans events out to subscribed listeners. Events emitted with no
// subscriber are buffered and handed, in order, to the first listener that
// subscribes. When the buffer is full the oldest event is dropped.
type dispatcher struct {
	// deliverMu serialises delivery so buffered events reach a new listener
	// before anything emitted after it subscribed.
	deliverMu sync.Mutex

	mu        sync.Mutex
	subs      []subscription
	nextID    uint64
	buffer    []Event
	bufferCap int
}

func newDispatcher(bufferCap int) *dispatcher {
	if bufferCap <= 0 {
		bufferCap = DefaultEventBufferSize
	}
	return &dispatcher{bufferCap: bufferCap}
}

func (d *dispatcher) emit(ev Event) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	if len(d.subs) == 0 {
		if len(d.buffer) >= d.bufferCap {
			dropped := d.buffer[0]
			d.buffer = d.buffer[1:]
			slog.Warn("event buffer full, dropping oldest event",
				"kind", dropped.Kind(),
				"session_id", dropped.Subject(),
				"capacity", d.bufferCap)
		}
		d.buffer = append(d.buffer, ev)
		d.mu.Unlock()
		return
	}
	subs := append([]subscription(nil), d.subs...)
	d.mu.Unlock()

	for _, s := range subs {
		deliver(s.listener, ev)
	}
}

func (d *dispatcher) subscribe(l Listener) func() {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, listener: l})
	var backlog []Event
	if len(d.subs) == 1 {
		backlog = d.buffer
		d.buffer = nil
	}
	d.mu.Unlock()

	for _, ev := range backlog {
		deliver(l, ev)
	}

	var once sync.Once
	return func() {
		once.Do(func() { d.unsubscribe(id) })
	}
}

func (d *dispatcher) unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffer)
}
