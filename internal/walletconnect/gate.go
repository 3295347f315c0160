// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"sync"

	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
)

// RequestGate allows at most one displayed peer request per topic.
type RequestGate struct {
	mu      sync.Mutex
	ongoing map[string]protocol.RequestID
}

// NewRequestGate returns an empty gate.
func NewRequestGate() *RequestGate {
	return &RequestGate{ongoing: make(map[string]protocol.RequestID)}
}

// HasOngoingRequest reports whether a request is displayed for topic.
func (g *RequestGate) HasOngoingRequest(topic string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.ongoing[topic]
	return ok
}

// Add marks id as displayed for topic. It returns false, leaving the gate
// unchanged, when another request already holds the topic.
func (g *RequestGate) Add(topic string, id protocol.RequestID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.ongoing[topic]; busy {
		return false
	}
	g.ongoing[topic] = id
	return true
}

// Clear releases topic and returns the request that held it, if any.
func (g *RequestGate) Clear(topic string) (protocol.RequestID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.ongoing[topic]
	delete(g.ongoing, topic)
	return id, ok
}

// ClearIf releases topic only when id is the request holding it.
func (g *RequestGate) ClearIf(topic string, id protocol.RequestID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if held, ok := g.ongoing[topic]; !ok || held != id {
		return false
	}
	delete(g.ongoing, topic)
	return true
}

// Move re-keys a held entry when a session settles on a new topic.
func (g *RequestGate) Move(from, to string) {
	if from == to {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.ongoing[from]; ok {
		delete(g.ongoing, from)
		g.ongoing[to] = id
	}
}
