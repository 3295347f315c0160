// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

import (
	"sort"
	"sync"

	"github.com/sigil-dev/walletlink/internal/store"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
)

// proposalDetails holds what the dApp proposed until a durable row exists.
type proposalDetails struct {
	PeerMeta store.PeerMeta
	ChainID  string
	Methods  []string
	Events   []string
}

// cachedSession is the live counterpart of a session. Its topic is owned by
// SessionCache; the remaining mutable fields are guarded by mu.
type cachedSession struct {
	sessionID string
	version   protocol.Version
	handle    protocol.Handle
	fallback  string
	topic     string

	mu         sync.Mutex
	proposal   *proposalDetails
	retryCount int
}

func (e *cachedSession) setProposal(p proposalDetails) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proposal = &p
}

func (e *cachedSession) proposalDetails() (proposalDetails, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proposal == nil {
		return proposalDetails{}, false
	}
	return *e.proposal, true
}

func (e *cachedSession) retries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryCount
}

func (e *cachedSession) setRetries(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryCount = n
}

// SessionCache indexes live sessions by session ID and by topic. There is at
// most one entry per topic and per session ID.
type SessionCache struct {
	mu        sync.RWMutex
	bySession map[string]*cachedSession
	byTopic   map[string]*cachedSession
}

func newSessionCache() *SessionCache {
	return &SessionCache{
		bySession: make(map[string]*cachedSession),
		byTopic:   make(map[string]*cachedSession),
	}
}

// put registers e and returns the entries it displaced, either by sharing its
// session ID or its topic. Callers close the displaced handles.
func (c *SessionCache) put(e *cachedSession) []*cachedSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	var replaced []*cachedSession
	if old, ok := c.bySession[e.sessionID]; ok && old != e {
		c.dropLocked(old)
		replaced = append(replaced, old)
	}
	if old, ok := c.byTopic[e.topic]; ok && old != e {
		c.dropLocked(old)
		replaced = append(replaced, old)
	}
	c.bySession[e.sessionID] = e
	c.byTopic[e.topic] = e
	return replaced
}

// retopic moves e to a new topic key. An unrelated entry already holding the
// topic is displaced and returned.
func (c *SessionCache) retopic(e *cachedSession, topic string) *cachedSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bySession[e.sessionID] != e || e.topic == topic {
		return nil
	}
	var displaced *cachedSession
	if old, ok := c.byTopic[topic]; ok && old != e {
		c.dropLocked(old)
		displaced = old
	}
	delete(c.byTopic, e.topic)
	e.topic = topic
	c.byTopic[topic] = e
	return displaced
}

func (c *SessionCache) dropLocked(e *cachedSession) {
	if c.bySession[e.sessionID] == e {
		delete(c.bySession, e.sessionID)
	}
	if c.byTopic[e.topic] == e {
		delete(c.byTopic, e.topic)
	}
}

func (c *SessionCache) get(sessionID string) (*cachedSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.bySession[sessionID]
	return e, ok
}

func (c *SessionCache) getByTopic(topic string) (*cachedSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byTopic[topic]
	return e, ok
}

// isCurrent reports whether e is still the registered entry for its session.
func (c *SessionCache) isCurrent(e *cachedSession) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bySession[e.sessionID] == e
}

// topicOf returns the topic e is indexed under.
func (c *SessionCache) topicOf(e *cachedSession) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return e.topic
}

// remove evicts the entry for sessionID.
func (c *SessionCache) remove(sessionID string) (*cachedSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.bySession[sessionID]
	if ok {
		c.dropLocked(e)
	}
	return e, ok
}

// removeEntry evicts e only if it is still registered.
func (c *SessionCache) removeEntry(e *cachedSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bySession[e.sessionID] != e {
		return false
	}
	c.dropLocked(e)
	return true
}

// all returns a snapshot of the live entries ordered by session ID.
func (c *SessionCache) all() []*cachedSession {
	c.mu.RLock()
	out := make([]*cachedSession, 0, len(c.bySession))
	for _, e := range c.bySession {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].sessionID < out[j].sessionID })
	return out
}

// Topics returns the indexed topics in sorted order.
func (c *SessionCache) Topics() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.byTopic))
	for t := range c.byTopic {
		out = append(out, t)
	}
	c.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Len returns the number of live sessions.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySession)
}
