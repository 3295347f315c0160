// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walletconnect

// CachedTopics exposes the live session topics for white-box testing.
func (c *Client) CachedTopics() []string { return c.cache.Topics() }

// BufferedEvents exposes the number of undelivered events for white-box testing.
func (c *Client) BufferedEvents() int { return c.events.buffered() }

// LiveLanes exposes the number of session lanes held by the pool.
func (c *Client) LiveLanes() int { return c.lanes.Len() }
