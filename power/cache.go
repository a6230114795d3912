// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import "sync"

type cacheKey struct {
	property string
	scopeKey string
}

type cacheEntry struct {
	value Value
	epoch uint64
}

// Cache memoizes last-known property values per (property, scope
// unit) for one host. Invalidation is precise: a write removes
// exactly its own key, never unrelated entries. There is no TTL;
// validity is tied to the absence of an intervening write through
// this host's engine. Out-of-band changes by other actors are a
// documented limitation.
//
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	epoch   uint64
	entries map[cacheKey]cacheEntry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]cacheEntry)}
}

// Get returns the cached value and its write epoch for the key.
func (c *Cache) Get(property, scopeKey string) (Value, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{property, scopeKey}]
	if !ok {
		return Value{}, 0, false
	}
	return e.value, e.epoch, true
}

// Put stores a value under the key and returns the epoch assigned to
// it. The epoch advances on every Put, so callers can order
// observations.
func (c *Cache) Put(property, scopeKey string, value Value) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries[cacheKey{property, scopeKey}] = cacheEntry{value: value, epoch: c.epoch}
	return c.epoch
}

// Invalidate removes the key's entry. Removing an absent key is a
// no-op.
func (c *Cache) Invalidate(property, scopeKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{property, scopeKey})
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
