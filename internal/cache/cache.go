// Package cache holds the rendered-entry store: a concurrent mapping from
// buffer id to its latest RenderEntry under reader/writer discipline. The
// poll handlers read it at high frequency; the render worker is effectively
// the single writer.
package cache

import (
	"github.com/markview/markview/internal/errors"
	"github.com/markview/markview/internal/types"
)

// Cache maps each buffer id to at most one RenderEntry.
type Cache struct {
	lock    *UpgradableLock
	entries map[types.BufferID]*types.RenderEntry
	closed  bool
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		lock:    NewUpgradableLock(),
		entries: make(map[types.BufferID]*types.RenderEntry),
	}
}

// Exists reports whether an entry is present for id.
func (c *Cache) Exists(id types.BufferID) (bool, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.closed {
		return false, errors.ErrCacheClosed
	}
	_, ok := c.entries[id]
	return ok, nil
}

// Get returns a copy of the entry for id, or nil if none exists. Callers
// receive a clone so they can format it without holding the lock and
// without ever observing a torn update from a concurrent Put.
func (c *Cache) Get(id types.BufferID) (*types.RenderEntry, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.closed {
		return nil, errors.ErrCacheClosed
	}
	return c.entries[id].Clone(), nil
}

// Put replaces the entry for id atomically with respect to readers.
func (c *Cache) Put(id types.BufferID, entry *types.RenderEntry) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return errors.ErrCacheClosed
	}
	c.entries[id] = entry.Clone()
	return nil
}

// Disconnect marks the entry for id as disconnected, if one exists. The
// flag is terminal for that entry: polls answer DISCONNECTED until a fresh
// render replaces it. The existence check runs under the read lock and
// upgrades in place; a contended upgrade falls back to the write lock.
func (c *Cache) Disconnect(id types.BufferID) error {
	c.lock.RLock()
	if c.closed {
		c.lock.RUnlock()
		return errors.ErrCacheClosed
	}
	if _, ok := c.entries[id]; !ok {
		c.lock.RUnlock()
		return nil
	}
	if err := c.lock.Upgrade(); err != nil {
		c.lock.RUnlock()
		c.lock.Lock()
	}
	defer c.lock.Unlock()
	if c.closed {
		return errors.ErrCacheClosed
	}
	if entry, ok := c.entries[id]; ok {
		entry.Disconnected = true
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return errors.ErrCacheClosed
	}
	c.entries = make(map[types.BufferID]*types.RenderEntry)
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.closed {
		return 0, errors.ErrCacheClosed
	}
	return len(c.entries), nil
}

// Close marks the cache closed; every later call fails with ErrCacheClosed.
func (c *Cache) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	c.entries = nil
}
