// Package cache implements the expiring key-value store: a Redis backend
// with a permanent in-process fallback, expiry enforced at read time.
package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/perimetra/sentinel/pkg/constants"
)

type memoryEntry struct {
	data     []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) >= e.ttl
}

// MemoryCache is the in-process store. Expired entries are treated as absent
// on read and lazily removed; once the entry count exceeds the prune
// threshold, a Set scans the whole map and drops everything expired. There
// is no background timer.
type MemoryCache struct {
	mu             sync.RWMutex
	entries        map[string]memoryEntry
	clock          clock.Clock
	pruneThreshold int
}

// NewMemoryCache creates an in-process cache using the given clock.
func NewMemoryCache(clk clock.Clock) *MemoryCache {
	return &MemoryCache{
		entries:        make(map[string]memoryEntry),
		clock:          clk,
		pruneThreshold: constants.DefaultCachePruneThreshold,
	}
}

// Get returns the value if present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.expired(c.clock.Now()) {
		c.mu.Lock()
		// Re-check under the write lock: the entry may have been replaced.
		if cur, ok := c.entries[key]; ok && cur.expired(c.clock.Now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

// Set stores the value. A ttl of zero means no expiry.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{data: value, storedAt: now, ttl: ttl}

	if len(c.entries) > c.pruneThreshold {
		for k, e := range c.entries {
			if e.expired(now) {
				delete(c.entries, k)
			}
		}
	}
}

// Delete removes a key.
func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all keys matching the glob pattern; empty pattern clears all.
func (c *MemoryCache) Clear(ctx context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		c.entries = make(map[string]memoryEntry)
		return
	}
	for k := range c.entries {
		if ok, err := path.Match(pattern, k); err == nil && ok {
			delete(c.entries, k)
		}
	}
}

// Len reports the current entry count, including not-yet-pruned expired entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
