// Package cache holds assembled query views in memory with a TTL so the
// read path can skip the store for recently served queries.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

// DefaultTTL applies when the configured TTL is not positive.
const DefaultTTL = 300 * time.Second

const sweepInterval = 60 * time.Second

type entry struct {
	view      *model.QueryView
	expiresAt time.Time
}

// ViewCache is a TTL cache of query views keyed by query ID. Expired
// entries are dropped lazily on read and swept periodically.
type ViewCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	closed  sync.Once
}

// NewViewCache creates a cache with the given TTL and starts the
// background sweeper. Close releases the sweeper.
func NewViewCache(ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ViewCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the cached view for queryID, or nil when absent or expired.
func (c *ViewCache) Get(queryID string) *model.QueryView {
	c.mu.RLock()
	e, ok := c.entries[queryID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; Set may have refreshed it.
		if cur, ok := c.entries[queryID]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, queryID)
		}
		c.mu.Unlock()
		return nil
	}
	return e.view
}

// Set stores the view for queryID, resetting its TTL.
func (c *ViewCache) Set(queryID string, view *model.QueryView) {
	c.mu.Lock()
	c.entries[queryID] = entry{view: view, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the entry for queryID and reports whether one existed.
func (c *ViewCache) Invalidate(queryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[queryID]
	if ok {
		delete(c.entries, queryID)
	}
	return ok
}

// Len reports the number of entries, including any not yet swept.
func (c *ViewCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweeper.
func (c *ViewCache) Close() {
	c.closed.Do(func() { close(c.done) })
}

func (c *ViewCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *ViewCache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()
	if removed > 0 {
		zap.L().Debug("cache sweep", zap.Int("removed", removed), zap.Int("remaining", remaining))
	}
}
