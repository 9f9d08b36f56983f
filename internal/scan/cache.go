package scan

import (
	"sync"
	"time"

	"polyscout/internal/market"
)

// Cache holds the last fallback catalog sweep so back-to-back scans do
// not hammer the exhaustive endpoint.
type Cache struct {
	mu        sync.RWMutex
	snapshots []market.Snapshot
	fetchedAt time.Time
	ttl       time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 45 * time.Second
	}
	return &Cache{ttl: ttl}
}

// Get returns the cached sweep when it is still fresh.
func (c *Cache) Get() ([]market.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshots == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.snapshots, true
}

// Put replaces the cached sweep and restarts the TTL clock.
func (c *Cache) Put(snapshots []market.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = snapshots
	c.fetchedAt = time.Now()
}

// Age reports how old the cached sweep is; zero when empty.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshots == nil {
		return 0
	}
	return time.Since(c.fetchedAt)
}
