package sqlcompose

import (
	"sync"
	"time"
)

// countEntry stores the result of a count query.
type countEntry struct {
	count     int64
	expiresAt time.Time // zero means no expiry
}

// CountCache stores the results of count queries keyed by the count statement
// text. Only successful counts are stored.
//
// Implementations must be safe for concurrent use.
type CountCache interface {
	// Get returns the cached count for sql. ok is false when the entry does
	// not exist or has expired.
	Get(sql string) (count int64, ok bool)

	// Set stores the count for sql.
	Set(sql string, count int64)
}

// CountCacheImpl is the default in-memory CountCache with optional TTL.
// It uses a sync.RWMutex for goroutine safety.
//
// The cache grows unbounded within its TTL window. Statements that embed
// unique values (cache-busted statements, for example) are never hit again,
// so pair long TTLs with a bounded set of searches or call Clear periodically.
type CountCacheImpl struct {
	mu    sync.RWMutex
	items map[string]countEntry
	ttl   time.Duration // 0 means no expiry
	now   func() time.Time
}

// CacheOption configures a CountCacheImpl.
type CacheOption func(*CountCacheImpl)

// WithTTL sets the time-to-live for cache entries.
// A TTL of 0 (default) means entries never expire within the cache's lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CountCacheImpl) {
		c.ttl = ttl
	}
}

// NewCountCache creates an in-memory count cache scoped to a single process.
func NewCountCache(opts ...CacheOption) *CountCacheImpl {
	c := &CountCacheImpl{
		items: make(map[string]countEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached count for sql.
func (c *CountCacheImpl) Get(sql string) (int64, bool) {
	c.mu.RLock()
	entry, ok := c.items[sql]
	c.mu.RUnlock()

	if !ok {
		return 0, false
	}

	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, sql)
		c.mu.Unlock()
		return 0, false
	}

	return entry.count, true
}

// Set stores the count for sql.
func (c *CountCacheImpl) Set(sql string, count int64) {
	entry := countEntry{count: count}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[sql] = entry
	c.mu.Unlock()
}

// Size returns the number of entries in the cache.
func (c *CountCacheImpl) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries from the cache.
func (c *CountCacheImpl) Clear() {
	c.mu.Lock()
	c.items = make(map[string]countEntry)
	c.mu.Unlock()
}

var _ CountCache = (*CountCacheImpl)(nil)
