// Package cache is the in-process response cache used by the read API.
// Entries expire after their TTL and can be dropped in groups by tag.
package cache

import (
	"net/url"
	"sync"
	"time"
)

// Tags dropped after every successful ingestion cycle.
const (
	TagLoads  = "loads"
	TagStatus = "status"
)

type entry struct {
	value     any
	expiresAt time.Time
	tags      map[string]struct{}
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	enabled bool
	now     func() time.Time
}

// New creates a cache. A disabled cache misses on every Get and ignores Set.
func New(enabled bool, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		enabled: enabled,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get returns the live value stored under key. Expired entries are evicted.
func (c *Cache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := c.now()
	if !now.Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration, tags ...string) {
	if !c.enabled || ttl <= 0 {
		return
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	c.mu.Lock()
	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
		tags:      tagSet,
	}
	c.mu.Unlock()
}

// InvalidateByTag removes every entry carrying tag and reports how many went.
func (c *Cache) InvalidateByTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if _, ok := e.tags[tag]; ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key builds a deterministic key from prefix and the non-empty params,
// sorted by name and URL-encoded.
func Key(prefix string, params map[string]string) string {
	values := url.Values{}
	for name, v := range params {
		if v != "" {
			values.Set(name, v)
		}
	}
	if len(values) == 0 {
		return prefix
	}
	return prefix + "?" + values.Encode()
}
