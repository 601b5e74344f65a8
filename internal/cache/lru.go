package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache bounds entries by count and by age. Recency ordering comes from
// golang-lru; expiry is checked lazily on Get and swept by CleanExpired.
type LRUCache[T any] struct {
	entries *lru.Cache[string, entry[T]]
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

var _ Cache[int] = (*LRUCache[int])(nil)

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[string, entry[T]](maxSize)
	return &LRUCache[T]{entries: entries, ttl: ttl, now: time.Now}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	e, ok := c.entries.Get(key)
	if ok && c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		var zero T
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores data, evicting the least recently used entry when full.
func (c *LRUCache[T]) Set(key string, data T) {
	c.entries.Add(key, entry[T]{value: data, expiresAt: c.now().Add(c.ttl)})
}

func (c *LRUCache[T]) Delete(key string) {
	c.entries.Remove(key)
}

// Purge drops every entry.
func (c *LRUCache[T]) Purge() {
	c.entries.Purge()
}

// CleanExpired removes expired entries without touching recency and
// returns how many were dropped.
func (c *LRUCache[T]) CleanExpired() int {
	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		if e, ok := c.entries.Peek(key); ok && now.After(e.expiresAt) {
			if c.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	return c.entries.Len()
}

// Stats returns the hit and miss counters.
func (c *LRUCache[T]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
