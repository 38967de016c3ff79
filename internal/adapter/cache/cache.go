package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache is a size-bounded LRU with per-entry TTL. Invalidate drops every
// entry at once by advancing a generation counter.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry[V]
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	timestamp time.Time
	gen       uint64
}

func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16])
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	k := hashKey(key)

	c.mu.RLock()
	entry, exists := c.entries[k]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return zero, false
	}

	stale := c.now().Sub(entry.timestamp) > c.ttl || entry.gen != currentGen

	// The entry may have been replaced or dropped since the read lock was
	// released; only the entry that was read is removed or promoted.
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.entries[k]
	if stale {
		if ok && cur == entry {
			delete(c.entries, k)
			c.removeFromOrder(k)
		}
		return zero, false
	}
	if ok {
		c.moveToEnd(k)
	}
	return entry.value, true
}

func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := hashKey(key)
	entry := &cacheEntry[V]{
		value:     value,
		timestamp: c.now(),
		gen:       c.gen,
	}

	if _, exists := c.entries[k]; exists {
		c.entries[k] = entry
		c.moveToEnd(k)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[k] = entry
	c.order = append(c.order, k)
}

func (c *Cache[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry[V])
	c.order = c.order[:0]
	c.gen++
}

func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *Cache[V]) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
