// Package cache provides a bounded in-process key/value store with per-entry expiry.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxEntries is the capacity used when New is given a non-positive limit.
const DefaultMaxEntries = 1000

// Clock returns the current time. Tests inject a fake clock.
type Clock func() time.Time

// entry is owned by TTL and never handed out.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
	Entries   int
}

// TTL is a bounded cache with lazy expiry and insertion-order eviction.
// It is safe for concurrent use; concurrent writes to one key are last-write-wins.
type TTL[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front is oldest insertion
	maxEntries int
	now        Clock

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	expired   atomic.Uint64
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces time.Now as the cache's time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New creates a cache holding at most maxEntries items.
func New[V any](maxEntries int, opts ...Option) *TTL[V] {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &TTL[V]{
		items:      make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        o.clock,
	}
}

// Get returns the value for key. An expired entry is removed and reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.removeElement(elem)
		c.expired.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key for ttl. Inserting a new key at capacity first drops
// every expired entry and, if the cache is still full, the oldest inserted entry.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	if len(c.items) >= c.maxEntries {
		c.evictExpiredLocked()
		if len(c.items) >= c.maxEntries {
			if oldest := c.order.Front(); oldest != nil {
				c.removeElement(oldest)
				c.evictions.Add(1)
			}
		}
	}

	c.items[key] = c.order.PushBack(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes key if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.maxEntries)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet collected.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *TTL[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Expired:   c.expired.Load(),
		Entries:   c.Len(),
	}
}

func (c *TTL[V]) evictExpiredLocked() {
	now := c.now()
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeElement(elem)
			c.expired.Add(1)
		}
		elem = next
	}
}

func (c *TTL[V]) removeElement(elem *list.Element) {
	e := c.order.Remove(elem).(*entry[V])
	delete(c.items, e.key)
}
