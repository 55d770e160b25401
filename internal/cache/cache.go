// ABOUTME: Thread-safe TTL cache with a size limit and oldest-first eviction.
// ABOUTME: Used by tools to keep expensive derived values (compiled schemas) between calls.

package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the value, its write time and its position in the order list.
type entry[V any] struct {
	key     string
	value   V
	written time.Time
	element *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited cache keyed by string.
// A doubly-linked list keeps write order (oldest at front) so eviction is O(1).
// Expired entries are dropped lazily on access and on writes; there is no
// background goroutine, so a Cache needs no Close.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache whose entries live for ttl and which holds at most
// maxSize entries. maxSize < 1 is treated as 1.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.removeLocked(e)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous value. If the cache is
// at capacity the oldest entry is evicted to make room.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	if e, exists := c.entries[key]; exists {
		e.value = value
		e.written = c.now()
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.removeLocked(front.Value.(*entry[V]))
		}
	}

	e := &entry[V]{key: key, value: value, written: c.now()}
	e.element = c.order.PushBack(e)
	c.entries[key] = e
}

// GetOrSet returns the cached value for key, or calls fn and caches its
// result when fn succeeds. fn runs without the lock held, so concurrent
// misses on the same key may each call it.
func (c *Cache[V]) GetOrSet(key string, fn func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Len returns the number of entries, including expired ones not yet pruned.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().Sub(e.written) >= c.ttl
}

// pruneLocked drops expired entries from the front. Write order matches
// timestamp order, so it stops at the first live entry. Must be called with mu held.
func (c *Cache[V]) pruneLocked() {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(*entry[V])
		if !c.expired(e) {
			return
		}
		c.removeLocked(e)
	}
}

// removeLocked deletes e. Must be called with mu held.
func (c *Cache[V]) removeLocked(e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}
