// Package cache provides a bounded in-process LRU used as a read-through
// cache of committed aggregates.
package cache

import (
	"container/list"
	"sync"
)

// LRU is a size-bounded least-recently-used cache safe for concurrent use.
// clone, when set, is applied on every Put and Get so callers never share
// a cached value.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	clone    func(V) V

	hits   uint64
	misses uint64
	// epoch advances on every Invalidate.
	epoch uint64
}

type entry[V any] struct {
	key   string
	value V
}

// New creates an LRU holding at most capacity entries. A non-positive
// capacity means unbounded.
func New[V any](capacity int, clone func(V) V) *LRU[V] {
	return &LRU[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		clone:    clone,
	}
}

// Get returns the cached value for key.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return c.copy(el.Value.(*entry[V]).value), true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value)
}

func (c *LRU[V]) put(key string, value V) {
	value = c.copy(value)
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&entry[V]{key: key, value: value})
	if c.capacity > 0 && c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
	}
}

// Epoch returns the invalidation counter. Read it before loading a value
// from the backing store and hand it to PutIfCurrent.
func (c *LRU[V]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// PutIfCurrent stores value only if no Invalidate ran since epoch was read,
// so a load that raced with a write never caches the older value.
func (c *LRU[V]) PutIfCurrent(key string, value V, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return false
	}
	c.put(key, value)
	return true
}

// Invalidate drops the given keys.
func (c *LRU[V]) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, key := range keys {
		if el, ok := c.items[key]; ok {
			c.ll.Remove(el)
			delete(c.items, key)
		}
	}
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns the hit and miss counters.
func (c *LRU[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *LRU[V]) copy(v V) V {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}
