// Package cache holds the in-memory content cache: a bounded LRU of
// hydrated bodies and the cache-through loader used by the services.
//
// The cache is purely an optimization. A miss never means the content does
// not exist, and nothing in this package returns an error of its own.
package cache

import (
	"container/heap"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key        K
	value      V
	lastAccess time.Time
	// seq is assigned once on insertion and breaks lastAccess ties.
	seq   uint64
	index int
}

// entryHeap orders entries by lastAccess, then seq; the root is the next
// eviction victim.
type entryHeap[K comparable, V any] []*entry[K, V]

func (h entryHeap[K, V]) Len() int { return len(h) }

func (h entryHeap[K, V]) Less(i, j int) bool {
	if h[i].lastAccess.Equal(h[j].lastAccess) {
		return h[i].seq < h[j].seq
	}
	return h[i].lastAccess.Before(h[j].lastAccess)
}

func (h entryHeap[K, V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[K, V]) Push(x any) {
	e := x.(*entry[K, V])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// LRU is a fixed-capacity least-recently-used cache safe for concurrent use.
//
// Recency is measured with the injected clock. When two entries were last
// accessed at the same instant, the one inserted first is evicted first.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*entry[K, V]
	order    entryHeap[K, V]
	seq      uint64
	now      func() time.Time
}

// NewLRU creates a cache holding at most capacity entries. A capacity of zero
// or less disables caching: every Get misses. A nil clock means time.Now.
func NewLRU[K comparable, V any](capacity int, now func() time.Time) *LRU[K, V] {
	if now == nil {
		now = time.Now
	}
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*entry[K, V], capacity),
		order:    make(entryHeap[K, V], 0, capacity),
		now:      now,
	}
}

// Get returns the value cached under key and marks it as recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastAccess = c.now()
	heap.Fix(&c.order, e.index)
	return e.value, true
}

// Set stores value under key. When the cache is full and key is new, the
// least recently used entry is evicted first.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity == 0 {
		return
	}

	if e, ok := c.items[key]; ok {
		e.value = value
		e.lastAccess = c.now()
		heap.Fix(&c.order, e.index)
		return
	}

	if len(c.items) >= c.capacity {
		victim := heap.Pop(&c.order).(*entry[K, V])
		delete(c.items, victim.key)
	}

	c.seq++
	e := &entry[K, V]{key: key, value: value, lastAccess: c.now(), seq: c.seq}
	heap.Push(&c.order, e)
	c.items[key] = e
}

// Invalidate removes key. Removing a missing key is a no-op.
func (c *LRU[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return
	}
	heap.Remove(&c.order, e.index)
	delete(c.items, key)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *LRU[K, V]) Capacity() int {
	return c.capacity
}
