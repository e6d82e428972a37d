package vkcompute

import (
	"sync"
)

// objectCache memoizes expensive GPU object creation. Retrieve returns the
// object created for the first structurally equal key and never re-creates
// it. Entries are kept for the lifetime of the owning scope; there is no
// eviction because the keyspace is bounded by the number of distinct
// shader and pipeline configurations in the program.
//
// Lookups after the first take only the read lock, so steady-state
// retrieval from multiple goroutines does not contend. The write lock is
// scoped to the insert path.
type objectCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	create  func(K) (V, error)
}

func newObjectCache[K comparable, V any](create func(K) (V, error)) *objectCache[K, V] {
	return &objectCache[K, V]{
		entries: make(map[K]V),
		create:  create,
	}
}

// Retrieve returns the cached object for key, creating and inserting it on
// first request. A creation failure is returned to the caller and nothing
// is stored.
func (c *objectCache[K, V]) Retrieve(key K) (V, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have created the entry while we were waiting
	// for the write lock.
	if v, ok := c.entries[key]; ok {
		return v, nil
	}

	v, err := c.create(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = v
	return v, nil
}

// Len reports the number of cached entries.
func (c *objectCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every entry, invoking destroy on each cached object first.
// destroy may be nil.
func (c *objectCache[K, V]) Purge(destroy func(V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if destroy != nil {
		for _, v := range c.entries {
			destroy(v)
		}
	}
	c.entries = make(map[K]V)
}
