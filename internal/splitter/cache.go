package splitter

import "sync"

type cacheKey struct {
	maxChars int
	overlap  int
}

// Cache reuses splitter instances by (maxChars, overlap). It is owned by a
// pipeline run and discarded with it, so no state leaks across runs. The
// cache only grows; entries are never invalidated within a run.
type Cache struct {
	mu        sync.Mutex
	splitters map[cacheKey]*Splitter
}

// NewCache creates an empty splitter cache.
func NewCache() *Cache {
	return &Cache{splitters: make(map[cacheKey]*Splitter)}
}

// Get returns the cached splitter for the pair, creating it on first use.
func (c *Cache) Get(maxChars, overlap int) *Splitter {
	key := cacheKey{maxChars: maxChars, overlap: overlap}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.splitters[key]; ok {
		return s
	}
	s := New(maxChars, overlap)
	c.splitters[key] = s
	return s
}

// Len returns the number of cached configurations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.splitters)
}
