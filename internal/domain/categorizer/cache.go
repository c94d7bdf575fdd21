package categorizer

import (
	"sync"
)

// MemoryCache is an in-memory cache of classifications. When maxEntries is
// reached the oldest entry is evicted first.
type MemoryCache struct {
	mu         sync.RWMutex
	store      map[string]Classification
	order      []string // Insertion order, oldest first
	maxEntries int
}

// NewMemoryCache creates a cache holding at most maxEntries classifications;
// zero or less means unbounded
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		store:      make(map[string]Classification),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(key string) (Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.store[key]
	return value, found
}

// Set stores a value in cache
func (c *MemoryCache) Set(key string, value Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists {
		if c.maxEntries > 0 && len(c.store) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.store, oldest)
		}
		c.order = append(c.order, key)
	}
	c.store[key] = value
}

// Clear removes all entries from cache
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]Classification)
	c.order = nil
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.store)
}
