package delivery

import (
	"container/list"
	"sync"
)

// pageCacheCapacity bounds the per-client page cache. 32 pages covers a
// deep scroll on one surface without growing unbounded.
const pageCacheCapacity = 32

// PageCache is a thread-safe LRU cache for fetched feed pages, keyed by
// the normalized (endpoint, params, page) string.
type PageCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key    string
	result *FetchResult
}

// NewPageCache creates a page cache with the given capacity.
// A non-positive capacity falls back to the default.
func NewPageCache(capacity int) *PageCache {
	if capacity <= 0 {
		capacity = pageCacheCapacity
	}
	return &PageCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a cached page. Returns nil if not found.
func (c *PageCache) Get(key string) *FetchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[key]
	if !exists {
		return nil
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	entry := elem.Value.(*cacheEntry)

	// Return a copy
	copy := *entry.result
	return &copy
}

// Put adds a page to the cache, evicting the least recently used if full.
func (c *PageCache) Put(key string, result *FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// If already exists, update and move to front
	if elem, exists := c.cache[key]; exists {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		copy := *result
		entry.result = &copy
		return
	}

	// Evict if at capacity
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			entry := oldest.Value.(*cacheEntry)
			delete(c.cache, entry.key)
			c.order.Remove(oldest)
		}
	}

	// Add new entry
	copy := *result
	entry := &cacheEntry{key: key, result: &copy}
	elem := c.order.PushFront(entry)
	c.cache[key] = elem
}

// Len reports the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries from the cache.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*list.Element)
	c.order = list.New()
}
