package chunker

import "sync"

// CacheKey addresses chunking results by content, never by path, so an edited
// file on disk is re-split on the next call. Titles are not part of the
// cached result; callers set them per source.
type CacheKey struct {
	ContentHash string
	MaxPages    int
}

// Cache is a write-once, read-many store of chunking results.
type Cache struct {
	mu   sync.RWMutex
	data map[CacheKey][]Chunk
}

func NewCache() *Cache {
	return &Cache{data: make(map[CacheKey][]Chunk)}
}

// Get returns a copy of the cached chunks.
func (c *Cache) Get(key CacheKey) ([]Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chunks, ok := c.data[key]
	if !ok {
		return nil, false
	}
	return append([]Chunk(nil), chunks...), true
}

// Put stores chunks under key. An existing entry is kept.
func (c *Cache) Put(key CacheKey, chunks []Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return
	}
	c.data[key] = append([]Chunk(nil), chunks...)
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
