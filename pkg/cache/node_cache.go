// Package cache provides the node identity cache used during RDF imports.
//
// While statements of a batch are materialized, the same subject and object
// IRIs come back over and over. The cache maps a resource's uri to the id of
// the node that represents it, so repeated lookups skip the storage index.
//
// Features:
// - LRU eviction for bounded memory
// - Thread-safe operations
// - Hit/miss statistics, optionally mirrored into Prometheus counters
//
// Usage:
//
//	cache := NewNodeCache(100_000)
//
//	if id, ok := cache.Get(uri); ok {
//		return id
//	}
//	id := lookupOrCreate(uri)
//	cache.Put(uri, id)
//
// The cache is only trusted while the writes it remembers are durable: the
// importer clears it after a failed commit.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// DefaultMaxSize is used when NewNodeCache receives a non-positive size.
const DefaultMaxSize = 100_000

// NodeCache is a thread-safe LRU cache from resource uri to node id.
//
// The cache uses:
// - Hash map for O(1) lookups
// - Doubly-linked list for LRU ordering
type NodeCache struct {
	mu sync.Mutex

	maxSize int

	list  *list.List
	items map[string]*list.Element

	hits   uint64
	misses uint64

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
}

type cacheEntry struct {
	uri string
	id  storage.NodeID
}

// NewNodeCache creates a cache holding at most maxSize entries.
func NewNodeCache(maxSize int) *NodeCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &NodeCache{
		maxSize: maxSize,
		list:    list.New(),
		items:   make(map[string]*list.Element),
	}
}

// WithMetrics mirrors hits and misses into the given counters.
func (c *NodeCache) WithMetrics(hits, misses prometheus.Counter) *NodeCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hitCounter = hits
	c.missCounter = misses
	return c
}

func (c *NodeCache) recordHit() {
	atomic.AddUint64(&c.hits, 1)
	if c.hitCounter != nil {
		c.hitCounter.Inc()
	}
}

func (c *NodeCache) recordMiss() {
	atomic.AddUint64(&c.misses, 1)
	if c.missCounter != nil {
		c.missCounter.Inc()
	}
}

// Get returns the node id cached for uri.
// A hit moves the entry to the front of the LRU list.
func (c *NodeCache) Get(uri string) (storage.NodeID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[uri]
	if !ok {
		c.recordMiss()
		return "", false
	}
	c.list.MoveToFront(elem)
	c.recordHit()
	return elem.Value.(*cacheEntry).id, true
}

// Put records that uri is represented by id, evicting the least recently
// used entry when full.
func (c *NodeCache) Put(uri string, id storage.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[uri]; ok {
		elem.Value.(*cacheEntry).id = id
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	c.items[uri] = c.list.PushFront(&cacheEntry{uri: uri, id: id})
}

// Remove drops uri from the cache.
func (c *NodeCache) Remove(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[uri]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries. Statistics are kept.
func (c *NodeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of cached entries.
func (c *NodeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// Stats holds cache performance statistics.
type Stats struct {
	Size    int     // Current number of entries
	MaxSize int     // Maximum capacity
	Hits    uint64  // Number of cache hits
	Misses  uint64  // Number of cache misses
	HitRate float64 // Hit rate percentage (0-100)
}

// Stats returns cache statistics.
func (c *NodeCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:    c.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the lock.
func (c *NodeCache) evictOldest() {
	if elem := c.list.Back(); elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from the cache.
// Caller must hold the lock.
func (c *NodeCache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).uri)
}
