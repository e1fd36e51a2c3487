package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// =============================================================================
// NewNodeCache Tests
// =============================================================================

func TestNewNodeCache(t *testing.T) {
	t.Run("valid size", func(t *testing.T) {
		c := NewNodeCache(10)
		assert.Equal(t, 10, c.maxSize)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("non-positive size uses default", func(t *testing.T) {
		assert.Equal(t, DefaultMaxSize, NewNodeCache(0).maxSize)
		assert.Equal(t, DefaultMaxSize, NewNodeCache(-5).maxSize)
	})
}

// =============================================================================
// Get/Put Tests
// =============================================================================

func TestNodeCache_GetPut(t *testing.T) {
	c := NewNodeCache(10)

	_, ok := c.Get("http://example.org/a")
	assert.False(t, ok)

	c.Put("http://example.org/a", "n-1")
	id, ok := c.Get("http://example.org/a")
	require.True(t, ok)
	assert.Equal(t, storage.NodeID("n-1"), id)

	c.Put("http://example.org/a", "n-2")
	id, _ = c.Get("http://example.org/a")
	assert.Equal(t, storage.NodeID("n-2"), id)
	assert.Equal(t, 1, c.Len())
}

func TestNodeCache_LRUEviction(t *testing.T) {
	c := NewNodeCache(2)
	c.Put("a", "1")
	c.Put("b", "2")

	// touch a so b becomes the eviction candidate
	_, _ = c.Get("a")
	c.Put("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestNodeCache_ClearAndRemove(t *testing.T) {
	c := NewNodeCache(10)
	c.Put("a", "1")
	c.Put("b", "2")

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

// =============================================================================
// Statistics Tests
// =============================================================================

func TestNodeCache_Stats(t *testing.T) {
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_misses_total"})
	c := NewNodeCache(10).WithMetrics(hits, misses)

	c.Put("a", "1")
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.MaxSize)
	assert.Equal(t, uint64(3), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 75.0, stats.HitRate, 0.001)

	assert.Equal(t, 3.0, testutil.ToFloat64(hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(misses))
}

func TestNodeCache_Concurrent(t *testing.T) {
	c := NewNodeCache(100)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				uri := fmt.Sprintf("http://example.org/%d", i%150)
				if _, ok := c.Get(uri); !ok {
					c.Put(uri, storage.NodeID(fmt.Sprintf("n-%d", g)))
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 100)
}
