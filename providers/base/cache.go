package base

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/xxh3"
)

// TreeCache is a lock-free cache of parsed trees keyed by source content.
// Callers always get their own copy of a cached tree.
type TreeCache struct {
	cache     sync.Map
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	maxAge    time.Duration
}

// cachedTree holds a parsed tree with metadata
type cachedTree struct {
	tree      *sitter.Tree
	size      int
	timestamp time.Time
	hitCount  atomic.Int32
}

// NewTreeCache creates a cache whose entries expire after maxAge. A zero
// maxAge disables caching.
func NewTreeCache(maxAge time.Duration) *TreeCache {
	return &TreeCache{maxAge: maxAge}
}

// GetOrParse returns a cached tree for source or parses a new one with a
// parser from pool.
func (c *TreeCache) GetOrParse(ctx context.Context, pool *ParserPool, source []byte) (*sitter.Tree, bool, error) {
	if c == nil || c.maxAge <= 0 {
		tree, err := parse(ctx, pool, source)
		return tree, false, err
	}

	key := c.key(source)
	if cached, ok := c.cache.Load(key); ok {
		entry := cached.(*cachedTree)
		if time.Since(entry.timestamp) > c.maxAge || entry.size != len(source) {
			c.cache.Delete(key)
			c.evictions.Add(1)
		} else {
			c.hits.Add(1)
			entry.hitCount.Add(1)
			return entry.tree.Copy(), true, nil
		}
	}

	c.misses.Add(1)
	tree, err := parse(ctx, pool, source)
	if err != nil {
		return nil, false, err
	}
	c.cache.LoadOrStore(key, &cachedTree{
		tree:      tree.Copy(),
		size:      len(source),
		timestamp: time.Now(),
	})
	return tree, false, nil
}

func parse(ctx context.Context, pool *ParserPool, source []byte) (*sitter.Tree, error) {
	parser := pool.Get()
	defer pool.Put(parser)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("parser returned no tree")
	}
	return tree, nil
}

func (c *TreeCache) key(source []byte) uint64 {
	return xxh3.Hash(source)
}

// Prune drops expired entries and returns how many were removed.
func (c *TreeCache) Prune() int {
	if c == nil {
		return 0
	}
	now := time.Now()
	removed := 0
	c.cache.Range(func(key, value any) bool {
		entry := value.(*cachedTree)
		if now.Sub(entry.timestamp) > c.maxAge {
			c.cache.Delete(key)
			c.evictions.Add(1)
			removed++
		}
		return true
	})
	return removed
}

// Stats returns cache statistics
func (c *TreeCache) Stats() map[string]int64 {
	if c == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"hits":      c.hits.Load(),
		"misses":    c.misses.Load(),
		"evictions": c.evictions.Load(),
		"hit_rate":  c.hits.Load() * 100 / (c.hits.Load() + c.misses.Load() + 1),
	}
}
