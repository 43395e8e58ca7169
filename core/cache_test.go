package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scopeq/highlight"
)

func TestCacheKey(t *testing.T) {
	src := []byte("x := 1")
	assert.Equal(t, CacheKey("go", src), CacheKey("go", src))
	assert.NotEqual(t, CacheKey("go", src), CacheKey("python", src))
	assert.NotEqual(t, CacheKey("go", src), CacheKey("go", []byte("x := 2")))
	// the separator keeps language and source apart
	assert.NotEqual(t, CacheKey("ab", []byte("c")), CacheKey("a", []byte("bc")))
}

func TestResultCacheHitMiss(t *testing.T) {
	c := NewResultCache(time.Minute)
	src := []byte("package main")
	res := &highlight.Result{Language: "go"}

	_, ok := c.Get("go", src)
	assert.False(t, ok)

	c.Put("go", src, res)
	got, ok := c.Get("go", src)
	require.True(t, ok)
	assert.Same(t, res, got)

	_, ok = c.Get("python", src)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, CacheStats{Hits: 1, Misses: 2, Entries: 1}, stats)
}

func TestResultCacheExpiry(t *testing.T) {
	c := NewResultCache(time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("go", []byte("a"), &highlight.Result{})
	c.Put("go", []byte("b"), &highlight.Result{})

	now = now.Add(2 * time.Second)
	_, ok := c.Get("go", []byte("a"))
	assert.False(t, ok, "expired entries are not served")
	assert.Equal(t, 1, c.Prune())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Evictions)
	assert.Zero(t, stats.Entries)
}

func TestResultCacheNoTTL(t *testing.T) {
	c := NewResultCache(0)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("go", []byte("a"), &highlight.Result{})
	now = now.Add(24 * time.Hour)
	_, ok := c.Get("go", []byte("a"))
	assert.True(t, ok)

	c.Clear()
	assert.Zero(t, c.Stats().Entries)
}

func TestResultCacheNil(t *testing.T) {
	var c *ResultCache
	c.Put("go", []byte("a"), &highlight.Result{})
	_, ok := c.Get("go", []byte("a"))
	assert.False(t, ok)
	assert.Zero(t, c.Prune())
	assert.Equal(t, CacheStats{}, c.Stats())
}
