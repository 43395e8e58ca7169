package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/oxhq/scopeq/highlight"
)

// ResultCache memoises highlight results by language and content hash.
// Cached results are shared and must be treated as read-only.
type ResultCache struct {
	entries   sync.Map // uint64 -> *resultEntry
	ttl       time.Duration
	now       func() time.Time
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type resultEntry struct {
	result *highlight.Result
	stored time.Time
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// NewResultCache creates a cache whose entries expire after ttl. A zero
// ttl keeps entries until Clear.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{ttl: ttl, now: time.Now}
}

// CacheKey hashes a language and source text.
func CacheKey(language string, source []byte) uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(language)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(source)
	return h.Sum64()
}

// Get returns the cached result for source, if fresh.
func (c *ResultCache) Get(language string, source []byte) (*highlight.Result, bool) {
	if c == nil {
		return nil, false
	}
	key := CacheKey(language, source)
	v, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	entry := v.(*resultEntry)
	if c.expired(entry) {
		if c.entries.CompareAndDelete(key, entry) {
			c.evictions.Add(1)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.result, true
}

// Put stores result for source.
func (c *ResultCache) Put(language string, source []byte, result *highlight.Result) {
	if c == nil || result == nil {
		return
	}
	c.entries.Store(CacheKey(language, source), &resultEntry{result: result, stored: c.now()})
}

// Prune drops expired entries and returns how many were removed.
func (c *ResultCache) Prune() int {
	if c == nil {
		return 0
	}
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if c.expired(value.(*resultEntry)) && c.entries.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	c.evictions.Add(int64(removed))
	return removed
}

// Clear removes every entry.
func (c *ResultCache) Clear() {
	if c == nil {
		return
	}
	c.entries.Clear()
}

// Stats returns the current counters.
func (c *ResultCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	entries := 0
	c.entries.Range(func(_, _ any) bool {
		entries++
		return true
	})
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}

func (c *ResultCache) expired(e *resultEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.stored) > c.ttl
}
