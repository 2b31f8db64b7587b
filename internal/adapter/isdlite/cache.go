package isdlite

import (
	"context"
	"sync"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/observability"
)

// CachedLoader wraps a Loader with an in-memory LRU cache keyed by feed path.
// Consecutive station-years share a feed (year Y+1 is lookahead for Y and the
// target of the next job), so a small cache avoids re-parsing it. Cached
// StationYears are read-only and may be shared between conversions.
type CachedLoader struct {
	inner   domain.Loader
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLoader creates a cache decorator around a loader. metrics may be nil.
func NewCachedLoader(inner domain.Loader, maxEntries int, metrics *observability.Metrics) *CachedLoader {
	return &CachedLoader{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLoader) Load(ctx context.Context, feed domain.FeedRef) (*domain.StationYear, error) {
	if sy, ok := c.cache.get(feed.Path); ok {
		c.record("hit")
		return sy, nil
	}
	c.record("miss")

	sy, err := c.inner.Load(ctx, feed)
	if err != nil {
		// Errors are not cached so a feed that appears later can be retried.
		return nil, err
	}
	c.cache.put(feed.Path, sy)
	return sy, nil
}

func (c *CachedLoader) record(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.LoaderCache.WithLabelValues(result).Inc()
}

// lruCache is a simple thread-safe LRU cache of parsed station-years.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.StationYear
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key string) (*domain.StationYear, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.StationYear) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
