package trendengine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// trendReader is the read side of Store used by the public pages.
type trendReader interface {
	Get(ctx context.Context, slug string) (Trend, error)
	List(ctx context.Context, q ListQuery) (Page, error)
	Hero(ctx context.Context) (Trend, error)
	Related(ctx context.Context, slug, category string, limit int) ([]Trend, error)
	All(ctx context.Context) ([]Trend, error)
}

type cacheEntry struct {
	value   any
	fetched time.Time
}

// defaultMaxEntries bounds the cache; keys derive from request input.
const defaultMaxEntries = 1024

// TrendCache is an in-memory TTL cache in front of the store's read paths.
// Writers call Invalidate after every successful change.
type TrendCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	gen        uint64
	ttl        time.Duration
	maxEntries int
	store      trendReader
}

// NewTrendCache creates a TrendCache backed by the given store.
func NewTrendCache(s trendReader, ttl time.Duration) *TrendCache {
	return &TrendCache{
		store:      s,
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		entries:    make(map[string]cacheEntry),
	}
}

func (c *TrendCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *TrendCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.gen++
	c.mu.Unlock()
}

// cached returns the entry for key, loading it on a miss. A load that
// raced with Invalidate is returned but not stored.
func cached[T any](c *TrendCache, key string, load func() (T, error)) (T, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok && time.Since(e.fetched) < c.ttl {
		return e.value.(T), nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	now := time.Now()
	c.mu.Lock()
	if ok {
		delete(c.entries, key)
	}
	if c.gen == gen {
		if len(c.entries) >= c.maxEntries {
			c.evict(now)
		}
		c.entries[key] = cacheEntry{value: v, fetched: now}
	}
	c.mu.Unlock()
	return v, nil
}

// evict drops expired entries, and everything if the cache is still full.
// Callers hold c.mu.
func (c *TrendCache) evict(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.fetched) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[string]cacheEntry)
	}
}

// List serves a listing page. A category outside Categories matches
// nothing, so it is answered without touching the store or the cache.
func (c *TrendCache) List(ctx context.Context, q ListQuery) (Page, error) {
	q = q.normalized()
	if q.Category != "" && !IsCategory(q.Category) {
		return Page{Items: []Trend{}, Page: q.Page, Limit: q.Limit}, nil
	}
	key := fmt.Sprintf("list:%d:%d:%s", q.Page, q.Limit, q.Category)
	return cached(c, key, func() (Page, error) { return c.store.List(ctx, q) })
}

func (c *TrendCache) Get(ctx context.Context, slug string) (Trend, error) {
	return cached(c, "get:"+slug, func() (Trend, error) { return c.store.Get(ctx, slug) })
}

func (c *TrendCache) Hero(ctx context.Context) (Trend, error) {
	return cached(c, "hero", func() (Trend, error) { return c.store.Hero(ctx) })
}

// Related returns up to limit other trends in t's category.
func (c *TrendCache) Related(ctx context.Context, t Trend, limit int) ([]Trend, error) {
	key := fmt.Sprintf("related:%s:%d", t.Slug, limit)
	return cached(c, key, func() ([]Trend, error) { return c.store.Related(ctx, t.Slug, t.Category, limit) })
}

func (c *TrendCache) All(ctx context.Context) ([]Trend, error) {
	return cached(c, "all", func() ([]Trend, error) { return c.store.All(ctx) })
}
