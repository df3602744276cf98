package weather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheEntry holds one cached series and when it was stored.
type cacheEntry struct {
	series   Series
	storedAt time.Time
}

// CachedProvider wraps a SeriesProvider with a concurrency-safe in-memory
// cache keyed by SeriesRequest.Key. Concurrent requests for the same key share
// a single upstream call. Only non-empty successful results are cached;
// failures are never cached.
type CachedProvider struct {
	next    SeriesProvider
	log     *slog.Logger
	metrics CacheMetrics
	group   singleflight.Group

	mu sync.RWMutex

	// key: request key, value: cached series
	data  map[string]*cacheEntry
	order []string // insertion order for eviction

	// retention configuration
	maxEntries int           // max number of cached series (0 = unlimited)
	maxAge     time.Duration // max age of a cached series (0 = unlimited)
	now        func() time.Time
}

// CacheOption configures a CachedProvider.
type CacheOption func(*CachedProvider)

// WithCacheMetrics records hit/miss counts.
func WithCacheMetrics(m CacheMetrics) CacheOption {
	return func(c *CachedProvider) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *CachedProvider) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCachedProvider creates a cache in front of next with optional limits.
// If maxEntries is <= 0 it is treated as unlimited; the same holds for maxAge.
func NewCachedProvider(next SeriesProvider, maxEntries int, maxAge time.Duration, opts ...CacheOption) *CachedProvider {
	c := &CachedProvider{
		next:       next,
		log:        slog.Default(),
		metrics:    noopCacheMetrics{},
		data:       make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedProvider) Name() string {
	return c.next.Name()
}

// FetchSeries returns the cached series for req if present and fresh,
// otherwise fetches it from the wrapped provider.
func (c *CachedProvider) FetchSeries(ctx context.Context, req SeriesRequest) (Series, error) {
	key := req.Key()

	if s, ok := c.lookup(key); ok {
		c.metrics.CacheHit(c.Name())
		return s, nil
	}
	c.metrics.CacheMiss(c.Name())

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		s, err := c.next.FetchSeries(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(s) > 0 {
			c.store(key, s)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s, _ := v.(Series)
	c.log.Debug("series fetched", "key", key, "samples", len(s))
	return s, nil
}

// Len returns the number of cached series.
func (c *CachedProvider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *CachedProvider) lookup(key string) (Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.maxAge > 0 && c.now().Sub(e.storedAt) > c.maxAge {
		return nil, false
	}
	return e.series, true
}

// store saves a series and enforces retention.
func (c *CachedProvider) store(key string, s Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		c.order = append(c.order, key)
	}
	c.data[key] = &cacheEntry{series: s, storedAt: c.now()}

	// Enforce retention by age.
	if c.maxAge > 0 {
		cutoff := c.now().Add(-c.maxAge)
		kept := c.order[:0]
		for _, k := range c.order {
			if c.data[k].storedAt.Before(cutoff) {
				delete(c.data, k)
				continue
			}
			kept = append(kept, k)
		}
		c.order = kept
	}

	// Enforce retention by count, oldest first.
	if c.maxEntries > 0 && len(c.order) > c.maxEntries {
		over := len(c.order) - c.maxEntries
		for _, k := range c.order[:over] {
			delete(c.data, k)
		}
		c.order = c.order[over:]
	}
}
