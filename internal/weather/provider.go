package weather

import (
	"context"
)

// SeriesProvider abstracts a time-series source (e.g. the Open-Meteo archive).
// Implementations return the hourly samples covering the calendar days of the
// requested range, an empty series when nothing is available, or an error.
type SeriesProvider interface {
	Name() string
	FetchSeries(ctx context.Context, req SeriesRequest) (Series, error)
}

// CacheMetrics receives cache hit/miss observations.
type CacheMetrics interface {
	CacheHit(provider string)
	CacheMiss(provider string)
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) CacheHit(string)  {}
func (noopCacheMetrics) CacheMiss(string) {}
