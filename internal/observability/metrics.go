package observability

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weather-region-dashboard/internal/syncengine"
)

// SyncCollector bundles Prometheus metrics for the sync engine and the
// series cache.
type SyncCollector struct {
	gatherer prometheus.Gatherer

	Runs           *prometheus.CounterVec
	RunDurations   prometheus.Histogram
	RegionOutcomes *prometheus.CounterVec
	Phase          prometheus.Gauge
	CacheLookups   *prometheus.CounterVec
}

// NewSyncCollector registers the metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewSyncCollector(reg prometheus.Registerer) (*SyncCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Completed sync runs, labeled by whether the run was cancelled.",
	}, []string{"cancelled"}), "sync_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Wall time of sync runs in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}), "sync_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	outcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_region_evaluations_total",
		Help: "Region evaluations, labeled by outcome.",
	}, []string{"outcome"}), "sync_region_evaluations_total")
	if err != nil {
		return nil, err
	}

	phase, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_engine_phase",
		Help: "Current sync engine phase (0 idle, 1 scheduled, 2 running).",
	}), "sync_engine_phase")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "series_cache_lookups_total",
		Help: "Series cache lookups, labeled by provider and result.",
	}, []string{"provider", "result"}), "series_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	return &SyncCollector{
		gatherer:       gatherer,
		Runs:           runs,
		RunDurations:   durations,
		RegionOutcomes: outcomes,
		Phase:          phase,
		CacheLookups:   lookups,
	}, nil
}

// Gatherer returns the gatherer backing the registry the metrics live in.
func (c *SyncCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

func (c *SyncCollector) RunCompleted(d time.Duration, _ int, cancelled bool) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(fmt.Sprint(cancelled)).Inc()
	c.RunDurations.Observe(d.Seconds())
}

func (c *SyncCollector) RegionEvaluated(outcome syncengine.Outcome) {
	if c == nil {
		return
	}
	c.RegionOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (c *SyncCollector) PhaseChanged(p syncengine.Phase) {
	if c == nil {
		return
	}
	c.Phase.Set(float64(p))
}

func (c *SyncCollector) CacheHit(provider string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(provider, "hit").Inc()
}

func (c *SyncCollector) CacheMiss(provider string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(provider, "miss").Inc()
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return g, nil
}
