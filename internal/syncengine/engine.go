// Package syncengine keeps each region's derived value and color consistent
// with its boundary, its rules and the active time window.
//
// Store changes that matter (time window, region membership, rule lists,
// boundaries) move the engine from Idle to Scheduled. Further triggers while
// Scheduled restart the debounce timer; triggers while Running request one
// follow-up run. A run walks a snapshot of the regions one at a time,
// fetching, aggregating and coloring each, and writes results back through
// the store's idempotent UpdateRegionData so its own writes never retrigger it.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/store"
	"github.com/i474232898/weather-region-dashboard/internal/weather"
)

// DefaultDebounce is the quiet period before a scheduled run starts.
const DefaultDebounce = 300 * time.Millisecond

// ErrStopped is returned by Run when the engine was already stopped.
var ErrStopped = errors.New("sync engine stopped")

// Phase is the scheduler state.
type Phase int

const (
	Idle Phase = iota
	Scheduled
	Running
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Store is the part of the region store the engine depends on.
type Store interface {
	Snapshot() dashboard.State
	Subscribe(l store.Listener) (unsubscribe func())
	UpdateRegionData(id string, value *float64, color string) bool
}

// Metrics receives run and per-region observations.
type Metrics interface {
	RunCompleted(d time.Duration, regions int, cancelled bool)
	RegionEvaluated(outcome Outcome)
	PhaseChanged(p Phase)
}

// Outcome classifies how a region's value was derived in a run.
type Outcome string

const (
	OutcomeValue         Outcome = "value"
	OutcomeNoData        Outcome = "no_data"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeNoCentroid    Outcome = "no_centroid"
)

type noopMetrics struct{}

func (noopMetrics) RunCompleted(time.Duration, int, bool) {}
func (noopMetrics) RegionEvaluated(Outcome)               {}
func (noopMetrics) PhaseChanged(Phase)                    {}

// Config tunes the engine.
type Config struct {
	// Debounce is the quiet period after the last trigger.
	Debounce time.Duration
	// FetchTimeout bounds each provider call (0 = no extra bound).
	FetchTimeout time.Duration
	// Timezone aligns time windows with the provider's day boundaries.
	Timezone *time.Location
}

// Engine is the sync engine. Create it with New and drive it with Run.
type Engine struct {
	store    Store
	provider weather.SeriesProvider
	cfg      Config
	log      *slog.Logger
	metrics  Metrics

	mu       sync.Mutex
	phase    Phase
	timer    *time.Timer
	gen      uint64 // invalidates timers that were reset or stopped
	followUp bool
	stopped  bool
	cancel   context.CancelFunc

	// writeMu makes Stop wait for an in-flight store write.
	writeMu sync.Mutex

	fire chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New creates an engine over s and provider.
func New(s Store, provider weather.SeriesProvider, cfg Config, opts ...Option) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	e := &Engine{
		store:    s,
		provider: provider,
		cfg:      cfg,
		log:      slog.Default(),
		metrics:  noopMetrics{},
		fire:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Phase returns the current scheduler phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Run subscribes to the store and processes scheduled runs until ctx is
// cancelled or Stop is called. A run is scheduled immediately when the store
// already holds regions.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.cancel = cancel
	e.mu.Unlock()

	unsubscribe := e.store.Subscribe(e.onChange)
	defer unsubscribe()

	if len(e.store.Snapshot().Regions) > 0 {
		e.Trigger("startup")
	}

	e.log.Info("sync engine started", "debounce", e.cfg.Debounce.String())
	for {
		select {
		case <-ctx.Done():
			e.teardown()
			e.log.Info("sync engine stopped")
			return nil
		case <-e.fire:
			e.execute(ctx)
			e.finishRun()
		}
	}
}

// Stop tears the engine down. After Stop returns the engine performs no
// further store writes.
func (e *Engine) Stop() {
	e.teardown()
}

// Refresh schedules a run regardless of store changes.
func (e *Engine) Refresh() {
	e.Trigger("refresh")
}

// Trigger requests a run. Requests coalesce: while Scheduled the debounce
// timer restarts, while Running a single follow-up run is queued.
func (e *Engine) Trigger(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	switch e.phase {
	case Idle:
		e.setPhaseLocked(Scheduled)
		e.armLocked()
	case Scheduled:
		e.armLocked()
	case Running:
		e.followUp = true
	}
	e.log.Debug("sync triggered", "reason", reason, "phase", e.phase.String())
}

// onChange is the store listener.
func (e *Engine) onChange(c store.Change) {
	if reason, ok := triggerReason(c); ok {
		e.Trigger(reason)
	}
}

// triggerReason reports whether a store transition affects derived data.
// Data writes, renames, selection and drawing changes do not.
func triggerReason(c store.Change) (string, bool) {
	if !c.Prev.TimeRange.Equal(c.Next.TimeRange) {
		return "time_range", true
	}
	if len(c.Prev.Regions) != len(c.Next.Regions) {
		return "membership", true
	}
	for id, next := range c.Next.Regions {
		prev, ok := c.Prev.Regions[id]
		if !ok {
			return "membership", true
		}
		if !dashboard.RulesEqual(prev.Rules, next.Rules) {
			return "rules", true
		}
		if prev.Centroid != next.Centroid || prev.DataSource != next.DataSource {
			return "boundary", true
		}
	}
	return "", false
}

// armLocked (re)starts the debounce timer. Timers from earlier arms are
// invalidated through gen, so a late-firing stale timer is ignored.
func (e *Engine) armLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(e.cfg.Debounce, func() { e.timerFired(gen) })
}

func (e *Engine) timerFired(gen uint64) {
	e.mu.Lock()
	if e.stopped || gen != e.gen || e.phase != Scheduled {
		e.mu.Unlock()
		return
	}
	e.setPhaseLocked(Running)
	e.timer = nil
	e.mu.Unlock()

	select {
	case e.fire <- struct{}{}:
	default:
	}
}

func (e *Engine) finishRun() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	if e.followUp {
		e.followUp = false
		e.setPhaseLocked(Scheduled)
		e.armLocked()
		return
	}
	e.setPhaseLocked(Idle)
}

func (e *Engine) teardown() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.followUp = false
	e.setPhaseLocked(Idle)
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Wait out a write that passed its cancellation check.
	e.writeMu.Lock()
	e.writeMu.Unlock()
}

func (e *Engine) setPhaseLocked(p Phase) {
	if e.phase == p {
		return
	}
	e.phase = p
	e.metrics.PhaseChanged(p)
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}
