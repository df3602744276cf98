package syncengine

import (
	"context"
	"time"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/weather"
)

// execute performs one run over a snapshot taken now. Regions are processed
// sequentially in id order. Cancellation is checked before every fetch and
// before every store write.
func (e *Engine) execute(ctx context.Context) {
	started := time.Now()
	snap := e.store.Snapshot()
	window := snap.TimeRange.In(e.cfg.Timezone)
	ids := snap.RegionIDs()

	var (
		processed int
		updated   int
		cancelled bool
	)

	for _, id := range ids {
		if e.cancelled(ctx) {
			cancelled = true
			break
		}

		region := snap.Regions[id]
		value, color, outcome := e.evaluate(ctx, region, window)

		written, changed := e.write(ctx, id, value, color)
		if !written {
			cancelled = true
			break
		}
		processed++
		if changed {
			updated++
		}
		e.metrics.RegionEvaluated(outcome)
	}

	d := time.Since(started)
	e.metrics.RunCompleted(d, processed, cancelled)
	e.log.Info("sync run completed",
		"regions", len(ids),
		"processed", processed,
		"changed", updated,
		"cancelled", cancelled,
		"duration", d.String(),
	)
}

// evaluate derives the value and color for one region. Provider failures
// and empty results degrade to no data.
func (e *Engine) evaluate(ctx context.Context, r dashboard.Region, window weather.TimeRange) (*float64, string, Outcome) {
	if !r.HasCentroid() {
		return nil, dashboard.ResolveColor(nil, r.Rules), OutcomeNoCentroid
	}

	fetchCtx := ctx
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	series, err := e.provider.FetchSeries(fetchCtx, weather.SeriesRequest{
		Location: r.Centroid.Location(),
		Range:    window,
		Metric:   r.DataSource.Metric(),
	})
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn("series fetch failed", "region_id", r.ID, "provider", e.provider.Name(), "error", err)
		}
		return nil, dashboard.NeutralColor, OutcomeProviderError
	}
	if len(series) == 0 {
		e.log.Warn("series empty", "region_id", r.ID, "provider", e.provider.Name())
		return nil, dashboard.NeutralColor, OutcomeNoData
	}

	avg, ok := weather.AverageWindow(series, window)
	if !ok {
		return nil, dashboard.ResolveColor(nil, r.Rules), OutcomeNoData
	}
	return &avg, dashboard.ResolveColor(&avg, r.Rules), OutcomeValue
}

// write stores a region's derived data unless the run was cancelled. It
// reports whether the write was attempted and whether it changed state.
func (e *Engine) write(ctx context.Context, id string, value *float64, color string) (written, changed bool) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.cancelled(ctx) {
		return false, false
	}
	return true, e.store.UpdateRegionData(id, value, color)
}

func (e *Engine) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || e.isStopped()
}
