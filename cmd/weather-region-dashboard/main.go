package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/i474232898/weather-region-dashboard/internal/api/http"
	"github.com/i474232898/weather-region-dashboard/internal/config"
	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/observability"
	"github.com/i474232898/weather-region-dashboard/internal/scheduler"
	"github.com/i474232898/weather-region-dashboard/internal/store"
	"github.com/i474232898/weather-region-dashboard/internal/surface"
	"github.com/i474232898/weather-region-dashboard/internal/syncengine"
	"github.com/i474232898/weather-region-dashboard/internal/weather"
	"github.com/i474232898/weather-region-dashboard/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := cfg.NewLogger()
	slog.SetDefault(log)

	timeline := func() dashboard.Timeline {
		return dashboard.NewTimeline(time.Now(), cfg.TimelineDays, cfg.Location())
	}

	// Restore the last saved dashboard, or start empty.
	snapshots := store.NewFileSnapshotter(cfg.SnapshotPath)
	initial, err := snapshots.Load()
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("no saved dashboard, starting empty", "path", snapshots.Path())
		initial = dashboard.InitialState(timeline())
	case err != nil:
		log.Warn("saved dashboard unreadable, starting empty", "path", snapshots.Path(), "error", err)
		initial = dashboard.InitialState(timeline())
	default:
		log.Info("dashboard restored", "path", snapshots.Path(), "regions", len(initial.Regions))
	}
	regions := store.NewRegionStore(initial, store.WithLogger(log.With("component", "store")))

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewSyncCollector(registry)
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Archive provider with resilience (backoff + circuit breaker), behind the series cache.
	archive := providers.NewOpenMeteoArchiveProvider(httpClient, cfg.ArchiveBaseURL, cfg.Location())
	series := weather.NewCachedProvider(archive, cfg.CacheMaxEntries, cfg.CacheMaxAge,
		weather.WithCacheMetrics(metrics),
		weather.WithCacheLogger(log.With("component", "cache")),
	)

	engine := syncengine.New(regions, series, syncengine.Config{
		Debounce:     cfg.SyncDebounce,
		FetchTimeout: cfg.FetchTimeout,
		Timezone:     cfg.Location(),
	},
		syncengine.WithLogger(log.With("component", "sync")),
		syncengine.WithMetrics(metrics),
	)

	reconciler := surface.NewReconciler(regions, cfg.MatchTolerance, log.With("component", "surface"))

	// Scheduler for autosave and periodic refresh.
	sched := scheduler.New(scheduler.Config{
		AutosaveInterval: cfg.AutosaveInterval,
		RefreshInterval:  cfg.RefreshInterval,
	}, regions, snapshots, engine, log.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-region-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-region-dashboard",
			"sync":    engine.Phase().String(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Store:     regions,
		Surface:   reconciler,
		Refresher: engine,
		Timeline:  timeline,
		Gatherer:  registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http server listening", "port", cfg.Port)
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
	}

	engine.Stop()
	sched.Stop()
	sched.SaveNow()
	log.Info("dashboard saved, exiting", "path", snapshots.Path())
}
