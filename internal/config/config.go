package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Port        string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s" validate:"gt=0"`

	// SyncDebounce is the quiet period before a sync run starts.
	SyncDebounce time.Duration `envconfig:"SYNC_DEBOUNCE" default:"300ms" validate:"gt=0"`
	// FetchTimeout bounds one provider call inside a sync run.
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s" validate:"gte=0"`

	// MatchTolerance is the largest centroid distance (degrees, L1) at which
	// an edited geometry still matches a region.
	MatchTolerance float64 `envconfig:"MATCH_TOLERANCE" default:"0.5" validate:"gt=0"`

	// Snapshot persistence. A ".zst" suffix enables compression.
	SnapshotPath     string        `envconfig:"SNAPSHOT_PATH" default:"dashboard.json" validate:"required"`
	AutosaveInterval time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"1m" validate:"gte=0"`

	// RefreshInterval periodically refreshes region data (0 = disabled).
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0s" validate:"gte=0"`

	// Series cache retention.
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"512" validate:"gte=0"`
	CacheMaxAge     time.Duration `envconfig:"CACHE_MAX_AGE" default:"6h" validate:"gte=0"`

	ArchiveBaseURL string `envconfig:"ARCHIVE_BASE_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"required,url"`
	Timezone       string `envconfig:"TIMEZONE" default:"UTC" validate:"required"`

	// TimelineDays is how far the time slider reaches either side of today.
	TimelineDays int `envconfig:"TIMELINE_DAYS" default:"15" validate:"gte=1,lte=92"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	location *time.Location
}

// Location returns the parsed Timezone.
func (c *AppConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.location = loc

	return cfg, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *AppConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}

	var handler slog.Handler
	switch c.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
