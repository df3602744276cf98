package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
)

// StateSource provides the snapshot to persist.
type StateSource interface {
	Snapshot() dashboard.State
}

// Saver persists a snapshot.
type Saver interface {
	Save(s dashboard.State) error
}

// Refresher schedules a sync run.
type Refresher interface {
	Refresh()
}

// Config selects which periodic jobs run. A zero interval disables a job.
type Config struct {
	AutosaveInterval time.Duration
	RefreshInterval  time.Duration
}

// Scheduler runs the periodic dashboard jobs: snapshot autosave and a
// periodic refresh of region data.
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    StateSource
	saver     Saver
	refresher Refresher
	cfg       Config
	log       *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config, source StateSource, saver Saver, refresher Refresher, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		saver:     saver,
		refresher: refresher,
		cfg:       cfg,
		log:       log,
	}
}

// Start schedules the configured jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.AutosaveInterval > 0 && s.saver != nil && s.source != nil {
		_, err := s.scheduler.Every(s.cfg.AutosaveInterval).WaitForSchedule().SingletonMode().Do(s.SaveNow)
		if err != nil {
			return fmt.Errorf("schedule autosave: %w", err)
		}
	}

	if s.cfg.RefreshInterval > 0 && s.refresher != nil {
		_, err := s.scheduler.Every(s.cfg.RefreshInterval).WaitForSchedule().Do(func() {
			s.log.Debug("scheduler: periodic refresh")
			s.refresher.Refresh()
		})
		if err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
	}

	if s.scheduler.Len() == 0 {
		s.log.Info("scheduler: no periodic jobs configured")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// SaveNow persists the current snapshot immediately.
func (s *Scheduler) SaveNow() {
	if err := s.saver.Save(s.source.Snapshot()); err != nil {
		s.log.Error("scheduler: snapshot save failed", "error", err)
		return
	}
	s.log.Debug("scheduler: snapshot saved")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
