// Package scheduler drives the collector on a fixed cadence. It owns
// no domain logic: one cron entry samples, one sweeps old snapshots.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Orchestrator is the collection surface the scheduler triggers.
type Orchestrator interface {
	InitializeHistory(ctx context.Context) error
	TakeSnapshot(ctx context.Context) error
	Cleanup(ctx context.Context, retentionDays int) (int, error)
}

// Config holds trigger cadence settings.
type Config struct {
	SnapshotInterval time.Duration
	RetentionDays    int

	// CleanupSpec is the cron expression for the daily sweep.
	CleanupSpec string
}

// Status reports whether the periodic triggers are active.
type Status struct {
	Running          bool          `json:"running"`
	SnapshotInterval time.Duration `json:"snapshot_interval"`
	RetentionDays    int           `json:"retention_days"`
	NextRun          *time.Time    `json:"next_run,omitempty"`
}

// Scheduler owns its timers as instance state, so independent
// instances can run side by side in tests and stop cleanly.
type Scheduler struct {
	cfg    Config
	orch   Orchestrator
	logger *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func New(cfg Config, orch Orchestrator, logger *zap.Logger) *Scheduler {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = "0 3 * * *"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, orch: orch, logger: logger}
}

// Start seeds history, takes one immediate snapshot, then begins the
// periodic triggers. A second Start while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Debug("scheduler already running")
		return nil
	}

	if err := s.orch.InitializeHistory(ctx); err != nil {
		return fmt.Errorf("initialize history: %w", err)
	}
	if err := s.orch.TakeSnapshot(ctx); err != nil {
		// Logged, not fatal: the first periodic tick is the retry.
		s.logger.Error("initial snapshot failed", zap.Error(err))
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.logger))
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.SnapshotInterval), func() {
		if err := s.orch.TakeSnapshot(ctx); err != nil {
			s.logger.Error("scheduled snapshot failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("add snapshot trigger: %w", err)
	}

	if _, err := c.AddFunc(s.cfg.CleanupSpec, func() {
		if _, err := s.orch.Cleanup(ctx, s.cfg.RetentionDays); err != nil {
			s.logger.Error("scheduled cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("add cleanup trigger: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info("scheduler started",
		zap.Duration("snapshot_interval", s.cfg.SnapshotInterval),
		zap.String("cleanup_spec", s.cfg.CleanupSpec),
		zap.Int("retention_days", s.cfg.RetentionDays),
	)
	return nil
}

// Stop cancels all pending triggers and waits for a running job to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.running = false
	s.logger.Info("scheduler stopped")
}

// TriggerNow fires one collection cycle out of band.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orch.TakeSnapshot(ctx)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:          s.running,
		SnapshotInterval: s.cfg.SnapshotInterval,
		RetentionDays:    s.cfg.RetentionDays,
	}
	if s.running {
		for _, entry := range s.cron.Entries() {
			next := entry.Next
			if status.NextRun == nil || next.Before(*status.NextRun) {
				status.NextRun = &next
			}
		}
	}
	return status
}
