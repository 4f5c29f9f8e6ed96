// Package scheduler runs the recurring jobs: the volume-based batch summary
// trigger and the stale-task sweep. The batch schedule comes from the
// EMAIL_SCHEDULE runtime setting and is re-read on restart, so operators can
// change it without redeploying.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/projetosombra/sombra-api/internal/domain"
)

// BatchTrigger runs one pass of the volume-based summary trigger.
type BatchTrigger interface {
	RunVolumeTrigger(ctx context.Context) error
}

// StaleSweeper force-fails tasks stuck in flight past the timeout.
type StaleSweeper interface {
	FailStaleTasks(ctx context.Context, timeout time.Duration) (int, error)
}

// SettingsProvider supplies the current runtime settings.
type SettingsProvider interface {
	Current(ctx context.Context) (domain.Settings, error)
}

// Config carries the static scheduler parameters.
type Config struct {
	// DefaultBatchSchedule is used when EMAIL_SCHEDULE is absent or does
	// not parse.
	DefaultBatchSchedule string

	// StaleSweepSchedule is the cron expression for the stale sweep.
	StaleSweepSchedule string

	// StaleTimeout is how long an in-flight task may sit without updates.
	StaleTimeout time.Duration
}

// Scheduler owns the cron runner. Restart tears the runner down and
// rebuilds it with the current EMAIL_SCHEDULE.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	batch    BatchTrigger
	sweeper  StaleSweeper
	settings SettingsProvider
	cfg      Config
	logger   *slog.Logger
}

// New creates a Scheduler. If logger is nil, the default logger is used.
func New(batch BatchTrigger, sweeper StaleSweeper, settings SettingsProvider, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		batch:    batch,
		sweeper:  sweeper,
		settings: settings,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Start builds the cron runner and begins executing jobs. Returns an error
// only when the static stale-sweep expression is invalid; a bad
// EMAIL_SCHEDULE falls back to the default with a log entry.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// Restart rebuilds the runner, re-reading EMAIL_SCHEDULE. Wired as the
// settings update hook.
func (s *Scheduler) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		// Wait for in-flight jobs so two batch triggers never overlap.
		<-stopCtx.Done()
		s.cron = nil
	}
	return s.startLocked(ctx)
}

// Stop halts the runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
}

func (s *Scheduler) startLocked(ctx context.Context) error {
	runner := cron.New()

	batchSchedule := s.batchSchedule(ctx)
	if _, err := runner.AddFunc(batchSchedule, func() { s.runBatch() }); err != nil {
		s.logger.Warn("invalid batch schedule, falling back to default",
			slog.String("schedule", batchSchedule),
			slog.String("error", err.Error()))
		if _, err := runner.AddFunc(s.cfg.DefaultBatchSchedule, func() { s.runBatch() }); err != nil {
			return err
		}
		batchSchedule = s.cfg.DefaultBatchSchedule
	}

	if _, err := runner.AddFunc(s.cfg.StaleSweepSchedule, func() { s.runSweep() }); err != nil {
		return err
	}

	runner.Start()
	s.cron = runner

	s.logger.Info("scheduler started",
		slog.String("batch_schedule", batchSchedule),
		slog.String("sweep_schedule", s.cfg.StaleSweepSchedule))
	return nil
}

// batchSchedule reads EMAIL_SCHEDULE, degrading to the default when the
// settings store is unavailable.
func (s *Scheduler) batchSchedule(ctx context.Context) string {
	if s.settings == nil {
		return s.cfg.DefaultBatchSchedule
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		s.logger.Error("failed to load settings for batch schedule",
			slog.String("error", err.Error()))
		return s.cfg.DefaultBatchSchedule
	}
	return settings.EmailSchedule(s.cfg.DefaultBatchSchedule)
}

func (s *Scheduler) runBatch() {
	ctx := context.Background()
	s.logger.Info("batch summary trigger starting")
	if err := s.batch.RunVolumeTrigger(ctx); err != nil {
		s.logger.Error("batch summary trigger failed", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) runSweep() {
	ctx := context.Background()
	failed, err := s.sweeper.FailStaleTasks(ctx, s.cfg.StaleTimeout)
	if err != nil {
		s.logger.Error("stale sweep failed", slog.String("error", err.Error()))
		return
	}
	if failed > 0 {
		s.logger.Info("stale sweep completed", slog.Int("failed_tasks", failed))
	}
}
