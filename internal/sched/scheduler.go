// Package sched runs the alert checker on a fixed interval.
package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/promptpulse/promptpulse-engine/internal/models"
)

// CheckRunner is the alert-check entry point invoked on every tick.
type CheckRunner interface {
	RunAlertCheck(ctx context.Context, windowMinutes int) ([]models.AlertEvent, error)
}

// Scheduler triggers periodic alert checks until its context is cancelled.
type Scheduler struct {
	logger        *slog.Logger
	runner        CheckRunner
	interval      time.Duration
	windowMinutes int
}

// New constructs a scheduler invoking runner every interval with the given
// evaluation window.
func New(logger *slog.Logger, runner CheckRunner, interval time.Duration, windowMinutes int) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	return &Scheduler{
		logger:        logger,
		runner:        runner,
		interval:      interval,
		windowMinutes: windowMinutes,
	}
}

// Run blocks, checking alerts once immediately and then on every tick,
// until ctx is done. Check failures are logged; the loop keeps running.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("alert scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("window_minutes", s.windowMinutes))

	s.check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("alert scheduler stopped")
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	events, err := s.runner.RunAlertCheck(checkCtx, s.windowMinutes)
	if err != nil {
		s.logger.Error("alert check failed", slog.Any("error", err))
		return
	}
	if len(events) > 0 {
		s.logger.Info("alert check complete", slog.Int("events", len(events)))
	}
}
