// Package service wires the record store, aggregation engine, and alert
// lifecycle manager into the operations callers invoke: periodic alert
// checks and dashboard-style metric queries.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/promptpulse/promptpulse-engine/internal/alerting"
	"github.com/promptpulse/promptpulse-engine/internal/engine"
	"github.com/promptpulse/promptpulse-engine/internal/metrics"
	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// RecordSource is the read-only query surface of the record store.
type RecordSource interface {
	QueryCallRecords(ctx context.Context, filter models.RecordFilter) ([]models.CallRecord, error)
}

// Checker runs alert evaluations over the recent record stream.
type Checker struct {
	logger    *slog.Logger
	source    RecordSource
	manager   *alerting.Manager
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewChecker constructs a checker.
func NewChecker(logger *slog.Logger, source RecordSource, manager *alerting.Manager) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		logger:    logger,
		source:    source,
		manager:   manager,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// RunAlertCheck evaluates every active rule against the trailing window of
// windowMinutes ending now, with the adjacent prior window supplied for
// spike rules. It returns the events created or refreshed during the run.
// Failures on individual rules are isolated: they are logged and the
// remaining rules still evaluate.
func (c *Checker) RunAlertCheck(ctx context.Context, windowMinutes int) ([]models.AlertEvent, error) {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}

	started := c.now()
	events, err := c.runCheck(ctx, windowMinutes)
	duration := c.now().Sub(started)

	if err != nil {
		metrics.ObserveCheck(duration, metrics.OutcomeError)
		return nil, err
	}
	metrics.ObserveCheck(duration, metrics.OutcomeSuccess)

	c.latencies.Observe(duration)
	if count := c.latencies.Count(); count >= 20 && count%20 == 0 {
		c.logger.Info("alert check latency",
			slog.Duration("p95", c.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
	return events, nil
}

func (c *Checker) runCheck(ctx context.Context, windowMinutes int) ([]models.AlertEvent, error) {
	const op = "service.RunAlertCheck"

	now := c.now().UTC()
	current := models.Window{Start: now.Add(-time.Duration(windowMinutes) * time.Minute), End: now}
	previous := current.Previous()

	// One fetch covers both windows; Aggregate restricts to each window.
	records, err := c.source.QueryCallRecords(ctx, models.RecordFilter{Start: previous.Start, End: current.End})
	if err != nil {
		return nil, utils.NewAppError(op, "fetch records", err)
	}

	currentSnaps, err := engine.Aggregate(ctx, records, current, models.GroupByNone, []int{95}, engine.AggregateOptions{})
	if err != nil {
		return nil, err
	}
	if len(currentSnaps) == 0 {
		c.logger.Debug("no records in window, skipping rule evaluation",
			slog.Time("start", current.Start), slog.Time("end", current.End))
		return nil, nil
	}
	currentSnap := currentSnaps[0]

	var previousSnap *models.MetricSnapshot
	previousSnaps, err := engine.Aggregate(ctx, records, previous, models.GroupByNone, []int{95}, engine.AggregateOptions{})
	if err != nil {
		return nil, err
	}
	if len(previousSnaps) > 0 {
		previousSnap = &previousSnaps[0]
	}

	rules, err := c.manager.ListRules(ctx, true)
	if err != nil {
		return nil, utils.NewAppError(op, "list rules", err)
	}

	var events []models.AlertEvent
	for _, rule := range rules {
		outcome, err := engine.Evaluate(rule, currentSnap, previousSnap)
		if err != nil {
			// One bad rule must not abort the remaining rules.
			c.logger.Error("rule evaluation failed",
				slog.String("rule", rule.Name), slog.Any("error", err))
			continue
		}
		if !outcome.Triggered {
			continue
		}

		event, created, err := c.manager.RecordTrigger(ctx, rule, outcome)
		if err != nil {
			c.logger.Error("failed to record trigger",
				slog.String("rule", rule.Name), slog.Any("error", err))
			continue
		}
		if created {
			c.logger.Warn("alert event created",
				slog.String("rule", rule.Name),
				slog.Float64("value", outcome.Value))
		} else {
			c.logger.Info("alert event refreshed",
				slog.String("rule", rule.Name),
				slog.Float64("value", outcome.Value))
		}
		events = append(events, event)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return events, utils.NewAppError(op, "check deadline exceeded", utils.ErrDeadlineExceeded)
	}
	return events, nil
}
