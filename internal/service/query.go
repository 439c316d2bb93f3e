package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/promptpulse/promptpulse-engine/internal/cache"
	"github.com/promptpulse/promptpulse-engine/internal/engine"
	"github.com/promptpulse/promptpulse-engine/internal/models"
)

// Query serves dashboard-style aggregation requests, caching results for a
// short TTL so repeated refreshes over identical windows skip recomputation.
type Query struct {
	logger *slog.Logger
	source RecordSource
	cache  cache.Provider
	ttl    time.Duration
}

// NewQuery constructs a query service. A nil provider disables caching.
func NewQuery(logger *slog.Logger, source RecordSource, provider cache.Provider, ttl time.Duration) *Query {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Query{logger: logger, source: source, cache: provider, ttl: ttl}
}

// Snapshots aggregates records matching the query into metric snapshots.
func (q *Query) Snapshots(ctx context.Context, req models.MetricsQuery) ([]models.MetricSnapshot, error) {
	key := snapshotCacheKey(req)
	if data, err := q.cache.Get(ctx, key); err == nil {
		var cached []models.MetricSnapshot
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		// A decode failure means a stale shape; drop it and recompute.
		_ = q.cache.Del(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		q.logger.Warn("cache read failed", slog.Any("error", err))
	}

	window := models.Window{Start: req.Start, End: req.End}
	records, err := q.source.QueryCallRecords(ctx, models.RecordFilter{
		Start:  req.Start,
		End:    req.End,
		Model:  req.Model,
		Status: req.Status,
	})
	if err != nil {
		return nil, err
	}

	groupBy := req.GroupBy
	if groupBy == "" {
		groupBy = models.GroupByNone
	}
	snapshots, err := engine.Aggregate(ctx, records, window, groupBy, req.Percentiles, engine.AggregateOptions{})
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snapshots); err == nil {
		if err := q.cache.Set(ctx, key, data, q.ttl); err != nil {
			q.logger.Warn("cache write failed", slog.Any("error", err))
		}
	}
	return snapshots, nil
}

// Overview returns the single-window summary snapshot.
func (q *Query) Overview(ctx context.Context, window models.Window) (models.MetricSnapshot, error) {
	records, err := q.source.QueryCallRecords(ctx, models.RecordFilter{Start: window.Start, End: window.End})
	if err != nil {
		return models.MetricSnapshot{}, err
	}
	return engine.Overview(ctx, records, window)
}

// ModelUsage returns the per-model usage breakdown for the window.
func (q *Query) ModelUsage(ctx context.Context, window models.Window) ([]engine.ModelUsageEntry, error) {
	records, err := q.source.QueryCallRecords(ctx, models.RecordFilter{Start: window.Start, End: window.End})
	if err != nil {
		return nil, err
	}
	return engine.ModelUsage(ctx, records, window)
}

// ModelLatency returns per-model latency statistics for the window.
func (q *Query) ModelLatency(ctx context.Context, window models.Window) ([]engine.ModelLatencyEntry, error) {
	records, err := q.source.QueryCallRecords(ctx, models.RecordFilter{Start: window.Start, End: window.End})
	if err != nil {
		return nil, err
	}
	return engine.ModelLatency(ctx, records, window)
}

// ErrorBreakdown returns error counts by category for the window.
func (q *Query) ErrorBreakdown(ctx context.Context, window models.Window) ([]engine.ErrorBreakdownEntry, error) {
	records, err := q.source.QueryCallRecords(ctx, models.RecordFilter{
		Start:  window.Start,
		End:    window.End,
		Status: models.StatusError,
	})
	if err != nil {
		return nil, err
	}
	return engine.ErrorBreakdown(ctx, records, window)
}

// DailyStats returns day-bucketed statistics with empty days included.
func (q *Query) DailyStats(ctx context.Context, window models.Window) ([]models.MetricSnapshot, error) {
	records, err := q.source.QueryCallRecords(ctx, models.RecordFilter{Start: window.Start, End: window.End})
	if err != nil {
		return nil, err
	}
	return engine.DailyStats(ctx, records, window)
}

func snapshotCacheKey(req models.MetricsQuery) string {
	return fmt.Sprintf("snapshots:%d:%d:%s:%s:%s:%v",
		req.Start.UTC().Unix(), req.End.UTC().Unix(), req.Model, req.Status, req.GroupBy, req.Percentiles)
}
