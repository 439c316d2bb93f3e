package engine

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/promptpulse/promptpulse-engine/internal/models"
)

// Overview summarises a whole window in a single snapshot. A zero-count
// snapshot is returned for an empty window so dashboards always have a row.
func Overview(ctx context.Context, records []models.CallRecord, window models.Window) (models.MetricSnapshot, error) {
	snapshots, err := Aggregate(ctx, records, window, models.GroupByNone, []int{95}, AggregateOptions{})
	if err != nil {
		return models.MetricSnapshot{}, err
	}
	if len(snapshots) == 0 {
		return models.MetricSnapshot{
			Window:      window,
			GroupBy:     models.GroupByNone,
			Percentiles: map[int]float64{95: 0},
			TotalCost:   decimal.Zero,
		}, nil
	}
	return snapshots[0], nil
}

// ModelUsageEntry reports one model's share of the window's traffic.
type ModelUsageEntry struct {
	Model       string
	CallCount   int64
	TotalTokens int64
	TotalCost   decimal.Decimal
	Share       float64 // fraction of total calls in [0, 1]
}

// ModelUsage breaks the window down by model, ordered by model name.
func ModelUsage(ctx context.Context, records []models.CallRecord, window models.Window) ([]ModelUsageEntry, error) {
	snapshots, err := Aggregate(ctx, records, window, models.GroupByModel, []int{95}, AggregateOptions{})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, s := range snapshots {
		total += s.Count
	}

	entries := make([]ModelUsageEntry, 0, len(snapshots))
	for _, s := range snapshots {
		entry := ModelUsageEntry{
			Model:       s.GroupKey,
			CallCount:   s.Count,
			TotalTokens: s.TotalTokens,
			TotalCost:   s.TotalCost,
		}
		if total > 0 {
			entry.Share = float64(s.Count) / float64(total)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ModelLatencyEntry carries per-model latency statistics.
type ModelLatencyEntry struct {
	Model        string
	CallCount    int64
	AvgLatencyMs float64
	MinLatencyMs int64
	MaxLatencyMs int64
	P95LatencyMs float64
}

// ModelLatency reports latency statistics grouped by model.
func ModelLatency(ctx context.Context, records []models.CallRecord, window models.Window) ([]ModelLatencyEntry, error) {
	snapshots, err := Aggregate(ctx, records, window, models.GroupByModel, []int{95}, AggregateOptions{})
	if err != nil {
		return nil, err
	}

	entries := make([]ModelLatencyEntry, 0, len(snapshots))
	for _, s := range snapshots {
		entries = append(entries, ModelLatencyEntry{
			Model:        s.GroupKey,
			CallCount:    s.Count,
			AvgLatencyMs: s.AvgLatencyMs,
			MinLatencyMs: s.MinLatencyMs,
			MaxLatencyMs: s.MaxLatencyMs,
			P95LatencyMs: s.LatencyP95(),
		})
	}
	return entries, nil
}

// ErrorBreakdownEntry counts failed calls for one error category.
type ErrorBreakdownEntry struct {
	ErrorType models.ErrorType
	Count     int64
	Share     float64 // fraction of all errors in [0, 1]
}

// ErrorBreakdown tallies error records by category, ordered by count
// descending then category name for determinism.
func ErrorBreakdown(ctx context.Context, records []models.CallRecord, window models.Window) ([]ErrorBreakdownEntry, error) {
	if window.Start.After(window.End) {
		// Reuse Aggregate's validation path for a consistent error.
		if _, err := Aggregate(ctx, nil, window, models.GroupByNone, nil, AggregateOptions{}); err != nil {
			return nil, err
		}
	}

	counts := make(map[models.ErrorType]int64)
	var total int64
	for _, r := range records {
		if !window.Contains(r.Timestamp) || r.Status != models.StatusError {
			continue
		}
		kind := r.ErrorType
		if kind == "" {
			kind = models.ErrorTypeUnknown
		}
		counts[kind]++
		total++
	}

	entries := make([]ErrorBreakdownEntry, 0, len(counts))
	for kind, count := range counts {
		entry := ErrorBreakdownEntry{ErrorType: kind, Count: count}
		if total > 0 {
			entry.Share = float64(count) / float64(total)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].ErrorType < entries[j].ErrorType
	})
	return entries, nil
}

// DailyStats buckets the window by UTC calendar day, emitting a snapshot
// for every day in the window including empty ones.
func DailyStats(ctx context.Context, records []models.CallRecord, window models.Window) ([]models.MetricSnapshot, error) {
	return Aggregate(ctx, records, window, models.GroupByDay, []int{95}, AggregateOptions{FillGaps: true})
}
