// Package engine implements the metrics aggregation and rule evaluation
// core. Both halves are pure functions over their inputs: they produce
// fresh snapshots and outcomes instead of mutating shared state, so any
// number of invocations may run concurrently without locking.
package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// AggregateOptions tunes optional aggregation behaviour.
type AggregateOptions struct {
	// FillGaps emits zero-count snapshots for empty calendar buckets
	// between window start and end. Only meaningful for bucketed
	// groupings; ignored otherwise.
	FillGaps bool
}

// Aggregate computes one MetricSnapshot per distinct group value present in
// the records falling inside window. Records outside [window.Start,
// window.End) are ignored, so callers may pass an unfiltered batch. Output
// is ordered by group key (bucket start ascending for bucketed groupings,
// lexicographic otherwise).
func Aggregate(ctx context.Context, records []models.CallRecord, window models.Window, groupBy models.GroupBy, percentiles []int, opts AggregateOptions) ([]models.MetricSnapshot, error) {
	const op = "engine.Aggregate"

	if window.Start.After(window.End) {
		return nil, utils.NewAppError(op, "window start is after end", utils.ErrInvalidWindow)
	}
	if err := checkDeadline(ctx, op); err != nil {
		return nil, err
	}

	if len(percentiles) == 0 {
		percentiles = []int{95}
	}

	groups := make(map[string][]models.CallRecord)
	for _, r := range records {
		if !window.Contains(r.Timestamp) {
			continue
		}
		key, err := groupKey(groupBy, r)
		if err != nil {
			return nil, err
		}
		groups[key] = append(groups[key], r)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	snapshots := make([]models.MetricSnapshot, 0, len(keys))
	for _, key := range keys {
		if err := checkDeadline(ctx, op); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, summarise(window, groupBy, key, groups[key], percentiles))
	}

	if opts.FillGaps && groupBy.IsBucketed() {
		snapshots = fillBucketGaps(snapshots, window, groupBy, percentiles)
	}

	return snapshots, nil
}

// checkDeadline maps an expired context onto the engine's error taxonomy so
// a timed-out aggregation never returns partial snapshots.
func checkDeadline(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return utils.NewAppError(op, "aggregation aborted", utils.ErrDeadlineExceeded)
	}
	return nil
}

func groupKey(groupBy models.GroupBy, r models.CallRecord) (string, error) {
	switch groupBy {
	case models.GroupByNone, "":
		return "", nil
	case models.GroupByModel:
		return r.Model, nil
	case models.GroupByStatus:
		return string(r.Status), nil
	case models.GroupByHour:
		return utils.TruncateHour(r.Timestamp).Format(time.RFC3339), nil
	case models.GroupByDay:
		return utils.TruncateDay(r.Timestamp).Format(time.RFC3339), nil
	case models.GroupByMonth:
		return utils.TruncateMonth(r.Timestamp).Format(time.RFC3339), nil
	default:
		return "", utils.NewAppError("engine.Aggregate", "grouping "+string(groupBy), utils.ErrUnsupportedGrouping)
	}
}

func summarise(window models.Window, groupBy models.GroupBy, key string, records []models.CallRecord, percentiles []int) models.MetricSnapshot {
	snap := models.MetricSnapshot{
		Window:      window,
		GroupBy:     groupBy,
		GroupKey:    key,
		Percentiles: make(map[int]float64, len(percentiles)),
		TotalCost:   decimal.Zero,
	}
	if groupBy.IsBucketed() {
		// Bucket keys are RFC3339 by construction.
		snap.BucketStart, _ = time.Parse(time.RFC3339, key)
	}

	latencies := make([]int64, 0, len(records))
	var latencySum int64
	for _, r := range records {
		snap.Count++
		if r.Status == models.StatusError {
			snap.ErrorCount++
		} else {
			snap.SuccessCount++
		}
		snap.PromptTokens += r.PromptTokens
		snap.CompletionTokens += r.CompletionTokens
		snap.TotalTokens += r.TotalTokens
		snap.TotalCost = snap.TotalCost.Add(r.CostEstimate)

		latencies = append(latencies, r.LatencyMs)
		latencySum += r.LatencyMs
	}

	if snap.Count > 0 {
		snap.ErrorRate = float64(snap.ErrorCount) / float64(snap.Count)
		snap.AvgLatencyMs = float64(latencySum) / float64(snap.Count)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	if n := len(latencies); n > 0 {
		snap.MinLatencyMs = latencies[0]
		snap.MaxLatencyMs = latencies[n-1]
	}
	for _, p := range percentiles {
		snap.Percentiles[p] = nearestRank(latencies, p)
	}

	return snap
}

// nearestRank returns the p-th percentile of the ascending-sorted values
// using the nearest-rank method: the value at index ceil(p/100*n)-1,
// clamped to [0, n-1]. Sorting makes the result independent of input order,
// including for tied values.
func nearestRank(sorted []int64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	index := int(math.Ceil(float64(p)/100.0*float64(n))) - 1
	if index < 0 {
		index = 0
	}
	if index >= n {
		index = n - 1
	}
	return float64(sorted[index])
}

// fillBucketGaps inserts zero-count snapshots for buckets inside the window
// that saw no records. Present snapshots are already sorted by bucket start.
func fillBucketGaps(snapshots []models.MetricSnapshot, window models.Window, groupBy models.GroupBy, percentiles []int) []models.MetricSnapshot {
	present := make(map[string]struct{}, len(snapshots))
	for _, s := range snapshots {
		present[s.GroupKey] = struct{}{}
	}

	filled := snapshots
	for bucket := truncate(groupBy, window.Start); bucket.Before(window.End); bucket = nextBucket(groupBy, bucket) {
		key := bucket.Format(time.RFC3339)
		if _, ok := present[key]; ok {
			continue
		}
		empty := models.MetricSnapshot{
			Window:      window,
			GroupBy:     groupBy,
			GroupKey:    key,
			BucketStart: bucket,
			Percentiles: make(map[int]float64, len(percentiles)),
			TotalCost:   decimal.Zero,
		}
		for _, p := range percentiles {
			empty.Percentiles[p] = 0
		}
		filled = append(filled, empty)
	}

	sort.Slice(filled, func(i, j int) bool { return filled[i].GroupKey < filled[j].GroupKey })
	return filled
}

func truncate(groupBy models.GroupBy, t time.Time) time.Time {
	switch groupBy {
	case models.GroupByHour:
		return utils.TruncateHour(t)
	case models.GroupByDay:
		return utils.TruncateDay(t)
	default:
		return utils.TruncateMonth(t)
	}
}

func nextBucket(groupBy models.GroupBy, t time.Time) time.Time {
	switch groupBy {
	case models.GroupByHour:
		return t.Add(time.Hour)
	case models.GroupByDay:
		return t.AddDate(0, 0, 1)
	default:
		return t.AddDate(0, 1, 0)
	}
}
