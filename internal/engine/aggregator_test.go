package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

func makeRecord(ts time.Time, model string, status models.Status, latency int64, tokens int64) models.CallRecord {
	return models.CallRecord{
		ID:               uuid.New(),
		UserID:           "tester",
		Model:            model,
		PromptTokens:     tokens / 2,
		CompletionTokens: tokens - tokens/2,
		TotalTokens:      tokens,
		LatencyMs:        latency,
		CostEstimate:     decimal.NewFromFloat(0.0001),
		Status:           status,
		Timestamp:        ts,
	}
}

func TestAggregateCountsAndErrorRate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	records := make([]models.CallRecord, 0, 100)
	for i := 0; i < 100; i++ {
		status := models.StatusSuccess
		if i < 5 {
			status = models.StatusError
		}
		latency := int64(100 + i) // ascending, index 94 holds 194
		records = append(records, makeRecord(start.Add(time.Duration(i)*time.Second), "llama-3.1-8b-instant", status, latency, 100))
	}

	snapshots, err := Aggregate(context.Background(), records, window, models.GroupByNone, []int{95}, AggregateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snapshots))
	}

	snap := snapshots[0]
	if snap.Count != 100 || snap.ErrorCount != 5 || snap.SuccessCount != 95 {
		t.Fatalf("counts wrong: count=%d errors=%d successes=%d", snap.Count, snap.ErrorCount, snap.SuccessCount)
	}
	if snap.ErrorRate != 0.05 {
		t.Fatalf("error rate = %v, want 0.05", snap.ErrorRate)
	}
	// Nearest rank over 100 samples picks index ceil(0.95*100)-1 = 94.
	if got := snap.Percentiles[95]; got != 194 {
		t.Fatalf("p95 = %v, want 194", got)
	}
	if snap.TotalTokens != 100*100 {
		t.Fatalf("total tokens = %d, want 10000", snap.TotalTokens)
	}
}

func TestAggregateP95IgnoresSingleOutlier(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	records := make([]models.CallRecord, 0, 100)
	for i := 0; i < 99; i++ {
		records = append(records, makeRecord(start.Add(time.Duration(i)*time.Second), "m", models.StatusSuccess, 100, 10))
	}
	records = append(records, makeRecord(start.Add(99*time.Second), "m", models.StatusSuccess, 60000, 10))

	snapshots, err := Aggregate(context.Background(), records, window, models.GroupByNone, []int{95}, AggregateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := snapshots[0].Percentiles[95]; got != 100 {
		t.Fatalf("p95 = %v, want 100 (one outlier in 100 samples must not move it)", got)
	}
	if snapshots[0].MaxLatencyMs != 60000 {
		t.Fatalf("max latency = %d, want 60000", snapshots[0].MaxLatencyMs)
	}
}

func TestAggregateGroupCountsSumToTotal(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(2 * time.Hour)}

	var records []models.CallRecord
	modelNames := []string{"alpha", "beta", "gamma"}
	for i := 0; i < 60; i++ {
		status := models.StatusSuccess
		if i%7 == 0 {
			status = models.StatusError
		}
		records = append(records, makeRecord(start.Add(time.Duration(i)*time.Minute), modelNames[i%3], status, int64(50+i), 20))
	}

	total, err := Aggregate(context.Background(), records, window, models.GroupByNone, nil, AggregateOptions{})
	if err != nil {
		t.Fatalf("ungrouped aggregate: %v", err)
	}
	byModel, err := Aggregate(context.Background(), records, window, models.GroupByModel, nil, AggregateOptions{})
	if err != nil {
		t.Fatalf("grouped aggregate: %v", err)
	}

	if len(byModel) != 3 {
		t.Fatalf("expected 3 model groups, got %d", len(byModel))
	}
	var sum, errSum int64
	for _, snap := range byModel {
		sum += snap.Count
		errSum += snap.ErrorCount
	}
	if sum != total[0].Count {
		t.Fatalf("group counts sum to %d, ungrouped count is %d", sum, total[0].Count)
	}
	if errSum != total[0].ErrorCount {
		t.Fatalf("group error counts sum to %d, ungrouped is %d", errSum, total[0].ErrorCount)
	}
}

func TestAggregateExcludesRecordsOutsideWindow(t *testing.T) {
	start := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	records := []models.CallRecord{
		makeRecord(start.Add(-time.Second), "m", models.StatusSuccess, 10, 1),
		makeRecord(start, "m", models.StatusSuccess, 10, 1),
		makeRecord(start.Add(30*time.Minute), "m", models.StatusSuccess, 10, 1),
		makeRecord(window.End, "m", models.StatusSuccess, 10, 1), // end is exclusive
	}

	snapshots, err := Aggregate(context.Background(), records, window, models.GroupByNone, nil, AggregateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshots[0].Count != 2 {
		t.Fatalf("count = %d, want 2 (half-open window)", snapshots[0].Count)
	}
}

func TestAggregateInvalidWindow(t *testing.T) {
	now := time.Now().UTC()
	window := models.Window{Start: now, End: now.Add(-time.Hour)}

	_, err := Aggregate(context.Background(), nil, window, models.GroupByNone, nil, AggregateOptions{})
	if !errors.Is(err, utils.ErrInvalidWindow) {
		t.Fatalf("error = %v, want ErrInvalidWindow", err)
	}
}

func TestAggregateUnsupportedGrouping(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}
	records := []models.CallRecord{
		makeRecord(start.Add(time.Minute), "m", models.StatusSuccess, 10, 1),
	}

	_, err := Aggregate(context.Background(), records, window, models.GroupBy("user"), nil, AggregateOptions{})
	if !errors.Is(err, utils.ErrUnsupportedGrouping) {
		t.Fatalf("error = %v, want ErrUnsupportedGrouping", err)
	}
}

func TestAggregateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	_, err := Aggregate(ctx, nil, window, models.GroupByNone, nil, AggregateOptions{})
	if !errors.Is(err, utils.ErrDeadlineExceeded) {
		t.Fatalf("error = %v, want ErrDeadlineExceeded", err)
	}
}

func TestAggregateEmptyWindowYieldsNoGroups(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	snapshots, err := Aggregate(context.Background(), nil, window, models.GroupByModel, nil, AggregateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("expected no snapshots for empty input, got %d", len(snapshots))
	}
}

func TestAggregateHourBucketsWithGapFill(t *testing.T) {
	start := time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(4 * time.Hour)}

	records := []models.CallRecord{
		makeRecord(start.Add(10*time.Minute), "m", models.StatusSuccess, 100, 10),
		makeRecord(start.Add(3*time.Hour+5*time.Minute), "m", models.StatusError, 200, 10),
	}

	snapshots, err := Aggregate(context.Background(), records, window, models.GroupByHour, nil, AggregateOptions{FillGaps: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 4 {
		t.Fatalf("expected 4 hourly buckets, got %d", len(snapshots))
	}
	for i := 1; i < len(snapshots); i++ {
		if !snapshots[i-1].BucketStart.Before(snapshots[i].BucketStart) {
			t.Fatalf("buckets out of order: %v then %v", snapshots[i-1].BucketStart, snapshots[i].BucketStart)
		}
	}
	if snapshots[1].Count != 0 || snapshots[2].Count != 0 {
		t.Fatalf("middle buckets should be empty, got %d and %d", snapshots[1].Count, snapshots[2].Count)
	}
	if snapshots[0].Count != 1 || snapshots[3].ErrorCount != 1 {
		t.Fatalf("occupied buckets wrong: first count=%d last errors=%d", snapshots[0].Count, snapshots[3].ErrorCount)
	}
}

func TestAggregateDeterministicAcrossInputOrder(t *testing.T) {
	start := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	forward := []models.CallRecord{
		makeRecord(start.Add(1*time.Minute), "b", models.StatusSuccess, 300, 30),
		makeRecord(start.Add(2*time.Minute), "a", models.StatusSuccess, 100, 10),
		makeRecord(start.Add(3*time.Minute), "a", models.StatusError, 200, 20),
	}
	reversed := []models.CallRecord{forward[2], forward[1], forward[0]}

	first, err := Aggregate(context.Background(), forward, window, models.GroupByModel, []int{50, 95}, AggregateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Aggregate(context.Background(), reversed, window, models.GroupByModel, []int{50, 95}, AggregateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("snapshot counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].GroupKey != second[i].GroupKey {
			t.Fatalf("group order differs at %d: %q vs %q", i, first[i].GroupKey, second[i].GroupKey)
		}
		if first[i].Count != second[i].Count || first[i].ErrorRate != second[i].ErrorRate {
			t.Fatalf("snapshot %q differs between orders", first[i].GroupKey)
		}
		for p, v := range first[i].Percentiles {
			if second[i].Percentiles[p] != v {
				t.Fatalf("p%d differs for %q: %v vs %v", p, first[i].GroupKey, v, second[i].Percentiles[p])
			}
		}
	}
}

func TestNearestRank(t *testing.T) {
	cases := []struct {
		name   string
		sorted []int64
		p      int
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single", []int64{42}, 95, 42},
		{"two p50", []int64{10, 20}, 50, 10},
		{"two p95", []int64{10, 20}, 95, 20},
		{"ten p90", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 90, 9},
		{"ten p100", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 100, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nearestRank(tc.sorted, tc.p); got != tc.want {
				t.Fatalf("nearestRank(%v, %d) = %v, want %v", tc.sorted, tc.p, got, tc.want)
			}
		})
	}
}
