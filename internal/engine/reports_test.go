package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

func TestOverviewEmptyWindowReturnsZeroRow(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	snap, err := Overview(context.Background(), nil, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Count != 0 || snap.ErrorRate != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
	if snap.Percentiles[95] != 0 {
		t.Fatalf("expected zero p95, got %v", snap.Percentiles[95])
	}
}

func TestModelUsageShares(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	var records []models.CallRecord
	for i := 0; i < 3; i++ {
		records = append(records, makeRecord(start.Add(time.Duration(i)*time.Minute), "a", models.StatusSuccess, 100, 10))
	}
	records = append(records, makeRecord(start.Add(10*time.Minute), "b", models.StatusSuccess, 100, 10))

	entries, err := ModelUsage(context.Background(), records, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Model != "a" || entries[0].Share != 0.75 {
		t.Fatalf("model a share = %v, want 0.75", entries[0].Share)
	}
	if entries[1].Model != "b" || entries[1].Share != 0.25 {
		t.Fatalf("model b share = %v, want 0.25", entries[1].Share)
	}
}

func TestErrorBreakdownOrderAndShares(t *testing.T) {
	start := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.Add(time.Hour)}

	var records []models.CallRecord
	add := func(n int, kind models.ErrorType) {
		for i := 0; i < n; i++ {
			r := makeRecord(start.Add(time.Duration(len(records))*time.Second), "m", models.StatusError, 100, 10)
			r.ErrorType = kind
			records = append(records, r)
		}
	}
	add(5, models.ErrorTypeRateLimit)
	add(2, models.ErrorTypeTimeout)
	add(2, models.ErrorTypeNetwork)
	add(1, "") // empty type folds into unknown
	records = append(records, makeRecord(start.Add(time.Hour-time.Second), "m", models.StatusSuccess, 100, 10))

	entries, err := ErrorBreakdown(context.Background(), records, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 categories, got %d", len(entries))
	}
	if entries[0].ErrorType != models.ErrorTypeRateLimit || entries[0].Count != 5 {
		t.Fatalf("top entry = %+v, want rate_limit x5", entries[0])
	}
	// Tied counts order by category name.
	if entries[1].ErrorType != models.ErrorTypeNetwork || entries[2].ErrorType != models.ErrorTypeTimeout {
		t.Fatalf("tie break wrong: %v then %v", entries[1].ErrorType, entries[2].ErrorType)
	}
	if entries[3].ErrorType != models.ErrorTypeUnknown {
		t.Fatalf("empty error type should report as unknown, got %v", entries[3].ErrorType)
	}
	if entries[0].Share != 0.5 {
		t.Fatalf("rate_limit share = %v, want 0.5 of errors only", entries[0].Share)
	}
}

func TestErrorBreakdownInvalidWindow(t *testing.T) {
	now := time.Now().UTC()
	_, err := ErrorBreakdown(context.Background(), nil, models.Window{Start: now, End: now.Add(-time.Minute)})
	if !errors.Is(err, utils.ErrInvalidWindow) {
		t.Fatalf("error = %v, want ErrInvalidWindow", err)
	}
}

func TestDailyStatsFillsEmptyDays(t *testing.T) {
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	window := models.Window{Start: start, End: start.AddDate(0, 0, 3)}

	records := []models.CallRecord{
		makeRecord(start.Add(2*time.Hour), "m", models.StatusSuccess, 100, 10),
		makeRecord(start.AddDate(0, 0, 2).Add(5*time.Hour), "m", models.StatusSuccess, 100, 10),
	}

	snapshots, err := DailyStats(context.Background(), records, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 daily buckets, got %d", len(snapshots))
	}
	if snapshots[1].Count != 0 {
		t.Fatalf("middle day should be empty, got count %d", snapshots[1].Count)
	}
	if !snapshots[0].BucketStart.Equal(start) {
		t.Fatalf("first bucket starts at %v, want %v", snapshots[0].BucketStart, start)
	}
}
