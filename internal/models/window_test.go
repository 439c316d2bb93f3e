package models

import (
	"testing"
	"time"
)

func TestWindowContainsHalfOpen(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: start.Add(time.Hour)}

	if !w.Contains(start) {
		t.Fatalf("start must be inside the window")
	}
	if w.Contains(w.End) {
		t.Fatalf("end must be outside the window")
	}
	if w.Contains(start.Add(-time.Nanosecond)) {
		t.Fatalf("instants before start must be outside")
	}
	if !w.Contains(w.End.Add(-time.Nanosecond)) {
		t.Fatalf("last instant before end must be inside")
	}
}

func TestWindowPrevious(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: start.Add(time.Hour)}

	prev := w.Previous()
	if !prev.End.Equal(w.Start) {
		t.Fatalf("previous window must end at current start")
	}
	if prev.Duration() != w.Duration() {
		t.Fatalf("previous window duration = %v, want %v", prev.Duration(), w.Duration())
	}
}

func TestGroupByIsBucketed(t *testing.T) {
	bucketed := []GroupBy{GroupByHour, GroupByDay, GroupByMonth}
	for _, g := range bucketed {
		if !g.IsBucketed() {
			t.Fatalf("%s should be bucketed", g)
		}
	}
	flat := []GroupBy{GroupByNone, GroupByModel, GroupByStatus}
	for _, g := range flat {
		if g.IsBucketed() {
			t.Fatalf("%s should not be bucketed", g)
		}
	}
}

func TestRecordFilterMatches(t *testing.T) {
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r := CallRecord{Model: "m", Status: StatusError, Timestamp: ts}

	if !(RecordFilter{}).Matches(r) {
		t.Fatalf("empty filter must match everything")
	}
	if !(RecordFilter{Model: "m", Status: StatusError}).Matches(r) {
		t.Fatalf("matching fields must match")
	}
	if (RecordFilter{Model: "other"}).Matches(r) {
		t.Fatalf("model mismatch must not match")
	}
	if (RecordFilter{End: ts}).Matches(r) {
		t.Fatalf("end bound is exclusive")
	}
	if !(RecordFilter{Start: ts}).Matches(r) {
		t.Fatalf("start bound is inclusive")
	}
}
