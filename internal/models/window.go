package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window is a half-open time interval [Start, End) used for aggregation.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the adjacent window of equal length ending at Start.
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// GroupBy selects the grouping key applied during aggregation.
type GroupBy string

const (
	GroupByNone   GroupBy = "none"
	GroupByModel  GroupBy = "model"
	GroupByStatus GroupBy = "status"
	GroupByHour   GroupBy = "hour"
	GroupByDay    GroupBy = "day"
	GroupByMonth  GroupBy = "month"
)

// IsBucketed reports whether the grouping is a calendar bucket.
func (g GroupBy) IsBucketed() bool {
	return g == GroupByHour || g == GroupByDay || g == GroupByMonth
}

// MetricSnapshot holds the derived statistics for one group within one
// window. Snapshots are produced fresh on every aggregation and never
// mutated afterwards.
type MetricSnapshot struct {
	Window   Window
	GroupBy  GroupBy
	GroupKey string

	// BucketStart is set for calendar-bucketed groupings and labels the
	// bucket by its start timestamp in UTC.
	BucketStart time.Time

	Count        int64
	ErrorCount   int64
	SuccessCount int64

	// ErrorRate is a fraction in [0, 1]; zero when Count is zero.
	ErrorRate float64

	AvgLatencyMs float64
	MinLatencyMs int64
	MaxLatencyMs int64

	// Percentiles maps a requested percentile (e.g. 95) to the
	// nearest-rank latency in milliseconds.
	Percentiles map[int]float64

	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	TotalCost        decimal.Decimal
}

// LatencyP95 returns the P95 latency when it was requested, else zero.
func (s MetricSnapshot) LatencyP95() float64 {
	return s.Percentiles[95]
}

// MetricsQuery describes a dashboard-style aggregation request.
type MetricsQuery struct {
	Start       time.Time
	End         time.Time
	Model       string
	Status      Status
	GroupBy     GroupBy
	Percentiles []int
}
