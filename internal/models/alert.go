package models

import (
	"time"

	"github.com/google/uuid"
)

// RuleKind enumerates the metrics an alert rule can watch.
type RuleKind string

const (
	RuleErrorRate  RuleKind = "error_rate"
	RuleLatencyP95 RuleKind = "latency_p95"
	RuleTokenSpike RuleKind = "token_spike"
)

// AlertRule defines a threshold condition evaluated against metric
// snapshots. Threshold semantics depend on Kind: a fraction in [0, 1] for
// error_rate, milliseconds for latency_p95, and a multiplier over the
// previous period's token total for token_spike.
type AlertRule struct {
	ID          uuid.UUID
	Name        string
	Description string
	Kind        RuleKind
	Threshold   float64
	Active      bool

	// Target is the notification destination, e.g. a webhook URL or a
	// channel identifier understood by the configured notifiers.
	Target string

	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastTriggeredAt time.Time
}

// AlertEvent records one triggering of a rule. Events transition from
// unacknowledged to acknowledged exactly once and are never deleted here.
type AlertEvent struct {
	ID             uuid.UUID
	RuleID         uuid.UUID
	MetricValue    float64
	Message        string
	TriggeredAt    time.Time
	UpdatedAt      time.Time
	Acknowledged   bool
	AcknowledgedAt time.Time
}

// EventFilter narrows an alert-event listing. Nil Acknowledged means both
// states; zero times mean unbounded.
type EventFilter struct {
	RuleID       uuid.UUID
	Acknowledged *bool
	Start        time.Time
	End          time.Time
}
