// Package notify delivers alert notification intents to external channels.
// Delivery is best-effort: failures are logged by the dispatcher and never
// fail the evaluation run that produced the intent.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/promptpulse-engine/internal/models"
)

// Intent is the notification request handed to external transports.
type Intent struct {
	RuleID      uuid.UUID       `json:"rule_id"`
	RuleName    string          `json:"rule_name"`
	Kind        models.RuleKind `json:"kind"`
	EventID     uuid.UUID       `json:"event_id"`
	Target      string          `json:"target"`
	Message     string          `json:"message"`
	Value       float64         `json:"value"`
	TriggeredAt time.Time       `json:"triggered_at"`
}

// Notifier sends one intent over a single channel.
type Notifier interface {
	Send(ctx context.Context, intent Intent) error
	Name() string
}

// Dispatcher fans an intent out to every registered notifier.
type Dispatcher struct {
	logger    *slog.Logger
	notifiers []Notifier
}

// NewDispatcher constructs a dispatcher over the given notifiers.
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, notifiers: notifiers}
}

// Dispatch sends the intent through every notifier, logging and swallowing
// individual failures.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) {
	for _, n := range d.notifiers {
		if err := n.Send(ctx, intent); err != nil {
			d.logger.Warn("notification dispatch failed",
				slog.String("notifier", n.Name()),
				slog.String("rule", intent.RuleName),
				slog.Any("error", err))
		}
	}
}

// SlogNotifier writes intents to the structured log. It is always
// registered so triggered alerts are visible even without a webhook.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a log-backed notifier.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogNotifier{logger: logger}
}

// Send logs the alert at warn level.
func (n *SlogNotifier) Send(_ context.Context, intent Intent) error {
	n.logger.Warn("alert triggered",
		slog.String("rule", intent.RuleName),
		slog.String("kind", string(intent.Kind)),
		slog.Float64("value", intent.Value),
		slog.String("message", intent.Message))
	return nil
}

// Name identifies the notifier in dispatch logs.
func (n *SlogNotifier) Name() string { return "slog" }
