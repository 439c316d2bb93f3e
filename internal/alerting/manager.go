// Package alerting owns alert rule state and the history of triggered
// alerts: rule CRUD with invariant enforcement, trigger deduplication, and
// acknowledgment.
package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/promptpulse-engine/internal/engine"
	"github.com/promptpulse/promptpulse-engine/internal/metrics"
	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/notify"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// RuleStore persists alert rules.
type RuleStore interface {
	InsertRule(ctx context.Context, rule models.AlertRule) error
	UpdateRule(ctx context.Context, rule models.AlertRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	GetRule(ctx context.Context, id uuid.UUID) (models.AlertRule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]models.AlertRule, error)
	MarkRuleTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}

// EventStore persists alert events.
type EventStore interface {
	AppendEvent(ctx context.Context, event models.AlertEvent) error
	UpdateEventValue(ctx context.Context, id uuid.UUID, value float64, message string, at time.Time) error
	AcknowledgeEvent(ctx context.Context, id uuid.UUID, at time.Time) error
	GetEvent(ctx context.Context, id uuid.UUID) (models.AlertEvent, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.AlertEvent, error)
	LatestUnacknowledged(ctx context.Context, ruleID uuid.UUID) (models.AlertEvent, error)
}

// Manager coordinates rule CRUD, trigger deduplication, acknowledgment, and
// notification intents. Trigger handling is serialised per rule ID so that
// concurrent evaluations of the same rule cannot create duplicate events,
// while independent rules proceed in parallel.
type Manager struct {
	logger     *slog.Logger
	rules      RuleStore
	events     EventStore
	dispatcher *notify.Dispatcher
	now        func() time.Time

	mu        sync.Mutex
	ruleLocks map[uuid.UUID]*sync.Mutex
}

// NewManager constructs a lifecycle manager over the given stores.
func NewManager(logger *slog.Logger, rules RuleStore, events EventStore, dispatcher *notify.Dispatcher) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:     logger,
		rules:      rules,
		events:     events,
		dispatcher: dispatcher,
		now:        time.Now,
		ruleLocks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *Manager) lockRule(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.ruleLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.ruleLocks[id] = lock
	}
	return lock
}

// ValidateRule enforces the rule invariants shared by create and update.
func ValidateRule(rule models.AlertRule) error {
	const op = "alerting.ValidateRule"

	if rule.Name == "" {
		return utils.NewAppError(op, "rule name is required", utils.ErrInvalidRule)
	}
	switch rule.Kind {
	case models.RuleErrorRate:
		if rule.Threshold < 0 || rule.Threshold > 1 {
			return utils.NewAppError(op, "error_rate threshold must be a fraction in [0, 1]", utils.ErrInvalidRule)
		}
	case models.RuleLatencyP95, models.RuleTokenSpike:
		if rule.Threshold <= 0 {
			return utils.NewAppError(op, "threshold must be positive", utils.ErrInvalidRule)
		}
	default:
		return utils.NewAppError(op, "rule kind "+string(rule.Kind), utils.ErrInvalidRule)
	}
	return nil
}

// CreateRule validates and persists a new rule, assigning its identifier
// and timestamps.
func (m *Manager) CreateRule(ctx context.Context, rule models.AlertRule) (models.AlertRule, error) {
	if err := ValidateRule(rule); err != nil {
		return models.AlertRule{}, err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := m.now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := m.rules.InsertRule(ctx, rule); err != nil {
		return models.AlertRule{}, err
	}
	metrics.SetActiveRules(m.countActive(ctx))
	return rule, nil
}

// UpdateRule validates and persists changes to an existing rule.
func (m *Manager) UpdateRule(ctx context.Context, rule models.AlertRule) (models.AlertRule, error) {
	if err := ValidateRule(rule); err != nil {
		return models.AlertRule{}, err
	}
	existing, err := m.rules.GetRule(ctx, rule.ID)
	if err != nil {
		return models.AlertRule{}, err
	}
	rule.CreatedAt = existing.CreatedAt
	rule.LastTriggeredAt = existing.LastTriggeredAt
	rule.UpdatedAt = m.now().UTC()
	if err := m.rules.UpdateRule(ctx, rule); err != nil {
		return models.AlertRule{}, err
	}
	metrics.SetActiveRules(m.countActive(ctx))
	return rule, nil
}

// DeleteRule removes a rule. Its historical events are retained.
func (m *Manager) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := m.rules.DeleteRule(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.ruleLocks, id)
	m.mu.Unlock()
	metrics.SetActiveRules(m.countActive(ctx))
	return nil
}

// GetRule fetches one rule by ID.
func (m *Manager) GetRule(ctx context.Context, id uuid.UUID) (models.AlertRule, error) {
	return m.rules.GetRule(ctx, id)
}

// ListRules returns all rules, or only active ones when activeOnly is set.
func (m *Manager) ListRules(ctx context.Context, activeOnly bool) ([]models.AlertRule, error) {
	return m.rules.ListRules(ctx, activeOnly)
}

// ListEvents returns alert events matching the filter.
func (m *Manager) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.AlertEvent, error) {
	return m.events.ListEvents(ctx, filter)
}

// Acknowledge transitions an event to acknowledged. Acknowledging an
// already-acknowledged event is a no-op; an unknown ID fails with NotFound.
func (m *Manager) Acknowledge(ctx context.Context, eventID uuid.UUID) error {
	event, err := m.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Acknowledged {
		return nil
	}
	return m.events.AcknowledgeEvent(ctx, eventID, m.now().UTC())
}

// RecordTrigger turns an evaluator outcome into a durable alert event.
// While an unacknowledged event exists for the rule, the repeat trigger
// updates that event's metric value and message instead of creating a new
// one; a notification intent is emitted only for newly created events.
// The check-and-create sequence is atomic per rule ID.
func (m *Manager) RecordTrigger(ctx context.Context, rule models.AlertRule, outcome engine.Outcome) (models.AlertEvent, bool, error) {
	lock := m.lockRule(rule.ID)
	lock.Lock()
	defer lock.Unlock()

	now := m.now().UTC()

	existing, err := m.events.LatestUnacknowledged(ctx, rule.ID)
	switch {
	case err == nil:
		if err := m.events.UpdateEventValue(ctx, existing.ID, outcome.Value, outcome.Message, now); err != nil {
			return models.AlertEvent{}, false, err
		}
		existing.MetricValue = outcome.Value
		existing.Message = outcome.Message
		existing.UpdatedAt = now
		return existing, false, nil
	case !errors.Is(err, utils.ErrNotFound):
		return models.AlertEvent{}, false, err
	}

	event := models.AlertEvent{
		ID:          uuid.New(),
		RuleID:      rule.ID,
		MetricValue: outcome.Value,
		Message:     outcome.Message,
		TriggeredAt: now,
		UpdatedAt:   now,
	}
	if err := m.events.AppendEvent(ctx, event); err != nil {
		return models.AlertEvent{}, false, err
	}
	if err := m.rules.MarkRuleTriggered(ctx, rule.ID, now); err != nil {
		m.logger.Warn("failed to mark rule triggered", slog.String("rule", rule.Name), slog.Any("error", err))
	}
	metrics.AlertFired(string(rule.Kind))

	if m.dispatcher != nil {
		m.dispatcher.Dispatch(ctx, notify.Intent{
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			Kind:        rule.Kind,
			EventID:     event.ID,
			Target:      rule.Target,
			Message:     outcome.Message,
			Value:       outcome.Value,
			TriggeredAt: now,
		})
	}

	return event, true, nil
}

// EnsureDefaultRules creates the stock rule set when missing, matching by
// name. Returns the rules it created.
func (m *Manager) EnsureDefaultRules(ctx context.Context) ([]models.AlertRule, error) {
	defaults := []models.AlertRule{
		{
			Name:        "High Error Rate",
			Description: "Error rate exceeds 5% of calls in the window",
			Kind:        models.RuleErrorRate,
			Threshold:   0.05,
			Active:      true,
		},
		{
			Name:        "High Latency",
			Description: "P95 latency exceeds 5 seconds",
			Kind:        models.RuleLatencyP95,
			Threshold:   5000,
			Active:      true,
		},
		{
			Name:        "Token Usage Spike",
			Description: "Token usage is 3x the previous period",
			Kind:        models.RuleTokenSpike,
			Threshold:   3.0,
			Active:      true,
		},
	}

	existing, err := m.rules.ListRules(ctx, false)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		names[r.Name] = struct{}{}
	}

	var created []models.AlertRule
	for _, rule := range defaults {
		if _, ok := names[rule.Name]; ok {
			continue
		}
		made, err := m.CreateRule(ctx, rule)
		if err != nil {
			return created, err
		}
		m.logger.Info("created default alert rule", slog.String("name", made.Name))
		created = append(created, made)
	}
	return created, nil
}

func (m *Manager) countActive(ctx context.Context) int {
	rules, err := m.rules.ListRules(ctx, true)
	if err != nil {
		return 0
	}
	return len(rules)
}
