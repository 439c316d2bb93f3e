package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// AppendEvent persists a new alert event.
func (s *Store) AppendEvent(ctx context.Context, event models.AlertEvent) error {
	const op = "store.AppendEvent"

	_, err := s.db.ExecContext(ctx, `INSERT INTO alert_events
		(id, rule_id, metric_value, message, triggered_at, updated_at, acknowledged, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID.String(), event.RuleID.String(), event.MetricValue, event.Message,
		formatTime(event.TriggeredAt),
		formatTime(event.UpdatedAt),
		boolToInt(event.Acknowledged), formatNullableTime(event.AcknowledgedAt),
	)
	if err != nil {
		return storeErr(op, "insert failed", err)
	}
	return nil
}

// UpdateEventValue refreshes the metric value and message on an existing
// event, used when a repeat trigger is merged into an unacknowledged event.
func (s *Store) UpdateEventValue(ctx context.Context, id uuid.UUID, value float64, message string, at time.Time) error {
	const op = "store.UpdateEventValue"

	res, err := s.db.ExecContext(ctx, `UPDATE alert_events
		SET metric_value = ?, message = ?, updated_at = ? WHERE id = ?`,
		value, message, formatTime(at), id.String())
	if err != nil {
		return storeErr(op, "update failed", err)
	}
	return requireRowAffected(res, op)
}

// AcknowledgeEvent marks an event acknowledged.
func (s *Store) AcknowledgeEvent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "store.AcknowledgeEvent"

	res, err := s.db.ExecContext(ctx, `UPDATE alert_events
		SET acknowledged = 1, acknowledged_at = ? WHERE id = ?`,
		formatTime(at), id.String())
	if err != nil {
		return storeErr(op, "update failed", err)
	}
	return requireRowAffected(res, op)
}

// GetEvent fetches one event by ID.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (models.AlertEvent, error) {
	const op = "store.GetEvent"

	row := s.db.QueryRowContext(ctx, `SELECT id, rule_id, metric_value, message,
		triggered_at, updated_at, acknowledged, acknowledged_at
		FROM alert_events WHERE id = ?`, id.String())

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AlertEvent{}, utils.NewAppError(op, "event "+id.String(), utils.ErrNotFound)
	}
	if err != nil {
		return models.AlertEvent{}, utils.NewAppError(op, "scan failed", err)
	}
	return event, nil
}

// LatestUnacknowledged returns the most recent unacknowledged event for the
// rule, or NotFound when every event is acknowledged.
func (s *Store) LatestUnacknowledged(ctx context.Context, ruleID uuid.UUID) (models.AlertEvent, error) {
	const op = "store.LatestUnacknowledged"

	row := s.db.QueryRowContext(ctx, `SELECT id, rule_id, metric_value, message,
		triggered_at, updated_at, acknowledged, acknowledged_at
		FROM alert_events WHERE rule_id = ? AND acknowledged = 0
		ORDER BY triggered_at DESC LIMIT 1`, ruleID.String())

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AlertEvent{}, utils.NewAppError(op, "rule "+ruleID.String(), utils.ErrNotFound)
	}
	if err != nil {
		return models.AlertEvent{}, utils.NewAppError(op, "scan failed", err)
	}
	return event, nil
}

// ListEvents returns events matching the filter ordered by trigger time
// descending.
func (s *Store) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.AlertEvent, error) {
	const op = "store.ListEvents"

	query := strings.Builder{}
	query.WriteString(`SELECT id, rule_id, metric_value, message,
		triggered_at, updated_at, acknowledged, acknowledged_at FROM alert_events`)

	var clauses []string
	var args []any
	if filter.RuleID != uuid.Nil {
		clauses = append(clauses, "rule_id = ?")
		args = append(args, filter.RuleID.String())
	}
	if filter.Acknowledged != nil {
		clauses = append(clauses, "acknowledged = ?")
		args = append(args, boolToInt(*filter.Acknowledged))
	}
	if !filter.Start.IsZero() {
		clauses = append(clauses, "triggered_at >= ?")
		args = append(args, formatTime(filter.Start))
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, "triggered_at < ?")
		args = append(args, formatTime(filter.End))
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY triggered_at DESC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, storeErr(op, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.AlertEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, utils.NewAppError(op, "scan failed", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, "row iteration failed", err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (models.AlertEvent, error) {
	var event models.AlertEvent
	var id, ruleID, triggeredAt, updatedAt string
	var acknowledgedAt sql.NullString
	var acknowledged int

	if err := row.Scan(&id, &ruleID, &event.MetricValue, &event.Message,
		&triggeredAt, &updatedAt, &acknowledged, &acknowledgedAt); err != nil {
		return models.AlertEvent{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.AlertEvent{}, err
	}
	event.ID = parsed
	if event.RuleID, err = uuid.Parse(ruleID); err != nil {
		return models.AlertEvent{}, err
	}
	if event.TriggeredAt, err = time.Parse(time.RFC3339Nano, triggeredAt); err != nil {
		return models.AlertEvent{}, err
	}
	if event.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return models.AlertEvent{}, err
	}
	event.Acknowledged = acknowledged != 0
	if acknowledgedAt.Valid && acknowledgedAt.String != "" {
		if event.AcknowledgedAt, err = time.Parse(time.RFC3339Nano, acknowledgedAt.String); err != nil {
			return models.AlertEvent{}, err
		}
	}
	return event, nil
}
