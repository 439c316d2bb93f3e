package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// InsertRule persists a new alert rule.
func (s *Store) InsertRule(ctx context.Context, rule models.AlertRule) error {
	const op = "store.InsertRule"

	_, err := s.db.ExecContext(ctx, `INSERT INTO alert_rules
		(id, name, description, kind, threshold, active, target, created_at, updated_at, last_triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.Name, rule.Description, string(rule.Kind), rule.Threshold,
		boolToInt(rule.Active), rule.Target,
		formatTime(rule.CreatedAt),
		formatTime(rule.UpdatedAt),
		formatNullableTime(rule.LastTriggeredAt),
	)
	if err != nil {
		return storeErr(op, "insert failed", err)
	}
	return nil
}

// UpdateRule overwrites an existing rule's mutable fields.
func (s *Store) UpdateRule(ctx context.Context, rule models.AlertRule) error {
	const op = "store.UpdateRule"

	res, err := s.db.ExecContext(ctx, `UPDATE alert_rules
		SET name = ?, description = ?, kind = ?, threshold = ?, active = ?, target = ?, updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.Description, string(rule.Kind), rule.Threshold,
		boolToInt(rule.Active), rule.Target,
		formatTime(rule.UpdatedAt),
		rule.ID.String(),
	)
	if err != nil {
		return storeErr(op, "update failed", err)
	}
	return requireRowAffected(res, op)
}

// DeleteRule removes a rule by ID.
func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
	const op = "store.DeleteRule"

	res, err := s.db.ExecContext(ctx, "DELETE FROM alert_rules WHERE id = ?", id.String())
	if err != nil {
		return storeErr(op, "delete failed", err)
	}
	return requireRowAffected(res, op)
}

// GetRule fetches one rule by ID.
func (s *Store) GetRule(ctx context.Context, id uuid.UUID) (models.AlertRule, error) {
	const op = "store.GetRule"

	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, kind, threshold, active, target,
		created_at, updated_at, last_triggered_at
		FROM alert_rules WHERE id = ?`, id.String())

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AlertRule{}, utils.NewAppError(op, "rule "+id.String(), utils.ErrNotFound)
	}
	if err != nil {
		return models.AlertRule{}, utils.NewAppError(op, "scan failed", err)
	}
	return rule, nil
}

// ListRules returns rules ordered by creation time, optionally restricted
// to active rules.
func (s *Store) ListRules(ctx context.Context, activeOnly bool) ([]models.AlertRule, error) {
	const op = "store.ListRules"

	query := `SELECT id, name, description, kind, threshold, active, target,
		created_at, updated_at, last_triggered_at FROM alert_rules`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr(op, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []models.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, utils.NewAppError(op, "scan failed", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, "row iteration failed", err)
	}
	return rules, nil
}

// MarkRuleTriggered stamps the rule's last trigger time.
func (s *Store) MarkRuleTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "store.MarkRuleTriggered"

	res, err := s.db.ExecContext(ctx, "UPDATE alert_rules SET last_triggered_at = ? WHERE id = ?",
		formatTime(at), id.String())
	if err != nil {
		return storeErr(op, "update failed", err)
	}
	return requireRowAffected(res, op)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (models.AlertRule, error) {
	var rule models.AlertRule
	var id, kind, createdAt, updatedAt string
	var description, target, lastTriggered sql.NullString
	var active int

	if err := row.Scan(&id, &rule.Name, &description, &kind, &rule.Threshold,
		&active, &target, &createdAt, &updatedAt, &lastTriggered); err != nil {
		return models.AlertRule{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.AlertRule{}, err
	}
	rule.ID = parsed
	rule.Kind = models.RuleKind(kind)
	rule.Active = active != 0
	if description.Valid {
		rule.Description = description.String
	}
	if target.Valid {
		rule.Target = target.String
	}
	if rule.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return models.AlertRule{}, err
	}
	if rule.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return models.AlertRule{}, err
	}
	if lastTriggered.Valid && lastTriggered.String != "" {
		if rule.LastTriggeredAt, err = time.Parse(time.RFC3339Nano, lastTriggered.String); err != nil {
			return models.AlertRule{}, err
		}
	}
	return rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}

func requireRowAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, "rows affected", err)
	}
	if affected == 0 {
		return utils.NewAppError(op, "no matching row", utils.ErrNotFound)
	}
	return nil
}
