package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// InsertCallRecord persists one call record.
func (s *Store) InsertCallRecord(ctx context.Context, r models.CallRecord) error {
	const op = "store.InsertCallRecord"

	_, err := s.db.ExecContext(ctx, `INSERT INTO call_records
		(id, user_id, model, prompt_tokens, completion_tokens, total_tokens,
		 latency_ms, cost_estimate, status, error_type, error_message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.UserID, r.Model, r.PromptTokens, r.CompletionTokens, r.TotalTokens,
		r.LatencyMs, r.CostEstimate.String(), string(r.Status), string(r.ErrorType), r.ErrorMessage,
		formatTime(r.Timestamp),
	)
	if err != nil {
		return storeErr(op, "insert failed", err)
	}
	return nil
}

// QueryCallRecords returns records matching the filter ordered by timestamp
// ascending. An empty result is not an error.
func (s *Store) QueryCallRecords(ctx context.Context, filter models.RecordFilter) ([]models.CallRecord, error) {
	const op = "store.QueryCallRecords"

	query := strings.Builder{}
	query.WriteString(`SELECT id, user_id, model, prompt_tokens, completion_tokens, total_tokens,
		latency_ms, cost_estimate, status, error_type, error_message, timestamp
		FROM call_records`)

	var clauses []string
	var args []any
	if !filter.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, formatTime(filter.Start))
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, formatTime(filter.End))
	}
	if filter.Model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY timestamp ASC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, storeErr(op, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.CallRecord
	for rows.Next() {
		record, err := scanCallRecord(rows)
		if err != nil {
			return nil, utils.NewAppError(op, "scan failed", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, "row iteration failed", err)
	}
	return records, nil
}

func scanCallRecord(rows *sql.Rows) (models.CallRecord, error) {
	var r models.CallRecord
	var id, cost, status, ts string
	var userID, errorType, errorMessage sql.NullString

	if err := rows.Scan(&id, &userID, &r.Model, &r.PromptTokens, &r.CompletionTokens,
		&r.TotalTokens, &r.LatencyMs, &cost, &status, &errorType, &errorMessage, &ts); err != nil {
		return models.CallRecord{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.CallRecord{}, err
	}
	r.ID = parsed

	r.CostEstimate, err = decimal.NewFromString(cost)
	if err != nil {
		return models.CallRecord{}, err
	}
	r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return models.CallRecord{}, err
	}

	r.Status = models.Status(status)
	if userID.Valid {
		r.UserID = userID.String
	}
	if errorType.Valid {
		r.ErrorType = models.ErrorType(errorType.String)
	}
	if errorMessage.Valid {
		r.ErrorMessage = errorMessage.String
	}
	return r, nil
}
