// Package record provides the synchronous write-through seam between the
// LLM client and the record store: every completed call is persisted before
// control returns to the caller, so aggregation never observes a call
// without its record.
package record

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/pricing"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// RecordWriter persists call records.
type RecordWriter interface {
	InsertCallRecord(ctx context.Context, record models.CallRecord) error
}

// CallResult is what the LLM client hands the recorder after a call
// completes, success or error.
type CallResult struct {
	UserID           string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	LatencyMs        int64
	Status           models.Status
	ErrorType        models.ErrorType
	ErrorMessage     string
	Timestamp        time.Time
}

// Recorder validates call results, prices them, and writes them through to
// the store.
type Recorder struct {
	logger *slog.Logger
	writer RecordWriter
	prices *pricing.Table
	now    func() time.Time
}

// NewRecorder constructs a recorder over the given writer and price table.
func NewRecorder(logger *slog.Logger, writer RecordWriter, prices *pricing.Table) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if prices == nil {
		prices = pricing.NewTable(nil)
	}
	return &Recorder{logger: logger, writer: writer, prices: prices, now: time.Now}
}

// Record converts a call result into a persisted CallRecord. The write is
// synchronous; the returned record carries the assigned ID, derived token
// total, and cost estimate.
func (r *Recorder) Record(ctx context.Context, result CallResult) (models.CallRecord, error) {
	const op = "record.Record"

	if result.Model == "" {
		return models.CallRecord{}, utils.NewAppError(op, "model is required", nil)
	}
	if result.PromptTokens < 0 || result.CompletionTokens < 0 {
		return models.CallRecord{}, utils.NewAppError(op, "token counts must be non-negative", nil)
	}
	if result.LatencyMs < 0 {
		return models.CallRecord{}, utils.NewAppError(op, "latency must be non-negative", nil)
	}
	if result.Status != models.StatusSuccess && result.Status != models.StatusError {
		return models.CallRecord{}, utils.NewAppError(op, "status must be success or error", nil)
	}
	if result.Status == models.StatusSuccess && (result.ErrorType != "" || result.ErrorMessage != "") {
		return models.CallRecord{}, utils.NewAppError(op, "error fields set on successful call", nil)
	}
	if result.Status == models.StatusError && result.ErrorType == "" {
		result.ErrorType = models.ErrorTypeUnknown
	}

	ts := result.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	record := models.CallRecord{
		ID:               uuid.New(),
		UserID:           result.UserID,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.PromptTokens + result.CompletionTokens,
		LatencyMs:        result.LatencyMs,
		CostEstimate:     r.prices.Estimate(result.Model, result.PromptTokens, result.CompletionTokens),
		Status:           result.Status,
		ErrorType:        result.ErrorType,
		ErrorMessage:     result.ErrorMessage,
		Timestamp:        ts.UTC(),
	}

	if err := r.writer.InsertCallRecord(ctx, record); err != nil {
		return models.CallRecord{}, err
	}

	r.logger.Debug("call recorded",
		slog.String("model", record.Model),
		slog.Int64("tokens", record.TotalTokens),
		slog.Int64("latency_ms", record.LatencyMs),
		slog.String("status", string(record.Status)))

	return record, nil
}

// MapErrorType classifies a provider failure by HTTP status and message,
// mirroring how the LLM client reports errors.
func MapErrorType(statusCode int, message string) models.ErrorType {
	switch {
	case statusCode == 401:
		return models.ErrorTypeAuthentication
	case statusCode == 429:
		return models.ErrorTypeRateLimit
	case statusCode == 408 || strings.Contains(strings.ToLower(message), "timeout"):
		return models.ErrorTypeTimeout
	case statusCode == 400:
		return models.ErrorTypeInvalidPrompt
	case statusCode >= 500:
		return models.ErrorTypeProvider
	default:
		return models.ErrorTypeUnknown
	}
}
