package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates call outcomes.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorType categorises failed provider calls.
type ErrorType string

const (
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeInvalidPrompt  ErrorType = "invalid_prompt"
	ErrorTypeProvider       ErrorType = "provider_error"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// CallRecord captures the metadata of one completed LLM provider call.
// Records are written once by the recorder and read-only thereafter.
type CallRecord struct {
	ID               uuid.UUID
	UserID           string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	LatencyMs        int64
	CostEstimate     decimal.Decimal
	Status           Status
	ErrorType        ErrorType
	ErrorMessage     string
	Timestamp        time.Time
}

// RecordFilter narrows a call-record query. Zero Start/End mean unbounded;
// when both are set the range is half-open [Start, End).
type RecordFilter struct {
	Start  time.Time
	End    time.Time
	Model  string
	Status Status
}

// Matches reports whether the record satisfies every set filter field.
func (f RecordFilter) Matches(r CallRecord) bool {
	if !f.Start.IsZero() && r.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !r.Timestamp.Before(f.End) {
		return false
	}
	if f.Model != "" && r.Model != f.Model {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}
