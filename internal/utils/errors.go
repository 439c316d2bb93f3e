package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the engine's failure taxonomy. Callers match
// them with errors.Is after any amount of wrapping.
var (
	// ErrInvalidWindow is returned when a window's start is after its end.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrInvalidRule is returned when a rule violates its invariants on write.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrUnsupportedRuleKind is returned for a metric kind the evaluator
	// does not recognise.
	ErrUnsupportedRuleKind = errors.New("unsupported rule kind")
	// ErrUnsupportedGrouping is returned for a grouping the aggregator
	// does not recognise.
	ErrUnsupportedGrouping = errors.New("unsupported grouping")
	// ErrNotFound is returned when a rule or event ID does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDeadlineExceeded is returned when aggregation runs past the
	// caller-supplied deadline.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
	// ErrStoreUnavailable wraps failures propagated from the record store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
