package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classifying failures in an update cycle.
var (
	// ErrSourceUnavailable marks transient market-data source failures
	// (network, timeouts, terminal not connected). Retried.
	ErrSourceUnavailable = errors.New("market data source unavailable")

	// ErrUnknownSymbol marks a symbol the source does not serve. Fatal
	// for that symbol's cycle, never retried.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// ValidationError reports input rejected by a contract check: bars
// violating the OHLC invariant, malformed timeframes, bad ranges. The
// call is not retried; for bar writes the valid remainder of the batch
// still commits.
type ValidationError struct {
	Op       string
	Rejected []string
}

func (e *ValidationError) Error() string {
	if len(e.Rejected) == 0 {
		return fmt.Sprintf("%s: validation failed", e.Op)
	}
	if len(e.Rejected) == 1 {
		return fmt.Sprintf("%s: %s", e.Op, e.Rejected[0])
	}
	return fmt.Sprintf("%s: %d rejected: %s", e.Op, len(e.Rejected), strings.Join(e.Rejected, "; "))
}

// NewValidationError builds a ValidationError for op with reasons.
func NewValidationError(op string, reasons ...string) *ValidationError {
	return &ValidationError{Op: op, Rejected: reasons}
}

// SchemaError means the storage layout is unusable (a partition name
// collides with an incompatible table). It aborts the whole run.
type SchemaError struct {
	Partition string
	Reason    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error on partition %s: %s", e.Partition, e.Reason)
}

// StoreIOError wraps transient storage failures so the orchestrator can
// retry them with the same backoff as source errors.
type StoreIOError struct {
	Op  string
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if errors.Is(err, ErrSourceUnavailable) {
		return true
	}
	var ioErr *StoreIOError
	return errors.As(err, &ioErr)
}

// IsFatalForRun reports whether err must abort every symbol's cycle.
func IsFatalForRun(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
