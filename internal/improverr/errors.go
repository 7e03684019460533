// Package improverr provides structured error types for the improvement core.
package improverr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidSession        = errors.New("invalid session")
	ErrSourceTimeout         = errors.New("source query timed out")
	ErrAllSourcesUnavailable = errors.New("all knowledge sources unavailable")
	ErrSynthesisUnavailable  = errors.New("synthesis capability unavailable")
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrTimeout               = errors.New("operation timed out")
	ErrUnavailable           = errors.New("service unavailable")
)

// PersistenceError wraps a failed knowledge-store or ledger write.
// Persistence failures are retryable; the unit of work is dropped (and
// accounted for) only after retries are exhausted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err as a persistence failure for op.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// SourceError reports a failure from one external knowledge source.
// It is non-fatal for the synthesis pass; the failing source is simply
// excluded from that pass.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
