package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrManualCleanupRequired is returned by best-effort compensations that
	// cannot reliably undo their platform write. The ledger logs it with the
	// correlation handle and moves on; it is never surfaced to the caller.
	ErrManualCleanupRequired = errors.New("sync: manual cleanup required")

	// ErrRowNotFound is returned when a spreadsheet row holds no client data
	ErrRowNotFound = errors.New("sync: spreadsheet row not found")
)

// ValidationError describes a single invalid input field. A workflow fails
// fast, with an empty ledger and no adapter calls, when any are present.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("sync: invalid %s: %s", e.Field, e.Reason)
}

// AggregateValidationError bundles every validation failure for one input
type AggregateValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface
func (e *AggregateValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", ve.Field, ve.Reason)
	}
	return "sync: validation failed: " + strings.Join(parts, "; ")
}

// AdapterWriteError wraps a failed adapter call with enough context for the
// caller to act on: which platform, which action, and the original error.
type AdapterWriteError struct {
	Platform Platform
	Action   Action
	Err      error
}

// Error implements the error interface
func (e *AdapterWriteError) Error() string {
	return fmt.Sprintf("sync: %s %s failed: %v", e.Platform, e.Action, e.Err)
}

// Unwrap returns the underlying adapter error
func (e *AdapterWriteError) Unwrap() error {
	return e.Err
}

// NewAdapterWriteError wraps err as a write failure on the given platform
func NewAdapterWriteError(platform Platform, action Action, err error) *AdapterWriteError {
	return &AdapterWriteError{Platform: platform, Action: action, Err: err}
}

// MissingCorrelationDataError reports an adapter that claimed success but
// omitted a handle the saga depends on. Treated as a write failure requiring
// rollback, not as success.
type MissingCorrelationDataError struct {
	Platform Platform
	Field    string
}

// Error implements the error interface
func (e *MissingCorrelationDataError) Error() string {
	return fmt.Sprintf("sync: %s reported success without %s", e.Platform, e.Field)
}

// RollbackFailure records a compensation that itself failed. It is logged at
// error level with manual-cleanup metadata and never returned to the caller,
// since the original write failure is always what is reported.
type RollbackFailure struct {
	Platform Platform
	Handle   string
	Err      error
}

// Error implements the error interface
func (f *RollbackFailure) Error() string {
	return fmt.Sprintf("sync: rollback on %s failed (handle %s): %v", f.Platform, f.Handle, f.Err)
}

// Unwrap returns the underlying compensation error
func (f *RollbackFailure) Unwrap() error {
	return f.Err
}

// ConflictAmbiguousError reports an inbound edit where both sides changed
// within the drift window. No write is performed; a human reviews it.
type ConflictAmbiguousError struct {
	RowNumber int
	Delta     time.Duration
}

// Error implements the error interface
func (e *ConflictAmbiguousError) Error() string {
	return fmt.Sprintf("sync: ambiguous conflict on row %d (timestamps %s apart)", e.RowNumber, e.Delta)
}
