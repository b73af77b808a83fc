package sync

import (
	"context"
	"time"

	"github.com/clientsync/backend/internal/domain/client"
)

// SyncOperation records one completed platform write within a saga run,
// together with the compensation that undoes it. Operations are immutable
// once appended to the ledger.
type SyncOperation struct {
	Platform  Platform
	Action    Action
	Data      any
	Rollback  Compensation
	Completed time.Time
}

// OperationLedger is the ordered, append-only record of completed steps for
// one saga execution. It is owned exclusively by that run, is not safe for
// concurrent use, and is discarded once the run completes; only the final
// SyncResult crosses the component boundary.
type OperationLedger struct {
	operations []SyncOperation
}

// NewOperationLedger creates an empty ledger for one saga run
func NewOperationLedger() *OperationLedger {
	return &OperationLedger{}
}

// Append records a completed operation
func (l *OperationLedger) Append(op SyncOperation) {
	if op.Completed.IsZero() {
		op.Completed = time.Now()
	}
	l.operations = append(l.operations, op)
}

// Len returns the number of recorded operations
func (l *OperationLedger) Len() int {
	return len(l.operations)
}

// Operations returns a copy of the recorded operations in completion order
func (l *OperationLedger) Operations() []SyncOperation {
	ops := make([]SyncOperation, len(l.operations))
	copy(ops, l.operations)
	return ops
}

// Compensate invokes every recorded rollback exactly once, in strict reverse
// order. A failing rollback does not prevent the remaining ones from being
// attempted; each failure is collected and returned for logging. Compensate
// never returns an error itself: by the time it runs the saga has already
// failed, and the original failure is what the caller reports.
func (l *OperationLedger) Compensate(ctx context.Context) []RollbackFailure {
	var failures []RollbackFailure
	for i := len(l.operations) - 1; i >= 0; i-- {
		op := l.operations[i]
		if op.Rollback == nil {
			continue
		}
		if err := op.Rollback.Execute(ctx); err != nil {
			failures = append(failures, RollbackFailure{
				Platform: op.Rollback.Platform(),
				Handle:   op.Rollback.Handle(),
				Err:      err,
			})
		}
	}
	return failures
}

// SyncResult summarizes one workflow invocation: what completed, what failed,
// and the terminal error. It is immutable once produced.
type SyncResult struct {
	Success bool
	// Client is the final state of the record after a successful run.
	// Nil on failure.
	Client              *client.Client
	CompletedOperations []SyncOperation
	FailedOperation     *SyncOperation
	RollbackFailures    []RollbackFailure
	Err                 error
}

// RolledBackCount returns how many completed operations were successfully
// compensated after a failure.
func (r *SyncResult) RolledBackCount() int {
	if r.Success {
		return 0
	}
	return len(r.CompletedOperations) - len(r.RollbackFailures)
}
