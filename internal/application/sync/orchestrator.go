package sync

import (
	"context"
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/sync"
	"go.uber.org/zap"
)

// Timeouts bounds each adapter call. A timeout is treated identically to any
// other adapter failure and triggers rollback of prior steps.
type Timeouts struct {
	Primary     time.Duration
	Spreadsheet time.Duration
	Tracker     time.Duration
}

// DefaultTimeouts returns the per-platform call budgets
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Primary:     30 * time.Second,
		Spreadsheet: 60 * time.Second,
		Tracker:     60 * time.Second,
	}
}

// Orchestrator is the saga controller for client replication. Each workflow
// runs as a single sequential chain of adapter calls; there is no internal
// parallelism within one run, so reverse-order rollback stays unambiguous.
//
// Concurrent invocations for different clients are independent. Invocations
// for the same client must be serialized by the caller (the HTTP layer holds
// a per-client lock); the orchestrator itself does not coordinate them.
type Orchestrator struct {
	primary  sync.PrimaryStore
	sheet    sync.SpreadsheetLedger
	tracker  sync.ProjectTracker
	audit    sync.AuditSink
	logger   *zap.Logger
	timeouts Timeouts
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	primary sync.PrimaryStore,
	sheet sync.SpreadsheetLedger,
	tracker sync.ProjectTracker,
	audit sync.AuditSink,
	logger *zap.Logger,
	timeouts Timeouts,
) *Orchestrator {
	return &Orchestrator{
		primary:  primary,
		sheet:    sheet,
		tracker:  tracker,
		audit:    audit,
		logger:   logger.Named("orchestrator"),
		timeouts: timeouts,
	}
}

// CreateClient fans a new client record out to all three platforms. On any
// step failure every prior step is compensated in reverse order and the
// original failure is reported; compensation failures are logged, never
// thrown.
func (o *Orchestrator) CreateClient(ctx context.Context, input CreateClientInput) *sync.SyncResult {
	if verrs := input.Validate(); len(verrs) > 0 {
		err := &sync.AggregateValidationError{Errors: verrs}
		o.recordCompletion(ctx, "client.create", nil, err)
		return &sync.SyncResult{Success: false, CompletedOperations: []sync.SyncOperation{}, Err: err}
	}

	draft, err := input.toClient()
	if err != nil {
		o.recordCompletion(ctx, "client.create", nil, err)
		return &sync.SyncResult{Success: false, CompletedOperations: []sync.SyncOperation{}, Err: err}
	}

	ledger := sync.NewOperationLedger()

	// Step 1: primary store create. Nothing to roll back if it fails.
	saved, err := o.createPrimary(ctx, draft)
	if err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformPrimary, sync.ActionCreate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformPrimary, sync.ActionCreate, draft), werr)
	}
	ledger.Append(sync.SyncOperation{
		Platform: sync.PlatformPrimary,
		Action:   sync.ActionCreate,
		Data:     saved.Clone(),
		Rollback: sync.PrimarySoftDelete{Store: o.primary, ClientID: saved.ID},
	})

	// Step 2: spreadsheet append. Success without a row number is a hard
	// failure, not a success.
	row, err := o.appendSheet(ctx, saved)
	if err == nil && row <= 0 {
		err = &sync.MissingCorrelationDataError{Platform: sync.PlatformSpreadsheet, Field: "row number"}
	}
	if err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformSpreadsheet, sync.ActionCreate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformSpreadsheet, sync.ActionCreate, saved.Clone()), werr)
	}
	ledger.Append(sync.SyncOperation{
		Platform: sync.PlatformSpreadsheet,
		Action:   sync.ActionCreate,
		Data:     map[string]any{"client_id": saved.ID, "row": row},
		Rollback: sync.SpreadsheetDeleteRow{Ledger: o.sheet, Row: row},
	})

	// Step 3: persist the assigned row onto the entity. Its own failure
	// rolls back steps 1-2.
	beforeRow := saved.Clone()
	err = saved.AssignSpreadsheetRow(row)
	if err == nil {
		err = o.updatePrimary(ctx, saved)
	}
	if err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformPrimary, sync.ActionUpdate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformPrimary, sync.ActionUpdate, saved.Clone()), werr)
	}
	ledger.Append(sync.SyncOperation{
		Platform: sync.PlatformPrimary,
		Action:   sync.ActionUpdate,
		Data:     map[string]any{"client_id": saved.ID, "row": row},
		Rollback: sync.PrimaryRestore{Store: o.primary, Previous: beforeRow},
	})

	// Step 4: tracker item. Rollback is best effort only; the tracker has
	// no reliable permanent delete, so compensation surfaces the page ID
	// for manual cleanup instead.
	item, err := o.createTrackerItem(ctx, saved)
	if err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformTracker, sync.ActionCreate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformTracker, sync.ActionCreate, saved.Clone()), werr)
	}
	ledger.Append(sync.SyncOperation{
		Platform: sync.PlatformTracker,
		Action:   sync.ActionCreate,
		Data:     *item,
		Rollback: sync.TrackerManualCleanup{PageID: item.PageID},
	})

	// Step 5: backlink the tracker item into the spreadsheet row and persist
	// the tracker handles. Failures here roll back steps 1-4. Neither write
	// is ledgered separately: undoing them is subsumed by the row delete and
	// the primary soft delete.
	if err := saved.AssignTrackerItem(item.PageID, item.URL); err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformTracker, sync.ActionUpdate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformTracker, sync.ActionUpdate, saved.Clone()), werr)
	}
	if err := o.setSheetTrackerLink(ctx, row, item.URL); err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformSpreadsheet, sync.ActionUpdate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformSpreadsheet, sync.ActionUpdate, saved.Clone()), werr)
	}
	saved.MarkSynced(time.Now())
	if err := o.updatePrimary(ctx, saved); err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformPrimary, sync.ActionUpdate, err)
		return o.fail(ctx, "client.create", ledger, failedOp(sync.PlatformPrimary, sync.ActionUpdate, saved.Clone()), werr)
	}

	result := &sync.SyncResult{Success: true, Client: saved, CompletedOperations: ledger.Operations()}
	o.recordCompletion(ctx, "client.create", result, nil)
	return result
}

// UpdateClient replicates a field-level change to every platform holding the
// client. When nothing changed it short-circuits without a single adapter
// call, which both avoids work and prevents update storms from round-tripping
// no-op writes through the platforms.
func (o *Orchestrator) UpdateClient(ctx context.Context, before, after *client.Client) *sync.SyncResult {
	changes := sync.DetectChanges(before, after)
	if len(changes) == 0 {
		return &sync.SyncResult{Success: true, Client: after, CompletedOperations: []sync.SyncOperation{}}
	}

	ledger := sync.NewOperationLedger()
	snapshot := before.Clone()

	// Step 1: primary store update.
	after.MarkSynced(time.Now())
	if err := o.updatePrimary(ctx, after); err != nil {
		werr := sync.NewAdapterWriteError(sync.PlatformPrimary, sync.ActionUpdate, err)
		return o.fail(ctx, "client.update", ledger, failedOp(sync.PlatformPrimary, sync.ActionUpdate, after.Clone()), werr)
	}
	ledger.Append(sync.SyncOperation{
		Platform: sync.PlatformPrimary,
		Action:   sync.ActionUpdate,
		Data:     changes,
		Rollback: sync.PrimaryRestore{Store: o.primary, Previous: snapshot},
	})

	// Step 2: spreadsheet row, when the client has one.
	if after.HasSpreadsheetRow() {
		if err := o.updateSheet(ctx, after.SpreadsheetRow, after); err != nil {
			werr := sync.NewAdapterWriteError(sync.PlatformSpreadsheet, sync.ActionUpdate, err)
			return o.fail(ctx, "client.update", ledger, failedOp(sync.PlatformSpreadsheet, sync.ActionUpdate, after.Clone()), werr)
		}
		ledger.Append(sync.SyncOperation{
			Platform: sync.PlatformSpreadsheet,
			Action:   sync.ActionUpdate,
			Data:     map[string]any{"client_id": after.ID, "row": after.SpreadsheetRow},
			Rollback: sync.SpreadsheetRestoreRow{Ledger: o.sheet, Row: after.SpreadsheetRow, Previous: snapshot},
		})
	}

	// Step 3: a name change fans out to every linked tracker item. The
	// renames form one bundle compensated atomically: if one rename in the
	// middle fails, the ones already applied are restored together with the
	// rest of the ledger.
	if sync.NameChanged(changes) {
		items, err := o.listTrackerItems(ctx, after)
		if err != nil {
			werr := sync.NewAdapterWriteError(sync.PlatformTracker, sync.ActionUpdate, err)
			return o.fail(ctx, "client.update", ledger, failedOp(sync.PlatformTracker, sync.ActionUpdate, after.Clone()), werr)
		}

		renamed := make([]string, 0, len(items))
		for _, item := range items {
			if err := o.renameTrackerItem(ctx, item.PageID, after.Name); err != nil {
				// Restore the partial bundle before compensating the ledger.
				partial := sync.TrackerRestoreTitles{Tracker: o.tracker, PageIDs: renamed, Title: before.Name}
				werr := sync.NewAdapterWriteError(sync.PlatformTracker, sync.ActionUpdate, err)
				return o.failWithExtra(ctx, "client.update", ledger, partial,
					failedOp(sync.PlatformTracker, sync.ActionUpdate, item), werr)
			}
			renamed = append(renamed, item.PageID)
		}
		if len(renamed) > 0 {
			ledger.Append(sync.SyncOperation{
				Platform: sync.PlatformTracker,
				Action:   sync.ActionUpdate,
				Data:     map[string]any{"client_id": after.ID, "pages": renamed, "name": after.Name},
				Rollback: sync.TrackerRestoreTitles{Tracker: o.tracker, PageIDs: renamed, Title: before.Name},
			})
		}
	}

	result := &sync.SyncResult{Success: true, Client: after, CompletedOperations: ledger.Operations()}
	o.recordCompletion(ctx, "client.update", result, nil)
	return result
}

// fail compensates the ledger in reverse order and builds the failure result.
// Compensation runs on a detached context: an aborted saga must still attempt
// cleanup of already-completed steps before cancellation propagates.
func (o *Orchestrator) fail(ctx context.Context, action string, ledger *sync.OperationLedger, failed *sync.SyncOperation, err error) *sync.SyncResult {
	return o.failWithExtra(ctx, action, ledger, nil, failed, err)
}

func (o *Orchestrator) failWithExtra(ctx context.Context, action string, ledger *sync.OperationLedger, extra sync.Compensation, failed *sync.SyncOperation, err error) *sync.SyncResult {
	cleanupCtx := context.WithoutCancel(ctx)

	var failures []sync.RollbackFailure
	if extra != nil {
		if cerr := extra.Execute(cleanupCtx); cerr != nil {
			failures = append(failures, sync.RollbackFailure{
				Platform: extra.Platform(),
				Handle:   extra.Handle(),
				Err:      cerr,
			})
		}
	}
	failures = append(failures, ledger.Compensate(cleanupCtx)...)

	for _, f := range failures {
		o.logger.Error("rollback failed, manual cleanup required",
			zap.String("platform", f.Platform.String()),
			zap.String("handle", f.Handle),
			zap.Error(f.Err),
		)
		o.audit.Record(cleanupCtx, sync.AuditEntry{
			Actor:  "sync-orchestrator",
			Action: action + ".rollback",
			Level:  "error",
			Metadata: map[string]any{
				"platform":       f.Platform.String(),
				"handle":         f.Handle,
				"error":          f.Err.Error(),
				"manual_cleanup": true,
			},
			Timestamp: time.Now(),
		})
	}

	result := &sync.SyncResult{
		Success:             false,
		CompletedOperations: ledger.Operations(),
		FailedOperation:     failed,
		RollbackFailures:    failures,
		Err:                 err,
	}
	o.recordCompletion(ctx, action, result, err)
	return result
}

// recordCompletion writes the once-per-saga audit entry
func (o *Orchestrator) recordCompletion(ctx context.Context, action string, result *sync.SyncResult, err error) {
	entry := sync.AuditEntry{
		Actor:     "sync-orchestrator",
		Action:    action,
		Level:     "info",
		Metadata:  map[string]any{},
		Timestamp: time.Now(),
	}
	if result != nil {
		entry.Metadata["completed_operations"] = len(result.CompletedOperations)
		entry.Metadata["rolled_back"] = result.RolledBackCount()
		entry.Metadata["manual_attention"] = len(result.RollbackFailures)
	}
	if err != nil {
		entry.Level = "error"
		entry.Metadata["error"] = err.Error()
	}
	o.audit.Record(context.WithoutCancel(ctx), entry)
}

func failedOp(platform sync.Platform, action sync.Action, data any) *sync.SyncOperation {
	return &sync.SyncOperation{Platform: platform, Action: action, Data: data, Completed: time.Now()}
}

// Adapter call wrappers. Every call carries its platform's timeout; a timeout
// is indistinguishable from any other adapter failure.

func (o *Orchestrator) createPrimary(ctx context.Context, c *client.Client) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Primary)
	defer cancel()
	return o.primary.Create(ctx, c)
}

func (o *Orchestrator) updatePrimary(ctx context.Context, c *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Primary)
	defer cancel()
	return o.primary.Update(ctx, c)
}

func (o *Orchestrator) appendSheet(ctx context.Context, c *client.Client) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Spreadsheet)
	defer cancel()
	return o.sheet.Append(ctx, c)
}

func (o *Orchestrator) updateSheet(ctx context.Context, row int, c *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Spreadsheet)
	defer cancel()
	return o.sheet.Update(ctx, row, c)
}

func (o *Orchestrator) setSheetTrackerLink(ctx context.Context, row int, url string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Spreadsheet)
	defer cancel()
	return o.sheet.SetTrackerLink(ctx, row, url)
}

func (o *Orchestrator) createTrackerItem(ctx context.Context, c *client.Client) (*sync.TrackerItem, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Tracker)
	defer cancel()
	return o.tracker.CreateLinkedItem(ctx, c)
}

func (o *Orchestrator) listTrackerItems(ctx context.Context, c *client.Client) ([]sync.TrackerItem, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Tracker)
	defer cancel()
	return o.tracker.ListLinkedItems(ctx, c.ID)
}

func (o *Orchestrator) renameTrackerItem(ctx context.Context, pageID, name string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Tracker)
	defer cancel()
	return o.tracker.Rename(ctx, pageID, name)
}
