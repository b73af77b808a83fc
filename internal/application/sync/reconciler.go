package sync

import (
	"context"
	"errors"
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/clientsync/backend/internal/domain/sync"
	"go.uber.org/zap"
)

// Reconciler resolves externally-originated spreadsheet edits against the
// primary store. It performs at most one directional write per invocation
// and therefore needs no rollback ledger; its only failure mode is that
// single write failing, which is surfaced directly.
type Reconciler struct {
	primary  sync.PrimaryStore
	sheet    sync.SpreadsheetLedger
	audit    sync.AuditSink
	logger   *zap.Logger
	resolver sync.ResolverConfig
	timeouts Timeouts
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	primary sync.PrimaryStore,
	sheet sync.SpreadsheetLedger,
	audit sync.AuditSink,
	logger *zap.Logger,
	resolver sync.ResolverConfig,
	timeouts Timeouts,
) *Reconciler {
	return &Reconciler{
		primary:  primary,
		sheet:    sheet,
		audit:    audit,
		logger:   logger.Named("reconciler"),
		resolver: resolver,
		timeouts: timeouts,
	}
}

// ReconcileInbound handles a detected external edit to the given spreadsheet
// row. Rows with no corresponding client are imported as externally-created
// entities; otherwise last-writer-wins with drift tolerance decides which
// side's values are written, preserving the correlation handles the inbound
// side never carries.
func (r *Reconciler) ReconcileInbound(ctx context.Context, row int) (*ReconcileResult, error) {
	sheetClient, err := r.readRow(ctx, row)
	if err != nil {
		return nil, err
	}

	app, err := r.findMatch(ctx, row, sheetClient)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		return r.importRow(ctx, row, sheetClient)
	}

	switch r.resolver.Resolve(sheetClient, app) {
	case sync.ResolutionSheetWins:
		merged := sync.MergeSheetIntoApp(sheetClient, app)
		merged.MarkSynced(time.Now())
		if err := r.updatePrimary(ctx, merged); err != nil {
			return nil, sync.NewAdapterWriteError(sync.PlatformPrimary, sync.ActionUpdate, err)
		}
		r.recordOutcome(ctx, row, merged.ID.String(), OutcomeSheetApplied, "info")
		return &ReconcileResult{Outcome: OutcomeSheetApplied, RowNumber: row, ClientID: merged.ID.String()}, nil

	case sync.ResolutionAppWins:
		if err := r.updateSheet(ctx, row, app); err != nil {
			return nil, sync.NewAdapterWriteError(sync.PlatformSpreadsheet, sync.ActionUpdate, err)
		}
		r.recordOutcome(ctx, row, app.ID.String(), OutcomeAppApplied, "info")
		return &ReconcileResult{Outcome: OutcomeAppApplied, RowNumber: row, ClientID: app.ID.String()}, nil

	default:
		// Both sides edited within the drift window. Deliberately no write
		// and no field-level merge; a human reviews the conflict.
		delta := sheetClient.LastSyncedAt.Sub(app.LastSyncedAt)
		if delta < 0 {
			delta = -delta
		}
		r.logger.Warn("ambiguous simultaneous edit, manual review required",
			zap.Int("row", row),
			zap.String("client_id", app.ID.String()),
			zap.Duration("delta", delta),
		)
		r.recordOutcome(ctx, row, app.ID.String(), OutcomeAmbiguous, "warn")
		return &ReconcileResult{Outcome: OutcomeAmbiguous, RowNumber: row, ClientID: app.ID.String()},
			&sync.ConflictAmbiguousError{RowNumber: row, Delta: delta}
	}
}

// findMatch locates the app-side client for a row, matching first by the
// row handle and falling back to an exact email match.
func (r *Reconciler) findMatch(ctx context.Context, row int, sheetClient *client.Client) (*client.Client, error) {
	app, err := r.findByRow(ctx, row)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if sheetClient.Email == "" {
		return nil, shared.ErrNotFound
	}
	return r.findByEmail(ctx, sheetClient.Email)
}

// importRow imports an externally-created row as a new client. This is a
// single-platform write with nothing to roll back; failure is surfaced as-is.
func (r *Reconciler) importRow(ctx context.Context, row int, sheetClient *client.Client) (*ReconcileResult, error) {
	imported := sheetClient.Clone()
	imported.BaseAggregateRoot = shared.NewBaseAggregateRoot()
	if err := imported.AssignSpreadsheetRow(row); err != nil {
		return nil, err
	}
	imported.MarkSynced(time.Now())

	saved, err := r.createPrimary(ctx, imported)
	if err != nil {
		return nil, sync.NewAdapterWriteError(sync.PlatformPrimary, sync.ActionCreate, err)
	}

	r.recordOutcome(ctx, row, saved.ID.String(), OutcomeImported, "info")
	return &ReconcileResult{Outcome: OutcomeImported, RowNumber: row, ClientID: saved.ID.String()}, nil
}

func (r *Reconciler) recordOutcome(ctx context.Context, row int, clientID string, outcome ReconcileOutcome, level string) {
	r.audit.Record(context.WithoutCancel(ctx), sync.AuditEntry{
		Actor:  "sync-reconciler",
		Action: "client.reconcile",
		Level:  level,
		Metadata: map[string]any{
			"row":       row,
			"client_id": clientID,
			"outcome":   string(outcome),
		},
		Timestamp: time.Now(),
	})
}

func (r *Reconciler) readRow(ctx context.Context, row int) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Spreadsheet)
	defer cancel()
	return r.sheet.Read(ctx, row)
}

func (r *Reconciler) updateSheet(ctx context.Context, row int, c *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Spreadsheet)
	defer cancel()
	return r.sheet.Update(ctx, row, c)
}

func (r *Reconciler) createPrimary(ctx context.Context, c *client.Client) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Primary)
	defer cancel()
	return r.primary.Create(ctx, c)
}

func (r *Reconciler) updatePrimary(ctx context.Context, c *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Primary)
	defer cancel()
	return r.primary.Update(ctx, c)
}

func (r *Reconciler) findByRow(ctx context.Context, row int) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Primary)
	defer cancel()
	return r.primary.FindBySpreadsheetRow(ctx, row)
}

func (r *Reconciler) findByEmail(ctx context.Context, email string) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Primary)
	defer cancel()
	return r.primary.FindByEmail(ctx, email)
}
