package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reconcilerFixture struct {
	primary *MockPrimaryStore
	sheet   *MockSpreadsheetLedger
	audit   *captureAuditSink
	rec     *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		primary: new(MockPrimaryStore),
		sheet:   new(MockSpreadsheetLedger),
		audit:   &captureAuditSink{},
	}
	f.rec = NewReconciler(f.primary, f.sheet, f.audit, zap.NewNop(), sync.NewResolverConfig(), DefaultTimeouts())
	return f
}

func sheetRowClient(t *testing.T, name, email string, editedAt time.Time) *client.Client {
	t.Helper()
	c := savedClient(t, name, email)
	c.MarkSynced(editedAt)
	return c
}

func TestReconciler_ReconcileInbound_ImportsUnknownRow(t *testing.T) {
	f := newReconcilerFixture()
	sheetClient := sheetRowClient(t, "Northwind Ltd", "ops@northwind.test", time.Now())

	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(nil, shared.ErrNotFound)
	f.primary.On("FindByEmail", mock.Anything, "ops@northwind.test").Return(nil, shared.ErrNotFound)
	f.primary.On("Create", mock.Anything, mock.MatchedBy(func(c *client.Client) bool {
		return c.Name == "Northwind Ltd" && c.SpreadsheetRow == 12
	})).Return(sheetClient, nil)

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	require.NoError(t, err)
	assert.Equal(t, OutcomeImported, result.Outcome)
	assert.Equal(t, 12, result.RowNumber)

	// One primary write, nothing pushed back out.
	f.primary.AssertNumberOfCalls(t, "Create", 1)
	f.primary.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.sheet.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_ReconcileInbound_ImportedRowGetsFreshIdentity(t *testing.T) {
	f := newReconcilerFixture()
	sheetClient := sheetRowClient(t, "Northwind Ltd", "", time.Now())

	var created *client.Client
	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(nil, shared.ErrNotFound)
	f.primary.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*client.Client)
	}).Return(sheetClient, nil)

	_, err := f.rec.ReconcileInbound(context.Background(), 12)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEqual(t, sheetClient.ID, created.ID)
	assert.Equal(t, 12, created.SpreadsheetRow)
}

func TestReconciler_ReconcileInbound_MatchesByEmailWhenRowUnknown(t *testing.T) {
	f := newReconcilerFixture()
	now := time.Now()
	sheetClient := sheetRowClient(t, "Acme Corp", "hi@acme.test", now)
	app := sheetRowClient(t, "Acme Corp", "hi@acme.test", now.Add(-5*time.Minute))
	require.NoError(t, app.AssignSpreadsheetRow(12))

	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(nil, shared.ErrNotFound)
	f.primary.On("FindByEmail", mock.Anything, "hi@acme.test").Return(app, nil)
	f.primary.On("Update", mock.Anything, mock.Anything).Return(nil)

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSheetApplied, result.Outcome)
	f.primary.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconciler_ReconcileInbound_SheetWinsPreservesHandles(t *testing.T) {
	f := newReconcilerFixture()
	now := time.Now()
	sheetClient := sheetRowClient(t, "Acme Corporation", "hi@acme.test", now)
	app := sheetRowClient(t, "Acme Corp", "hi@acme.test", now.Add(-10*time.Minute))
	require.NoError(t, app.AssignSpreadsheetRow(12))
	require.NoError(t, app.AssignTrackerItem("page-9", "https://tracker.test/page-9"))

	var written *client.Client
	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(app, nil)
	f.primary.On("Update", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).(*client.Client)
	}).Return(nil)

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSheetApplied, result.Outcome)
	assert.Equal(t, app.ID.String(), result.ClientID)

	// Sheet values won, but the correlation handles survive the merge.
	require.NotNil(t, written)
	assert.Equal(t, "Acme Corporation", written.Name)
	assert.Equal(t, app.ID, written.ID)
	assert.Equal(t, 12, written.SpreadsheetRow)
	assert.Equal(t, "page-9", written.TrackerPageID)

	// Exactly one directional write.
	f.primary.AssertNumberOfCalls(t, "Update", 1)
	f.sheet.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_ReconcileInbound_AppWinsWritesSheetOnly(t *testing.T) {
	f := newReconcilerFixture()
	now := time.Now()
	sheetClient := sheetRowClient(t, "Acme Corporation", "hi@acme.test", now.Add(-10*time.Minute))
	app := sheetRowClient(t, "Acme Corp", "hi@acme.test", now)
	require.NoError(t, app.AssignSpreadsheetRow(12))

	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(app, nil)
	f.sheet.On("Update", mock.Anything, 12, app).Return(nil)

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	require.NoError(t, err)
	assert.Equal(t, OutcomeAppApplied, result.Outcome)

	// The sheet is overwritten from the app side; the primary store is
	// never written.
	f.sheet.AssertNumberOfCalls(t, "Update", 1)
	f.primary.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.primary.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconciler_ReconcileInbound_AmbiguousWithinDriftWindow(t *testing.T) {
	f := newReconcilerFixture()
	now := time.Now()
	sheetClient := sheetRowClient(t, "Acme Corporation", "hi@acme.test", now)
	app := sheetRowClient(t, "Acme Corp", "hi@acme.test", now.Add(-30*time.Second))
	require.NoError(t, app.AssignSpreadsheetRow(12))

	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(app, nil)

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	// The ambiguous outcome is reported alongside the conflict error so the
	// transport layer can translate it.
	require.NotNil(t, result)
	assert.Equal(t, OutcomeAmbiguous, result.Outcome)

	var cerr *sync.ConflictAmbiguousError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 12, cerr.RowNumber)
	assert.Equal(t, 30*time.Second, cerr.Delta)

	// No write in either direction.
	f.primary.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.sheet.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	// The conflict was flagged for review.
	entries := f.audit.byAction("client.reconcile")
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, string(OutcomeAmbiguous), entries[0].Metadata["outcome"])
}

func TestReconciler_ReconcileInbound_RowNotFound(t *testing.T) {
	f := newReconcilerFixture()

	f.sheet.On("Read", mock.Anything, 99).Return(nil, sync.ErrRowNotFound)

	result, err := f.rec.ReconcileInbound(context.Background(), 99)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, sync.ErrRowNotFound)
}

func TestReconciler_ReconcileInbound_LookupFailurePropagates(t *testing.T) {
	f := newReconcilerFixture()
	sheetClient := sheetRowClient(t, "Acme Corp", "hi@acme.test", time.Now())
	lookupErr := errors.New("connection reset")

	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(nil, lookupErr)

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, lookupErr)
	f.primary.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestReconciler_ReconcileInbound_SheetWriteFailureSurfaced(t *testing.T) {
	f := newReconcilerFixture()
	now := time.Now()
	sheetClient := sheetRowClient(t, "Acme Corporation", "hi@acme.test", now.Add(-10*time.Minute))
	app := sheetRowClient(t, "Acme Corp", "hi@acme.test", now)
	require.NoError(t, app.AssignSpreadsheetRow(12))

	f.sheet.On("Read", mock.Anything, 12).Return(sheetClient, nil)
	f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(app, nil)
	f.sheet.On("Update", mock.Anything, 12, app).Return(errors.New("rate limited"))

	result, err := f.rec.ReconcileInbound(context.Background(), 12)

	assert.Nil(t, result)
	var werr *sync.AdapterWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, sync.PlatformSpreadsheet, werr.Platform)
}
