package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	syncapp "github.com/clientsync/backend/internal/application/sync"
	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/clientsync/backend/internal/infrastructure/cache"
	"github.com/clientsync/backend/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockPrimaryStore implements sync.PrimaryStore for testing
type MockPrimaryStore struct {
	mock.Mock
}

func (m *MockPrimaryStore) Create(ctx context.Context, c *client.Client) (*client.Client, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

func (m *MockPrimaryStore) Update(ctx context.Context, c *client.Client) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockPrimaryStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPrimaryStore) FindByID(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

func (m *MockPrimaryStore) FindBySpreadsheetRow(ctx context.Context, row int) (*client.Client, error) {
	args := m.Called(ctx, row)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

func (m *MockPrimaryStore) FindByEmail(ctx context.Context, email string) (*client.Client, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

// MockSpreadsheetLedger implements sync.SpreadsheetLedger for testing
type MockSpreadsheetLedger struct {
	mock.Mock
}

func (m *MockSpreadsheetLedger) Append(ctx context.Context, c *client.Client) (int, error) {
	args := m.Called(ctx, c)
	return args.Int(0), args.Error(1)
}

func (m *MockSpreadsheetLedger) Update(ctx context.Context, row int, c *client.Client) error {
	args := m.Called(ctx, row, c)
	return args.Error(0)
}

func (m *MockSpreadsheetLedger) SetTrackerLink(ctx context.Context, row int, url string) error {
	args := m.Called(ctx, row, url)
	return args.Error(0)
}

func (m *MockSpreadsheetLedger) Delete(ctx context.Context, row int) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockSpreadsheetLedger) Read(ctx context.Context, row int) (*client.Client, error) {
	args := m.Called(ctx, row)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

// MockProjectTracker implements sync.ProjectTracker for testing
type MockProjectTracker struct {
	mock.Mock
}

func (m *MockProjectTracker) CreateLinkedItem(ctx context.Context, c *client.Client) (*sync.TrackerItem, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.TrackerItem), args.Error(1)
}

func (m *MockProjectTracker) ListLinkedItems(ctx context.Context, clientID uuid.UUID) ([]sync.TrackerItem, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sync.TrackerItem), args.Error(1)
}

func (m *MockProjectTracker) Rename(ctx context.Context, pageID, title string) error {
	args := m.Called(ctx, pageID, title)
	return args.Error(0)
}

func (m *MockProjectTracker) Archive(ctx context.Context, pageID string) error {
	args := m.Called(ctx, pageID)
	return args.Error(0)
}

// MockAuditLister implements AuditLister for testing
type MockAuditLister struct {
	mock.Mock
}

func (m *MockAuditLister) List(ctx context.Context, filter persistence.AuditFilter) ([]sync.AuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sync.AuditEntry), args.Error(1)
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, sync.AuditEntry) {}

// stubLocker hands out locks and records whether they came back
type stubLocker struct {
	busy     bool
	acquired int
	released int
}

func (l *stubLocker) Acquire(ctx context.Context, clientID uuid.UUID) (func(), error) {
	if l.busy {
		return nil, cache.ErrClientBusy
	}
	l.acquired++
	return func() { l.released++ }, nil
}

type syncHandlerFixture struct {
	primary *MockPrimaryStore
	sheet   *MockSpreadsheetLedger
	tracker *MockProjectTracker
	audit   *MockAuditLister
	locker  *stubLocker
	engine  *gin.Engine
}

func newSyncHandlerFixture(t *testing.T) *syncHandlerFixture {
	t.Helper()

	f := &syncHandlerFixture{
		primary: new(MockPrimaryStore),
		sheet:   new(MockSpreadsheetLedger),
		tracker: new(MockProjectTracker),
		audit:   new(MockAuditLister),
		locker:  &stubLocker{},
	}

	orchestrator := syncapp.NewOrchestrator(
		f.primary, f.sheet, f.tracker, noopAuditSink{}, zap.NewNop(), syncapp.DefaultTimeouts())
	reconciler := syncapp.NewReconciler(
		f.primary, f.sheet, noopAuditSink{}, zap.NewNop(), sync.NewResolverConfig(), syncapp.DefaultTimeouts())

	h := NewSyncHandler(orchestrator, reconciler, f.primary, f.locker, f.audit)

	f.engine = gin.New()
	f.engine.POST("/sync/clients", h.Create)
	f.engine.PUT("/sync/clients/:id", h.Update)
	f.engine.POST("/sync/reconcile/rows/:row", h.Reconcile)
	f.engine.GET("/sync/audit", h.ListAudit)
	return f
}

func (f *syncHandlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func storedClient(t *testing.T, name string) *client.Client {
	t.Helper()
	c, err := client.New(name)
	require.NoError(t, err)
	return c
}

func TestSyncHandler_Create(t *testing.T) {
	t.Run("replicates to all platforms and returns 201", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		saved := storedClient(t, "Acme Corp")

		f.primary.On("Create", mock.Anything, mock.Anything).Return(saved, nil)
		f.primary.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.sheet.On("Append", mock.Anything, mock.Anything).Return(42, nil)
		f.sheet.On("SetTrackerLink", mock.Anything, 42, mock.Anything).Return(nil)
		f.tracker.On("CreateLinkedItem", mock.Anything, mock.Anything).
			Return(&sync.TrackerItem{PageID: "page-1", URL: "https://tracker.example.com/page-1"}, nil)

		w := f.do(http.MethodPost, "/sync/clients", gin.H{
			"name":           "Acme Corp",
			"email":          "contact@acme.com",
			"lifetime_value": 1200.50,
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])

		data := body["data"].(map[string]any)
		clientData := data["client"].(map[string]any)
		assert.Equal(t, "Acme Corp", clientData["name"])
		assert.Equal(t, float64(42), clientData["spreadsheet_row"])
		assert.Equal(t, "page-1", clientData["tracker_page_id"])
		assert.Len(t, data["completed_operations"], 4)
	})

	t.Run("invalid body is rejected before any adapter call", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		w := f.do(http.MethodPost, "/sync/clients", gin.H{"email": "contact@acme.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.primary.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid email is rejected before any adapter call", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		w := f.do(http.MethodPost, "/sync/clients", gin.H{
			"name":  "Acme Corp",
			"email": "not-an-email",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.primary.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("upstream failure reports rollback and returns 502", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		saved := storedClient(t, "Acme Corp")

		f.primary.On("Create", mock.Anything, mock.Anything).Return(saved, nil)
		f.primary.On("SoftDelete", mock.Anything, saved.ID).Return(nil)
		f.sheet.On("Append", mock.Anything, mock.Anything).Return(0, errors.New("sheet: HTTP 502"))

		w := f.do(http.MethodPost, "/sync/clients", gin.H{"name": "Acme Corp"})

		require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_SYNC_UPSTREAM", errInfo["code"])

		data := body["data"].(map[string]any)
		assert.Equal(t, float64(1), data["rolled_back"])
		f.primary.AssertCalled(t, "SoftDelete", mock.Anything, saved.ID)
	})

	t.Run("duplicate record maps to 409", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		f.primary.On("Create", mock.Anything, mock.Anything).Return(nil, shared.ErrAlreadyExists)

		w := f.do(http.MethodPost, "/sync/clients", gin.H{
			"name":  "Acme Corp",
			"email": "contact@acme.com",
		})

		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		body := decodeBody(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_ALREADY_EXISTS", errInfo["code"])
	})
}

func TestSyncHandler_Update(t *testing.T) {
	existing := func(t *testing.T) *client.Client {
		c := storedClient(t, "Acme Corp")
		require.NoError(t, c.AssignSpreadsheetRow(7))
		return c
	}

	t.Run("replicates changes and releases the lock", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		current := existing(t)

		f.primary.On("FindByID", mock.Anything, current.ID).Return(current, nil)
		f.primary.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.sheet.On("Update", mock.Anything, 7, mock.Anything).Return(nil)

		w := f.do(http.MethodPut, "/sync/clients/"+current.ID.String(), gin.H{
			"notes": "Moved to onboarding",
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		data := body["data"].(map[string]any)
		assert.Len(t, data["completed_operations"], 2)
		assert.Equal(t, 1, f.locker.acquired)
		assert.Equal(t, 1, f.locker.released)
	})

	t.Run("name change fans out to tracker items", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		current := existing(t)

		f.primary.On("FindByID", mock.Anything, current.ID).Return(current, nil)
		f.primary.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.sheet.On("Update", mock.Anything, 7, mock.Anything).Return(nil)
		f.tracker.On("ListLinkedItems", mock.Anything, current.ID).
			Return([]sync.TrackerItem{{PageID: "page-1"}, {PageID: "page-2"}}, nil)
		f.tracker.On("Rename", mock.Anything, mock.Anything, "Globex Ltd").Return(nil)

		w := f.do(http.MethodPut, "/sync/clients/"+current.ID.String(), gin.H{
			"name": "Globex Ltd",
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		f.tracker.AssertNumberOfCalls(t, "Rename", 2)
	})

	t.Run("held lock returns 409 without touching the store", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		f.locker.busy = true
		current := existing(t)

		w := f.do(http.MethodPut, "/sync/clients/"+current.ID.String(), gin.H{
			"notes": "anything",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeBody(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_SYNC_CLIENT_BUSY", errInfo["code"])
		f.primary.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown client returns 404", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		id := uuid.New()

		f.primary.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		w := f.do(http.MethodPut, "/sync/clients/"+id.String(), gin.H{"notes": "x"})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 1, f.locker.released)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		w := f.do(http.MethodPut, "/sync/clients/not-a-uuid", gin.H{"notes": "x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, f.locker.acquired)
	})

	t.Run("every lifecycle status is accepted", func(t *testing.T) {
		for _, status := range []string{"lead", "active", "inactive", "archived"} {
			f := newSyncHandlerFixture(t)
			current := existing(t)

			f.primary.On("FindByID", mock.Anything, current.ID).Return(current, nil)
			f.primary.On("Update", mock.Anything, mock.Anything).Return(nil)
			f.sheet.On("Update", mock.Anything, 7, mock.Anything).Return(nil)

			w := f.do(http.MethodPut, "/sync/clients/"+current.ID.String(), gin.H{
				"status": status,
			})

			require.Equal(t, http.StatusOK, w.Code, "status %q: %s", status, w.Body.String())
			body := decodeBody(t, w)
			cl := body["data"].(map[string]any)["client"].(map[string]any)
			assert.Equal(t, status, cl["status"])
		}
	})

	t.Run("invalid status value fails binding", func(t *testing.T) {
		f := newSyncHandlerFixture(t)
		current := existing(t)

		w := f.do(http.MethodPut, "/sync/clients/"+current.ID.String(), gin.H{
			"status": "frozen",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.primary.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestSyncHandler_Reconcile(t *testing.T) {
	t.Run("applies the sheet edit and reports the outcome", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		appSide := storedClient(t, "Acme Corp")
		require.NoError(t, appSide.AssignSpreadsheetRow(12))
		appSide.MarkSynced(time.Now().Add(-10 * time.Minute))

		sheetSide := storedClient(t, "Acme Corporation")
		sheetSide.MarkSynced(time.Now())

		f.sheet.On("Read", mock.Anything, 12).Return(sheetSide, nil)
		f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(appSide, nil)
		f.primary.On("Update", mock.Anything, mock.Anything).Return(nil)

		w := f.do(http.MethodPost, "/sync/reconcile/rows/12", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		data := body["data"].(map[string]any)
		assert.Equal(t, "SHEET_APPLIED", data["outcome"])
		assert.Equal(t, float64(12), data["row_number"])
	})

	t.Run("ambiguous conflict returns 409 with the outcome attached", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		now := time.Now()
		appSide := storedClient(t, "Acme Corp")
		require.NoError(t, appSide.AssignSpreadsheetRow(12))
		appSide.MarkSynced(now.Add(-30 * time.Second))

		sheetSide := storedClient(t, "Acme Corporation")
		sheetSide.MarkSynced(now)

		f.sheet.On("Read", mock.Anything, 12).Return(sheetSide, nil)
		f.primary.On("FindBySpreadsheetRow", mock.Anything, 12).Return(appSide, nil)

		w := f.do(http.MethodPost, "/sync/reconcile/rows/12", nil)

		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		body := decodeBody(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_SYNC_AMBIGUOUS", errInfo["code"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "AMBIGUOUS", data["outcome"])
		f.primary.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("missing row returns 404", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		f.sheet.On("Read", mock.Anything, 99).Return(nil, sync.ErrRowNotFound)

		w := f.do(http.MethodPost, "/sync/reconcile/rows/99", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeBody(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_SYNC_ROW_NOT_FOUND", errInfo["code"])
	})

	t.Run("non-numeric row returns 400", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		w := f.do(http.MethodPost, "/sync/reconcile/rows/abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.sheet.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
	})
}

func TestSyncHandler_ListAudit(t *testing.T) {
	t.Run("returns entries with filters applied", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		entries := []sync.AuditEntry{
			{
				Actor:     "orchestrator",
				Action:    "client.create",
				Level:     "info",
				Metadata:  map[string]any{"completed_operations": 4},
				Timestamp: time.Date(2026, 1, 24, 12, 0, 0, 0, time.UTC),
			},
		}
		f.audit.On("List", mock.Anything, mock.MatchedBy(func(filter persistence.AuditFilter) bool {
			return filter.Action == "client.create" && filter.Level == "info" && filter.Limit == 10
		})).Return(entries, nil)

		w := f.do(http.MethodGet, "/sync/audit?action=client.create&level=info&limit=10", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		data := body["data"].([]any)
		require.Len(t, data, 1)
		entry := data[0].(map[string]any)
		assert.Equal(t, "client.create", entry["action"])
		assert.Equal(t, "2026-01-24T12:00:00Z", entry["timestamp"])
	})

	t.Run("invalid level fails binding", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		w := f.do(http.MethodGet, "/sync/audit?level=loud", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.audit.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("malformed since timestamp returns 400", func(t *testing.T) {
		f := newSyncHandlerFixture(t)

		w := f.do(http.MethodGet, "/sync/audit?since=yesterday", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.audit.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

// applyClientUpdate drives every change through the aggregate's setters, so
// an invalid transition surfaces as a domain error before any platform write.
func TestApplyClientUpdate(t *testing.T) {
	c := storedClient(t, "Acme Corp")

	name := "Globex Ltd"
	notes := "renamed"
	value := 99.5
	err := applyClientUpdate(c, UpdateClientRequest{
		Name:          &name,
		Notes:         &notes,
		LifetimeValue: &value,
	})
	require.NoError(t, err)
	assert.Equal(t, "Globex Ltd", c.Name)
	assert.Equal(t, "renamed", c.Notes)
	assert.True(t, c.LifetimeValue.Equal(decimal.NewFromFloat(99.5)))

	bad := ""
	err = applyClientUpdate(c, UpdateClientRequest{Name: &bad})
	assert.Error(t, err)
}
