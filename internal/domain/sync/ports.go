package sync

import (
	"context"
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/google/uuid"
)

// PrimaryStore is the port for the primary relational store. The orchestrator
// never assumes a persistence mechanism, only this interface; the GORM
// implementation lives in the infrastructure layer.
//
// Adapters perform their own network retry/backoff. Each call is a single
// atomic unit that either succeeds or returns an error.
type PrimaryStore interface {
	// Create persists a new client and returns it with its ID assigned
	Create(ctx context.Context, c *client.Client) (*client.Client, error)

	// Update overwrites the stored client
	Update(ctx context.Context, c *client.Client) error

	// SoftDelete marks the client deleted without releasing its handles.
	// Handles are never reused after a delete.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// FindByID returns the client or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*client.Client, error)

	// FindBySpreadsheetRow returns the client correlated to the given row,
	// or shared.ErrNotFound
	FindBySpreadsheetRow(ctx context.Context, row int) (*client.Client, error)

	// FindByEmail returns the client with the exact email, or shared.ErrNotFound
	FindByEmail(ctx context.Context, email string) (*client.Client, error)
}

// SpreadsheetLedger is the port for the spreadsheet-based ledger. It is the
// one platform with row-addressable reads, used by inbound reconciliation.
type SpreadsheetLedger interface {
	// Append writes the client to a new row and returns the assigned row
	// number. A zero row with a nil error is a contract violation the
	// orchestrator treats as a hard failure.
	Append(ctx context.Context, c *client.Client) (int, error)

	// Update rewrites an existing row with the client's replicated fields
	Update(ctx context.Context, row int, c *client.Client) error

	// SetTrackerLink backlinks the tracker item URL into the row
	SetTrackerLink(ctx context.Context, row int, url string) error

	// Delete clears the row
	Delete(ctx context.Context, row int) error

	// Read returns the client data held in the row, or ErrRowNotFound if
	// the row is empty
	Read(ctx context.Context, row int) (*client.Client, error)
}

// TrackerItem is a workflow item in the project tracker linked to a client
type TrackerItem struct {
	PageID string
	URL    string
	Title  string
}

// ProjectTracker is the port for the project-tracking workspace. The tracker
// exposes no reliable permanent delete, so removal is archive-only and
// compensation against it is best effort.
type ProjectTracker interface {
	// CreateLinkedItem creates a workflow item linked to the client
	CreateLinkedItem(ctx context.Context, c *client.Client) (*TrackerItem, error)

	// ListLinkedItems returns every tracker item linked to the client
	ListLinkedItems(ctx context.Context, clientID uuid.UUID) ([]TrackerItem, error)

	// Rename pushes a new display title onto a tracker item
	Rename(ctx context.Context, pageID, title string) error

	// Archive archives a tracker item (best effort, not a permanent delete)
	Archive(ctx context.Context, pageID string) error
}

// AuditEntry is one record in the audit trail
type AuditEntry struct {
	Actor     string
	Action    string
	Level     string
	Metadata  map[string]any
	Timestamp time.Time
}

// AuditSink receives audit entries. Implementations must be fire-and-forget:
// recording must never block or fail the workflow that produced the entry.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}
