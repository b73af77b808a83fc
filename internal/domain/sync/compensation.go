package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/google/uuid"
)

// Compensation is a reversible action captured after a successful platform
// write. The interface is closed: one variant exists per platform rollback
// path, so every path can be matched and tested exhaustively instead of
// hiding behind an opaque closure.
//
// Execute is attempted exactly once per saga; a failure is logged with the
// correlation handle, never retried and never surfaced to the caller.
type Compensation interface {
	// Platform identifies the platform this compensation undoes a write on
	Platform() Platform
	// Handle returns the correlation handle for manual-cleanup logging
	Handle() string
	// Execute performs the compensating write
	Execute(ctx context.Context) error

	sealed()
}

// PrimarySoftDelete undoes a primary-store create by soft-deleting the
// record. Handles are never reused afterwards.
type PrimarySoftDelete struct {
	Store    PrimaryStore
	ClientID uuid.UUID
}

// Platform identifies the platform this compensation targets
func (c PrimarySoftDelete) Platform() Platform { return PlatformPrimary }

// Handle returns the client ID in the primary store
func (c PrimarySoftDelete) Handle() string { return c.ClientID.String() }

// Execute soft-deletes the created record
func (c PrimarySoftDelete) Execute(ctx context.Context) error {
	return c.Store.SoftDelete(ctx, c.ClientID)
}

func (PrimarySoftDelete) sealed() {}

// PrimaryRestore undoes a primary-store update by writing back the
// pre-update snapshot.
type PrimaryRestore struct {
	Store    PrimaryStore
	Previous *client.Client
}

// Platform identifies the platform this compensation targets
func (c PrimaryRestore) Platform() Platform { return PlatformPrimary }

// Handle returns the client ID in the primary store
func (c PrimaryRestore) Handle() string { return c.Previous.ID.String() }

// Execute restores the pre-update record
func (c PrimaryRestore) Execute(ctx context.Context) error {
	return c.Store.Update(ctx, c.Previous)
}

func (PrimaryRestore) sealed() {}

// SpreadsheetDeleteRow undoes a spreadsheet append by clearing the row
type SpreadsheetDeleteRow struct {
	Ledger SpreadsheetLedger
	Row    int
}

// Platform identifies the platform this compensation targets
func (c SpreadsheetDeleteRow) Platform() Platform { return PlatformSpreadsheet }

// Handle returns the row number
func (c SpreadsheetDeleteRow) Handle() string { return strconv.Itoa(c.Row) }

// Execute clears the appended row
func (c SpreadsheetDeleteRow) Execute(ctx context.Context) error {
	return c.Ledger.Delete(ctx, c.Row)
}

func (SpreadsheetDeleteRow) sealed() {}

// SpreadsheetRestoreRow undoes a spreadsheet update by rewriting the row
// from the pre-update snapshot.
type SpreadsheetRestoreRow struct {
	Ledger   SpreadsheetLedger
	Row      int
	Previous *client.Client
}

// Platform identifies the platform this compensation targets
func (c SpreadsheetRestoreRow) Platform() Platform { return PlatformSpreadsheet }

// Handle returns the row number
func (c SpreadsheetRestoreRow) Handle() string { return strconv.Itoa(c.Row) }

// Execute rewrites the row with the previous values
func (c SpreadsheetRestoreRow) Execute(ctx context.Context) error {
	return c.Ledger.Update(ctx, c.Row, c.Previous)
}

func (SpreadsheetRestoreRow) sealed() {}

// TrackerManualCleanup stands in for a tracker delete. The tracker exposes
// no reliable permanent delete, so compensation surfaces the page ID to the
// operator instead of attempting one.
type TrackerManualCleanup struct {
	PageID string
}

// Platform identifies the platform this compensation targets
func (c TrackerManualCleanup) Platform() Platform { return PlatformTracker }

// Handle returns the tracker page ID
func (c TrackerManualCleanup) Handle() string { return c.PageID }

// Execute reports that the tracker item needs manual cleanup
func (c TrackerManualCleanup) Execute(ctx context.Context) error {
	return fmt.Errorf("%w: tracker page %s", ErrManualCleanupRequired, c.PageID)
}

func (TrackerManualCleanup) sealed() {}

// TrackerRestoreTitles undoes a fan-out rename across every tracker item
// linked to one client. The bundle is compensated atomically: every item is
// attempted even if earlier ones fail, and the failures are joined.
type TrackerRestoreTitles struct {
	Tracker Tracker
	PageIDs []string
	Title   string
}

// Tracker is the subset of ProjectTracker a title rollback needs
type Tracker interface {
	Rename(ctx context.Context, pageID, title string) error
}

// Platform identifies the platform this compensation targets
func (c TrackerRestoreTitles) Platform() Platform { return PlatformTracker }

// Handle returns the page IDs covered by the bundle
func (c TrackerRestoreTitles) Handle() string { return strings.Join(c.PageIDs, ",") }

// Execute restores the previous title on every item in the bundle
func (c TrackerRestoreTitles) Execute(ctx context.Context) error {
	var errs []error
	for _, pageID := range c.PageIDs {
		if err := c.Tracker.Rename(ctx, pageID, c.Title); err != nil {
			errs = append(errs, fmt.Errorf("page %s: %w", pageID, err))
		}
	}
	return errors.Join(errs...)
}

func (TrackerRestoreTitles) sealed() {}
