package sync

import (
	"time"

	"github.com/clientsync/backend/internal/domain/client"
)

// DefaultDriftWindow is the default tolerance for near-simultaneous edits.
// Deployments tune it through ResolverConfig.
const DefaultDriftWindow = 60 * time.Second

// ResolverConfig holds conflict resolution policy
type ResolverConfig struct {
	// DriftWindow is the tolerance within which two timestamps are treated
	// as an ambiguous simultaneous edit rather than a winner.
	DriftWindow time.Duration
}

// NewResolverConfig returns the default resolution policy
func NewResolverConfig() ResolverConfig {
	return ResolverConfig{DriftWindow: DefaultDriftWindow}
}

// Resolution is the outcome of comparing two timestamped versions
type Resolution string

const (
	// ResolutionSheetWins means the spreadsheet edit is newer
	ResolutionSheetWins Resolution = "SHEET_WINS"
	// ResolutionAppWins means the app-side record is newer
	ResolutionAppWins Resolution = "APP_WINS"
	// ResolutionAmbiguous means both sides changed within the drift window;
	// no automatic write is performed and a human reviews the conflict.
	ResolutionAmbiguous Resolution = "AMBIGUOUS"
)

// Resolve compares the two sides' LastSyncedAt timestamps under a
// last-writer-wins policy with drift tolerance. The boundary is strictly
// greater than the window: a gap of exactly DriftWindow is still ambiguous.
// This is a pure function; it performs no I/O.
func (cfg ResolverConfig) Resolve(sheet, app *client.Client) Resolution {
	delta := sheet.LastSyncedAt.Sub(app.LastSyncedAt)
	switch {
	case delta > cfg.DriftWindow:
		return ResolutionSheetWins
	case -delta > cfg.DriftWindow:
		return ResolutionAppWins
	default:
		return ResolutionAmbiguous
	}
}

// MergeSheetIntoApp writes the sheet-side replicated fields onto the app
// record, preserving the correlation handles the inbound side never carries.
// A non-nil primary ID or tracker page ID is never overwritten with an
// empty value.
func MergeSheetIntoApp(sheet, app *client.Client) *client.Client {
	merged := app.Clone()
	merged.Name = sheet.Name
	merged.ContactName = sheet.ContactName
	merged.Phone = sheet.Phone
	merged.Email = sheet.Email
	merged.Notes = sheet.Notes
	merged.LifetimeValue = sheet.LifetimeValue
	if sheet.Status.IsValid() {
		merged.Status = sheet.Status
	}
	merged.LastSyncedAt = sheet.LastSyncedAt
	return merged
}

// FieldChange records one replicated field that differs between two versions
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// DetectChanges diffs the fixed whitelist of replicated fields. Correlation
// handles and sync bookkeeping are deliberately outside the whitelist: they
// are assigned by the saga, not edited by users, and diffing them would
// round-trip no-op writes through all three platforms.
func DetectChanges(before, after *client.Client) []FieldChange {
	var changes []FieldChange
	appendChange := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
		}
	}

	appendChange("name", before.Name, after.Name)
	appendChange("contact_name", before.ContactName, after.ContactName)
	appendChange("phone", before.Phone, after.Phone)
	appendChange("email", before.Email, after.Email)
	appendChange("status", string(before.Status), string(after.Status))
	appendChange("notes", before.Notes, after.Notes)
	if !before.LifetimeValue.Equal(after.LifetimeValue) {
		changes = append(changes, FieldChange{
			Field: "lifetime_value",
			Old:   before.LifetimeValue.String(),
			New:   after.LifetimeValue.String(),
		})
	}
	return changes
}

// NameChanged reports whether the identity/display-name field is part of the
// diff. A name change fans out to every linked tracker item.
func NameChanged(changes []FieldChange) bool {
	for _, ch := range changes {
		if ch.Field == "name" {
			return true
		}
	}
	return false
}
