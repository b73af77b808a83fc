package sync

// Platform identifies one of the external systems of record a client
// record is replicated to.
type Platform string

const (
	// PlatformPrimary is the primary relational store
	PlatformPrimary Platform = "PRIMARY"
	// PlatformSpreadsheet is the spreadsheet-based ledger
	PlatformSpreadsheet Platform = "SPREADSHEET"
	// PlatformTracker is the project-tracking workspace
	PlatformTracker Platform = "TRACKER"
)

// IsValid returns true if the platform is valid
func (p Platform) IsValid() bool {
	switch p {
	case PlatformPrimary, PlatformSpreadsheet, PlatformTracker:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// Action represents the kind of write performed against a platform
type Action string

const (
	// ActionCreate creates the client on a platform
	ActionCreate Action = "CREATE"
	// ActionUpdate mutates an existing client on a platform
	ActionUpdate Action = "UPDATE"
	// ActionDelete removes the client from a platform
	ActionDelete Action = "DELETE"
)

// IsValid returns true if the action is valid
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}
