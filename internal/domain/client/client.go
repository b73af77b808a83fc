package client

import (
	"regexp"
	"time"

	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a client
type Status string

const (
	StatusLead     Status = "lead"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusLead, StatusActive, StatusInactive, StatusArchived:
		return true
	default:
		return false
	}
}

// Client is the aggregate root for a client record. It is the one logical
// entity replicated across the primary store, the spreadsheet ledger, and
// the project tracker. The correlation handles (ID, SpreadsheetRow,
// TrackerPageID) address the same client inside each external platform.
type Client struct {
	shared.BaseAggregateRoot
	Name          string
	ContactName   string
	Phone         string
	Email         string
	Status        Status
	Notes         string
	LifetimeValue decimal.Decimal

	// SpreadsheetRow is assigned by the spreadsheet ledger on first write
	// and stable thereafter. Zero means not yet replicated to the sheet.
	SpreadsheetRow int
	// TrackerPageID is the linked workflow item in the project tracker.
	// Empty until a linked item is created.
	TrackerPageID string
	// TrackerURL is the public URL of the linked tracker item.
	TrackerURL string

	// LastSyncedAt records the last write from any direction. It is consulted
	// only by the conflict resolver, never by the saga controller.
	LastSyncedAt time.Time
}

// New creates a new client with required fields
func New(name string) (*Client, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	return &Client{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Status:            StatusLead,
		LifetimeValue:     decimal.Zero,
		LastSyncedAt:      time.Now(),
	}, nil
}

// Rename updates the client's display name
func (c *Client) Rename(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	c.Name = name
	c.touch()
	return nil
}

// SetContact sets the client's contact information
func (c *Client) SetContact(contactName, phone, email string) error {
	if contactName != "" && len(contactName) > 100 {
		return shared.NewDomainError("INVALID_CONTACT_NAME", "Contact name cannot exceed 100 characters")
	}
	if phone != "" {
		if err := validatePhone(phone); err != nil {
			return err
		}
	}
	if email != "" {
		if err := ValidateEmail(email); err != nil {
			return err
		}
	}

	c.ContactName = contactName
	c.Phone = phone
	c.Email = email
	c.touch()
	return nil
}

// SetStatus moves the client to a new lifecycle status
func (c *Client) SetStatus(status Status) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Status must be 'lead', 'active', 'inactive', or 'archived'")
	}

	c.Status = status
	c.touch()
	return nil
}

// SetNotes sets the client's free-text notes
func (c *Client) SetNotes(notes string) {
	c.Notes = notes
	c.touch()
}

// SetLifetimeValue sets the client's lifetime value
func (c *Client) SetLifetimeValue(value decimal.Decimal) error {
	if value.IsNegative() {
		return shared.NewDomainError("INVALID_LIFETIME_VALUE", "Lifetime value cannot be negative")
	}

	c.LifetimeValue = value
	c.touch()
	return nil
}

// AssignSpreadsheetRow records the row the spreadsheet ledger assigned to
// this client. The row is stable once assigned and never reassigned.
func (c *Client) AssignSpreadsheetRow(row int) error {
	if row <= 0 {
		return shared.NewDomainError("INVALID_ROW", "Spreadsheet row must be a positive integer")
	}
	if c.SpreadsheetRow != 0 && c.SpreadsheetRow != row {
		return shared.NewDomainError("ROW_REASSIGNED", "Spreadsheet row is stable once assigned")
	}

	c.SpreadsheetRow = row
	c.touch()
	return nil
}

// AssignTrackerItem records the linked project tracker item
func (c *Client) AssignTrackerItem(pageID, url string) error {
	if pageID == "" {
		return shared.NewDomainError("INVALID_TRACKER_PAGE", "Tracker page ID cannot be empty")
	}

	c.TrackerPageID = pageID
	c.TrackerURL = url
	c.touch()
	return nil
}

// MarkSynced records a completed write from either direction
func (c *Client) MarkSynced(at time.Time) {
	c.LastSyncedAt = at
	c.UpdatedAt = at
}

// HasSpreadsheetRow returns true if the client has been replicated to the sheet
func (c *Client) HasSpreadsheetRow() bool {
	return c.SpreadsheetRow > 0
}

// HasTrackerItem returns true if a linked tracker item exists
func (c *Client) HasTrackerItem() bool {
	return c.TrackerPageID != ""
}

// IsArchived returns true if the client is archived
func (c *Client) IsArchived() bool {
	return c.Status == StatusArchived
}

// Clone returns a deep copy of the client. Sagas capture pre-write snapshots
// for compensation, so the copy must not alias the original.
func (c *Client) Clone() *Client {
	copied := *c
	return &copied
}

func (c *Client) touch() {
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// Validation functions

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Client name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Client name cannot exceed 200 characters")
	}
	return nil
}

func validatePhone(phone string) error {
	if len(phone) > 50 {
		return shared.NewDomainError("INVALID_PHONE", "Phone number cannot exceed 50 characters")
	}
	validPhone := regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)
	if !validPhone.MatchString(phone) {
		return shared.NewDomainError("INVALID_PHONE", "Invalid phone number format")
	}
	return nil
}

// ValidateEmail validates an email address as local@domain
func ValidateEmail(email string) error {
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}
