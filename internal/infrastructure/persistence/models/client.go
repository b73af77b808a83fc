package models

import (
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClientModel is the persistence model for the Client domain aggregate.
// DeletedAt gives the saga a reversible soft delete: compensating a failed
// create never destroys the row.
type ClientModel struct {
	AggregateModel
	Name           string          `gorm:"type:varchar(200);not null"`
	ContactName    string          `gorm:"type:varchar(100)"`
	Phone          string          `gorm:"type:varchar(50);index"`
	Email          string          `gorm:"type:varchar(200);index"`
	Status         client.Status   `gorm:"type:varchar(20);not null;default:'lead'"`
	Notes          string          `gorm:"type:text"`
	LifetimeValue  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SpreadsheetRow int             `gorm:"not null;default:0;index"`
	TrackerPageID  string          `gorm:"type:varchar(100);index"`
	TrackerURL     string          `gorm:"type:varchar(500)"`
	LastSyncedAt   time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client aggregate.
func (m *ClientModel) ToDomain() *client.Client {
	return &client.Client{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:           m.Name,
		ContactName:    m.ContactName,
		Phone:          m.Phone,
		Email:          m.Email,
		Status:         m.Status,
		Notes:          m.Notes,
		LifetimeValue:  m.LifetimeValue,
		SpreadsheetRow: m.SpreadsheetRow,
		TrackerPageID:  m.TrackerPageID,
		TrackerURL:     m.TrackerURL,
		LastSyncedAt:   m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain Client aggregate.
func (m *ClientModel) FromDomain(c *client.Client) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.ContactName = c.ContactName
	m.Phone = c.Phone
	m.Email = c.Email
	m.Status = c.Status
	m.Notes = c.Notes
	m.LifetimeValue = c.LifetimeValue
	m.SpreadsheetRow = c.SpreadsheetRow
	m.TrackerPageID = c.TrackerPageID
	m.TrackerURL = c.TrackerURL
	m.LastSyncedAt = c.LastSyncedAt
}

// ClientModelFromDomain creates a new persistence model from a domain Client.
func ClientModelFromDomain(c *client.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}
