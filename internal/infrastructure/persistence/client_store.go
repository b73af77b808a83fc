package persistence

import (
	"context"
	"errors"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/clientsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormClientStore implements sync.PrimaryStore using GORM
type GormClientStore struct {
	db *gorm.DB
}

// NewGormClientStore creates a new GormClientStore
func NewGormClientStore(db *gorm.DB) *GormClientStore {
	return &GormClientStore{db: db}
}

// Create inserts a new client record and returns the persisted aggregate
func (s *GormClientStore) Create(ctx context.Context, c *client.Client) (*client.Client, error) {
	model := models.ClientModelFromDomain(c)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.ErrAlreadyExists
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update overwrites all fields of an existing client record. Compensations
// restore pre-write snapshots through this method, so zero values must be
// written too.
func (s *GormClientStore) Update(ctx context.Context, c *client.Client) error {
	model := models.ClientModelFromDomain(c)
	result := s.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDelete marks a client record as deleted without destroying the row.
// Deleting an already-deleted record is a no-op, which keeps the create
// compensation idempotent under retried rollback.
func (s *GormClientStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&models.ClientModel{}, "id = ?", id).Error
}

// FindByID finds a client by its ID
func (s *GormClientStore) FindByID(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	var model models.ClientModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySpreadsheetRow finds the client holding the given spreadsheet row
func (s *GormClientStore) FindBySpreadsheetRow(ctx context.Context, row int) (*client.Client, error) {
	if row <= 0 {
		return nil, shared.NewDomainError("INVALID_ROW", "Spreadsheet row must be a positive integer")
	}
	var model models.ClientModel
	if err := s.db.WithContext(ctx).First(&model, "spreadsheet_row = ?", row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEmail finds a client by exact email match
func (s *GormClientStore) FindByEmail(ctx context.Context, email string) (*client.Client, error) {
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	var model models.ClientModel
	if err := s.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
