package persistence

import (
	"context"
	"time"

	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/clientsync/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormAuditSink implements sync.AuditSink using GORM. Writes are fire and
// forget: audit persistence failures are logged but never fail or delay the
// saga that produced them.
type GormAuditSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormAuditSink creates a new GormAuditSink
func NewGormAuditSink(db *gorm.DB, logger *zap.Logger) *GormAuditSink {
	return &GormAuditSink{db: db, logger: logger.Named("audit")}
}

// Record persists an audit entry asynchronously
func (s *GormAuditSink) Record(ctx context.Context, entry sync.AuditEntry) {
	model := models.AuditLogModelFromDomain(entry)
	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.db.WithContext(writeCtx).Create(model).Error; err != nil {
			s.logger.Error("failed to persist audit entry",
				zap.String("action", entry.Action),
				zap.String("actor", entry.Actor),
				zap.Error(err),
			)
		}
	}()
}

// AuditFilter narrows an audit trail listing
type AuditFilter struct {
	Action string
	Level  string
	Since  time.Time
	Limit  int
}

// List returns audit entries newest first, optionally filtered
func (s *GormAuditSink) List(ctx context.Context, filter AuditFilter) ([]sync.AuditEntry, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLogModel{}).Order("timestamp DESC")

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	var rows []models.AuditLogModel
	if err := query.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]sync.AuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.ToDomain()
	}
	return entries, nil
}
