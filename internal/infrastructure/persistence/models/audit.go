package models

import (
	"encoding/json"
	"time"

	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/google/uuid"
)

// AuditLogModel is the persistence model for sync audit trail entries.
type AuditLogModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Actor     string    `gorm:"type:varchar(100);not null"`
	Action    string    `gorm:"type:varchar(100);not null;index"`
	Level     string    `gorm:"type:varchar(20);not null;index"`
	Metadata  string    `gorm:"type:jsonb"`
	Timestamp time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "sync_audit_log"
}

// ToDomain converts the persistence model to a domain AuditEntry.
func (m *AuditLogModel) ToDomain() sync.AuditEntry {
	metadata := map[string]any{}
	if m.Metadata != "" {
		// Unreadable metadata degrades to empty rather than failing a read.
		_ = json.Unmarshal([]byte(m.Metadata), &metadata)
	}
	return sync.AuditEntry{
		Actor:     m.Actor,
		Action:    m.Action,
		Level:     m.Level,
		Metadata:  metadata,
		Timestamp: m.Timestamp,
	}
}

// AuditLogModelFromDomain creates a new persistence model from a domain AuditEntry.
func AuditLogModelFromDomain(entry sync.AuditEntry) *AuditLogModel {
	metadata := ""
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			metadata = string(raw)
		}
	}
	return &AuditLogModel{
		ID:        uuid.New(),
		Actor:     entry.Actor,
		Action:    entry.Action,
		Level:     entry.Level,
		Metadata:  metadata,
		Timestamp: entry.Timestamp,
	}
}
