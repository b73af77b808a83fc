package handler

import (
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/sync"
)

// ClientResponse represents a client record in API responses
// @Description Client details with cross-platform correlation handles
type ClientResponse struct {
	ID             string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name           string  `json:"name" example:"Acme Corp"`
	ContactName    string  `json:"contact_name" example:"John Doe"`
	Phone          string  `json:"phone" example:"13800138000"`
	Email          string  `json:"email" example:"contact@acme.com"`
	Status         string  `json:"status" example:"lead" enums:"lead,active,inactive,archived"`
	Notes          string  `json:"notes" example:"Met at trade fair"`
	LifetimeValue  float64 `json:"lifetime_value" example:"1200.50"`
	SpreadsheetRow int     `json:"spreadsheet_row" example:"42"`
	TrackerPageID  string  `json:"tracker_page_id" example:"page-8f3a"`
	TrackerURL     string  `json:"tracker_url" example:"https://tracker.example.com/pages/page-8f3a"`
	LastSyncedAt   string  `json:"last_synced_at,omitempty" example:"2026-01-24T12:00:00Z"`
	CreatedAt      string  `json:"created_at" example:"2026-01-24T12:00:00Z"`
	UpdatedAt      string  `json:"updated_at" example:"2026-01-24T12:00:00Z"`
	Version        int     `json:"version" example:"1"`
}

func clientResponseFromDomain(c *client.Client) ClientResponse {
	resp := ClientResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		ContactName:    c.ContactName,
		Phone:          c.Phone,
		Email:          c.Email,
		Status:         string(c.Status),
		Notes:          c.Notes,
		LifetimeValue:  c.LifetimeValue.InexactFloat64(),
		SpreadsheetRow: c.SpreadsheetRow,
		TrackerPageID:  c.TrackerPageID,
		TrackerURL:     c.TrackerURL,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
		Version:        c.Version,
	}
	if !c.LastSyncedAt.IsZero() {
		resp.LastSyncedAt = c.LastSyncedAt.Format(time.RFC3339)
	}
	return resp
}

// SyncOperationResponse represents one replicated platform write
// @Description A completed platform write within a sync run
type SyncOperationResponse struct {
	Platform    string `json:"platform" example:"SPREADSHEET" enums:"PRIMARY,SPREADSHEET,TRACKER"`
	Action      string `json:"action" example:"CREATE" enums:"CREATE,UPDATE,DELETE"`
	CompletedAt string `json:"completed_at" example:"2026-01-24T12:00:01Z"`
}

// RollbackFailureResponse represents a compensation that could not complete
// @Description A platform write that was left behind after a failed rollback
type RollbackFailureResponse struct {
	Platform string `json:"platform" example:"SPREADSHEET" enums:"PRIMARY,SPREADSHEET,TRACKER"`
	Handle   string `json:"handle" example:"42"`
	Reason   string `json:"reason" example:"sheet: HTTP 502"`
}

// SyncReportResponse summarizes a saga run for the API client
// @Description Outcome of a multi-platform sync run
type SyncReportResponse struct {
	Client              *ClientResponse           `json:"client,omitempty"`
	CompletedOperations []SyncOperationResponse   `json:"completed_operations"`
	RolledBack          int                       `json:"rolled_back"`
	RollbackFailures    []RollbackFailureResponse `json:"rollback_failures,omitempty"`
}

func syncReportFromResult(c *client.Client, result *sync.SyncResult) SyncReportResponse {
	report := SyncReportResponse{
		CompletedOperations: make([]SyncOperationResponse, 0, len(result.CompletedOperations)),
		RolledBack:          result.RolledBackCount(),
	}
	if c != nil {
		resp := clientResponseFromDomain(c)
		report.Client = &resp
	}
	for _, op := range result.CompletedOperations {
		report.CompletedOperations = append(report.CompletedOperations, SyncOperationResponse{
			Platform:    op.Platform.String(),
			Action:      op.Action.String(),
			CompletedAt: op.Completed.Format(time.RFC3339),
		})
	}
	for _, failure := range result.RollbackFailures {
		report.RollbackFailures = append(report.RollbackFailures, RollbackFailureResponse{
			Platform: failure.Platform.String(),
			Handle:   failure.Handle,
			Reason:   failure.Err.Error(),
		})
	}
	return report
}

// ReconcileResponse reports what an inbound reconciliation did
// @Description Outcome of reconciling one spreadsheet row
type ReconcileResponse struct {
	Outcome   string `json:"outcome" example:"SHEET_APPLIED" enums:"IMPORTED,SHEET_APPLIED,APP_APPLIED,AMBIGUOUS"`
	RowNumber int    `json:"row_number" example:"12"`
	ClientID  string `json:"client_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// AuditEntryResponse represents one audit log entry
// @Description A recorded sync lifecycle event
type AuditEntryResponse struct {
	Actor     string         `json:"actor" example:"orchestrator"`
	Action    string         `json:"action" example:"client.create"`
	Level     string         `json:"level" example:"info" enums:"info,warn,error"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp" example:"2026-01-24T12:00:00Z"`
}

func auditEntryResponseFromDomain(entry sync.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		Actor:     entry.Actor,
		Action:    entry.Action,
		Level:     entry.Level,
		Metadata:  entry.Metadata,
		Timestamp: entry.Timestamp.Format(time.RFC3339),
	}
}
