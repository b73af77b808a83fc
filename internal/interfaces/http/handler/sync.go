package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	syncapp "github.com/clientsync/backend/internal/application/sync"
	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/clientsync/backend/internal/infrastructure/cache"
	"github.com/clientsync/backend/internal/infrastructure/persistence"
	"github.com/clientsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditLister reads back recorded sync audit entries
type AuditLister interface {
	List(ctx context.Context, filter persistence.AuditFilter) ([]sync.AuditEntry, error)
}

// SyncHandler handles multi-platform sync API endpoints
type SyncHandler struct {
	BaseHandler
	orchestrator *syncapp.Orchestrator
	reconciler   *syncapp.Reconciler
	store        sync.PrimaryStore
	locker       cache.ClientLocker
	audit        AuditLister
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	orchestrator *syncapp.Orchestrator,
	reconciler *syncapp.Reconciler,
	store sync.PrimaryStore,
	locker cache.ClientLocker,
	audit AuditLister,
) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		reconciler:   reconciler,
		store:        store,
		locker:       locker,
		audit:        audit,
	}
}

// CreateClientRequest represents a request to create and replicate a client
// @Description Request body for creating a client across all platforms
type CreateClientRequest struct {
	Name          string   `json:"name" binding:"required,min=1,max=200" example:"Acme Corp"`
	ContactName   string   `json:"contact_name" binding:"max=100" example:"John Doe"`
	Phone         string   `json:"phone" binding:"max=50" example:"13800138000"`
	Email         string   `json:"email" binding:"omitempty,email,max=200" example:"contact@acme.com"`
	Notes         string   `json:"notes" example:"Met at trade fair"`
	LifetimeValue *float64 `json:"lifetime_value" binding:"omitempty,gte=0" example:"1200.50"`
}

// UpdateClientRequest represents a request to update a replicated client
// @Description Request body for updating a client across all platforms
type UpdateClientRequest struct {
	Name          *string  `json:"name" binding:"omitempty,min=1,max=200" example:"Acme Corporation"`
	ContactName   *string  `json:"contact_name" binding:"omitempty,max=100" example:"Jane Doe"`
	Phone         *string  `json:"phone" binding:"omitempty,max=50" example:"13900139000"`
	Email         *string  `json:"email" binding:"omitempty,email,max=200" example:"info@acme.com"`
	Status        *string  `json:"status" binding:"omitempty,oneof=lead active inactive archived" example:"active"`
	Notes         *string  `json:"notes" example:"Moved to onboarding"`
	LifetimeValue *float64 `json:"lifetime_value" binding:"omitempty,gte=0" example:"2400.00"`
}

// ListAuditRequest represents audit log query parameters
type ListAuditRequest struct {
	Action string `form:"action"`
	Level  string `form:"level" binding:"omitempty,oneof=info warn error"`
	Since  string `form:"since"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// Create godoc
// @ID           createClient
// @Summary      Create a client on every platform
// @Description  Runs the create saga: primary store, spreadsheet row, tracker item, backlinks. A failed step rolls back every prior step.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body CreateClientRequest true "Client creation request"
// @Success      201 {object} dto.Response{data=SyncReportResponse}
// @Failure      400 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /sync/clients [post]
func (h *SyncHandler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input := syncapp.CreateClientInput{
		Name:        req.Name,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Notes:       req.Notes,
	}
	if req.LifetimeValue != nil {
		input.LifetimeValue = toDecimalPtr(*req.LifetimeValue)
	}

	result := h.orchestrator.CreateClient(c.Request.Context(), input)
	if !result.Success {
		h.syncFailure(c, result)
		return
	}
	h.Created(c, syncReportFromResult(result.Client, result))
}

// Update godoc
// @ID           updateClient
// @Summary      Update a client on every platform
// @Description  Replicates field changes to the primary store, the spreadsheet row and any linked tracker items. Holds a per-client lock for the duration of the run.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Param        request body UpdateClientRequest true "Client update request"
// @Success      200 {object} dto.Response{data=SyncReportResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /sync/clients/{id} [put]
func (h *SyncHandler) Update(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	release, err := h.locker.Acquire(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, cache.ErrClientBusy) {
			h.ErrorWithCode(c, dto.ErrCodeClientBusy, "Another sync operation is running for this client")
			return
		}
		h.InternalError(c, "Failed to acquire client lock")
		return
	}
	defer release()

	current, err := h.store.FindByID(c.Request.Context(), clientID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	before := current.Clone()
	if err := applyClientUpdate(current, req); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	result := h.orchestrator.UpdateClient(c.Request.Context(), before, current)
	if !result.Success {
		h.syncFailure(c, result)
		return
	}
	h.Success(c, syncReportFromResult(result.Client, result))
}

// Reconcile godoc
// @ID           reconcileRow
// @Summary      Reconcile an edited spreadsheet row
// @Description  Pulls one spreadsheet row and resolves it against the primary store: imports unknown rows, otherwise the most recently edited side wins. Edits too close together are flagged ambiguous and left untouched.
// @Tags         sync
// @Produce      json
// @Param        row path int true "Spreadsheet row number"
// @Success      200 {object} dto.Response{data=ReconcileResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /sync/reconcile/rows/{row} [post]
func (h *SyncHandler) Reconcile(c *gin.Context) {
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil || row <= 0 {
		h.BadRequest(c, "Row number must be a positive integer")
		return
	}

	result, err := h.reconciler.ReconcileInbound(c.Request.Context(), row)
	if err != nil {
		var ambiguous *sync.ConflictAmbiguousError
		if errors.As(err, &ambiguous) {
			resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeSyncAmbiguous, err.Error(), getRequestID(c))
			resp.Data = reconcileResponseFromResult(result)
			c.JSON(http.StatusConflict, resp)
			return
		}
		if errors.Is(err, sync.ErrRowNotFound) {
			h.ErrorWithCode(c, dto.ErrCodeRowNotFound, "Spreadsheet row not found")
			return
		}
		var writeErr *sync.AdapterWriteError
		if errors.As(err, &writeErr) {
			h.ErrorWithCode(c, dto.ErrCodeUpstream, err.Error())
			return
		}
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, reconcileResponseFromResult(result))
}

// ListAudit godoc
// @ID           listAuditEntries
// @Summary      List sync audit entries
// @Description  Returns recorded sync lifecycle events, most recent first
// @Tags         sync
// @Produce      json
// @Param        action query string false "Filter by action, e.g. client.create"
// @Param        level query string false "Filter by level" Enums(info, warn, error)
// @Param        since query string false "Only entries after this RFC3339 timestamp"
// @Param        limit query int false "Maximum entries to return (default 100, max 500)"
// @Success      200 {object} dto.Response{data=[]AuditEntryResponse}
// @Failure      400 {object} dto.Response
// @Router       /sync/audit [get]
func (h *SyncHandler) ListAudit(c *gin.Context) {
	var req ListAuditRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := persistence.AuditFilter{
		Action: req.Action,
		Level:  req.Level,
		Limit:  req.Limit,
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			h.BadRequest(c, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}

	entries, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, auditEntryResponseFromDomain(entry))
	}
	h.Success(c, responses)
}

// syncFailure maps a failed saga run to an HTTP response. The saga report
// rides along in the data field so callers can see what was rolled back and
// what needs manual cleanup.
func (h *SyncHandler) syncFailure(c *gin.Context, result *sync.SyncResult) {
	var validationErr *sync.AggregateValidationError
	if errors.As(result.Err, &validationErr) {
		details := make([]dto.ValidationDetail, 0, len(validationErr.Errors))
		for _, verr := range validationErr.Errors {
			details = append(details, dto.ValidationDetail{Field: verr.Field, Reason: verr.Reason})
		}
		h.ValidationError(c, details)
		return
	}

	code := dto.ErrCodeInternal
	var writeErr *sync.AdapterWriteError
	if errors.As(result.Err, &writeErr) {
		code = dto.ErrCodeUpstream
	}
	// A domain error underneath the adapter failure is more specific than
	// a generic upstream error: a duplicate email maps to 409, not 502.
	var domainErr *shared.DomainError
	if errors.As(result.Err, &domainErr) {
		code = dto.NormalizeErrorCode(domainErr.Code)
	}

	resp := dto.NewErrorResponseWithRequestID(code, result.Err.Error(), getRequestID(c))
	resp.Data = syncReportFromResult(nil, result)
	c.JSON(dto.GetHTTPStatus(code), resp)
}

func reconcileResponseFromResult(result *syncapp.ReconcileResult) ReconcileResponse {
	if result == nil {
		return ReconcileResponse{}
	}
	return ReconcileResponse{
		Outcome:   string(result.Outcome),
		RowNumber: result.RowNumber,
		ClientID:  result.ClientID,
	}
}

// applyClientUpdate folds the sparse request onto the aggregate through its
// own invariant-checking setters.
func applyClientUpdate(c *client.Client, req UpdateClientRequest) error {
	if req.Name != nil {
		if err := c.Rename(*req.Name); err != nil {
			return err
		}
	}
	if req.ContactName != nil || req.Phone != nil || req.Email != nil {
		contactName, phone, email := c.ContactName, c.Phone, c.Email
		if req.ContactName != nil {
			contactName = *req.ContactName
		}
		if req.Phone != nil {
			phone = *req.Phone
		}
		if req.Email != nil {
			email = *req.Email
		}
		if err := c.SetContact(contactName, phone, email); err != nil {
			return err
		}
	}
	if req.Status != nil {
		if err := c.SetStatus(client.Status(*req.Status)); err != nil {
			return err
		}
	}
	if req.Notes != nil {
		c.SetNotes(*req.Notes)
	}
	if req.LifetimeValue != nil {
		if err := c.SetLifetimeValue(decimal.NewFromFloat(*req.LifetimeValue)); err != nil {
			return err
		}
	}
	return nil
}
