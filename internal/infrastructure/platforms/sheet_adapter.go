package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/shared"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/shopspring/decimal"
)

// maxResponseSize limits response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// SheetAdapter implements sync.SpreadsheetLedger against the spreadsheet
// HTTP API. Row deletion clears the row contents rather than removing it,
// so row numbers held by other clients stay stable.
type SheetAdapter struct {
	config     *SheetConfig
	httpClient *http.Client
}

// NewSheetAdapter creates a new spreadsheet adapter with the given configuration
func NewSheetAdapter(config *SheetConfig) (*SheetAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SheetAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Append appends a client as a new row and returns the assigned row number
func (a *SheetAdapter) Append(ctx context.Context, c *client.Client) (int, error) {
	path := fmt.Sprintf("/v1/sheets/%s/rows", a.config.SheetID)
	respBody, err := a.doRequest(ctx, http.MethodPost, path, rowPayloadFromClient(c))
	if err != nil {
		return 0, err
	}

	var resp sheetAppendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("sheet: failed to parse response: %w", err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("sheet: %d - %s", resp.Code, resp.Message)
	}
	if resp.Data == nil {
		return 0, nil
	}
	return resp.Data.RowNumber, nil
}

// Update overwrites an existing row with the client's current values
func (a *SheetAdapter) Update(ctx context.Context, row int, c *client.Client) error {
	path := fmt.Sprintf("/v1/sheets/%s/rows/%d", a.config.SheetID, row)
	respBody, err := a.doRequest(ctx, http.MethodPut, path, rowPayloadFromClient(c))
	if err != nil {
		return err
	}
	return parseEnvelope(respBody)
}

// SetTrackerLink writes the tracker item URL into the row's link column
func (a *SheetAdapter) SetTrackerLink(ctx context.Context, row int, url string) error {
	path := fmt.Sprintf("/v1/sheets/%s/rows/%d/tracker-link", a.config.SheetID, row)
	respBody, err := a.doRequest(ctx, http.MethodPut, path, map[string]any{"url": url})
	if err != nil {
		return err
	}
	return parseEnvelope(respBody)
}

// Delete clears the row contents, keeping the row numbering stable
func (a *SheetAdapter) Delete(ctx context.Context, row int) error {
	path := fmt.Sprintf("/v1/sheets/%s/rows/%d", a.config.SheetID, row)
	respBody, err := a.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return parseEnvelope(respBody)
}

// Read fetches a row and converts it into a detached client aggregate. The
// result carries the sheet-side values only; correlation handles beyond the
// row itself are resolved by the caller.
func (a *SheetAdapter) Read(ctx context.Context, row int) (*client.Client, error) {
	path := fmt.Sprintf("/v1/sheets/%s/rows/%d", a.config.SheetID, row)
	respBody, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp sheetReadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("sheet: failed to parse response: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("sheet: %d - %s", resp.Code, resp.Message)
	}
	if resp.Data == nil || resp.Data.Row.Name == "" {
		return nil, sync.ErrRowNotFound
	}

	return clientFromRowPayload(&resp.Data.Row)
}

// doRequest performs an HTTP request to the spreadsheet API
func (a *SheetAdapter) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("sheet: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("sheet: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.config.APIToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("sheet: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, sync.ErrRowNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sheet: HTTP %d", resp.StatusCode)
	}
	return respBody, nil
}

func parseEnvelope(respBody []byte) error {
	var resp sheetResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("sheet: failed to parse response: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("sheet: %d - %s", resp.Code, resp.Message)
	}
	return nil
}

func rowPayloadFromClient(c *client.Client) *sheetRowPayload {
	return &sheetRowPayload{
		Name:          c.Name,
		ContactName:   c.ContactName,
		Phone:         c.Phone,
		Email:         c.Email,
		Status:        string(c.Status),
		Notes:         c.Notes,
		LifetimeValue: c.LifetimeValue.String(),
		TrackerURL:    c.TrackerURL,
		UpdatedAt:     c.UpdatedAt.Unix(),
	}
}

func clientFromRowPayload(row *sheetRowPayload) (*client.Client, error) {
	c := &client.Client{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              row.Name,
		ContactName:       row.ContactName,
		Phone:             row.Phone,
		Email:             row.Email,
		Status:            client.Status(row.Status),
		Notes:             row.Notes,
		LifetimeValue:     decimal.Zero,
		LastSyncedAt:      row.editedAt(),
	}
	if !c.Status.IsValid() {
		c.Status = client.StatusLead
	}
	if row.LifetimeValue != "" {
		value, err := decimal.NewFromString(row.LifetimeValue)
		if err != nil {
			return nil, fmt.Errorf("sheet: invalid lifetime value %q: %w", row.LifetimeValue, err)
		}
		c.LifetimeValue = value
	}
	return c, nil
}

// Ensure SheetAdapter implements the spreadsheet port
var _ sync.SpreadsheetLedger = (*SheetAdapter)(nil)
