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
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/google/uuid"
)

// TrackerAdapter implements sync.ProjectTracker against the project tracker
// HTTP API. The tracker has no permanent delete; Archive is the strongest
// removal it offers.
type TrackerAdapter struct {
	config     *TrackerConfig
	httpClient *http.Client
}

// NewTrackerAdapter creates a new tracker adapter with the given configuration
func NewTrackerAdapter(config *TrackerConfig) (*TrackerAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TrackerAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// CreateLinkedItem creates a workflow item titled after the client and tagged
// with the client's ID for later lookup
func (a *TrackerAdapter) CreateLinkedItem(ctx context.Context, c *client.Client) (*sync.TrackerItem, error) {
	body := trackerCreateRequest{
		DatabaseID: a.config.DatabaseID,
		Title:      c.Name,
		Properties: map[string]string{
			"client_id": c.ID.String(),
			"status":    string(c.Status),
		},
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/v1/pages", body)
	if err != nil {
		return nil, err
	}

	var resp trackerPageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("tracker: failed to parse response: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("tracker: %d - %s", resp.Code, resp.Message)
	}
	if resp.Data == nil || resp.Data.PageID == "" {
		return nil, &sync.MissingCorrelationDataError{Platform: sync.PlatformTracker, Field: "page ID"}
	}

	return &sync.TrackerItem{
		PageID: resp.Data.PageID,
		URL:    resp.Data.URL,
		Title:  resp.Data.Title,
	}, nil
}

// ListLinkedItems returns every non-archived item tagged with the client's ID
func (a *TrackerAdapter) ListLinkedItems(ctx context.Context, clientID uuid.UUID) ([]sync.TrackerItem, error) {
	path := fmt.Sprintf("/v1/databases/%s/query", a.config.DatabaseID)
	body := trackerQueryRequest{Filter: map[string]string{"client_id": clientID.String()}}

	respBody, err := a.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var resp trackerQueryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("tracker: failed to parse response: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("tracker: %d - %s", resp.Code, resp.Message)
	}

	items := make([]sync.TrackerItem, 0)
	if resp.Data == nil {
		return items, nil
	}
	for _, page := range resp.Data.Pages {
		if page.Archived {
			continue
		}
		items = append(items, sync.TrackerItem{
			PageID: page.PageID,
			URL:    page.URL,
			Title:  page.Title,
		})
	}
	return items, nil
}

// Rename changes an item's title
func (a *TrackerAdapter) Rename(ctx context.Context, pageID, title string) error {
	path := fmt.Sprintf("/v1/pages/%s", pageID)
	respBody, err := a.doRequest(ctx, http.MethodPatch, path, map[string]any{"title": title})
	if err != nil {
		return err
	}
	return a.parseEnvelope(respBody)
}

// Archive moves an item out of active views. Archived items remain
// recoverable in the tracker.
func (a *TrackerAdapter) Archive(ctx context.Context, pageID string) error {
	path := fmt.Sprintf("/v1/pages/%s", pageID)
	respBody, err := a.doRequest(ctx, http.MethodPatch, path, map[string]any{"archived": true})
	if err != nil {
		return err
	}
	return a.parseEnvelope(respBody)
}

// doRequest performs an HTTP request to the tracker API
func (a *TrackerAdapter) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("tracker: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("tracker: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.config.APIToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tracker: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("tracker: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tracker: HTTP %d", resp.StatusCode)
	}
	return respBody, nil
}

func (a *TrackerAdapter) parseEnvelope(respBody []byte) error {
	var resp trackerResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("tracker: failed to parse response: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("tracker: %d - %s", resp.Code, resp.Message)
	}
	return nil
}

// Ensure TrackerAdapter implements the tracker port
var _ sync.ProjectTracker = (*TrackerAdapter)(nil)
