package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *TrackerConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  NewTrackerConfig("https://tracker.test", "token", "db-1"),
			wantErr: nil,
		},
		{
			name:    "missing base URL",
			config:  &TrackerConfig{APIToken: "token", DatabaseID: "db-1"},
			wantErr: ErrTrackerConfigMissingBaseURL,
		},
		{
			name:    "missing token",
			config:  &TrackerConfig{BaseURL: "https://tracker.test", DatabaseID: "db-1"},
			wantErr: ErrTrackerConfigMissingToken,
		},
		{
			name:    "missing database ID",
			config:  &TrackerConfig{BaseURL: "https://tracker.test", APIToken: "token"},
			wantErr: ErrTrackerConfigMissingDatabaseID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTrackerAdapter(t *testing.T, server *httptest.Server) *TrackerAdapter {
	t.Helper()
	adapter, err := NewTrackerAdapter(NewTrackerConfig(server.URL, "test-token", "db-1"))
	require.NoError(t, err)
	return adapter
}

func TestTrackerAdapter_CreateLinkedItem(t *testing.T) {
	t.Run("creates item tagged with client ID", func(t *testing.T) {
		c, err := client.New("Acme Corp")
		require.NoError(t, err)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/pages", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var req trackerCreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "db-1", req.DatabaseID)
			assert.Equal(t, "Acme Corp", req.Title)
			assert.Equal(t, c.ID.String(), req.Properties["client_id"])

			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"page_id": "page-1",
					"url":     "https://tracker.test/page-1",
					"title":   "Acme Corp",
				},
			})
		}))
		defer server.Close()

		item, err := newTrackerAdapter(t, server).CreateLinkedItem(context.Background(), c)

		require.NoError(t, err)
		assert.Equal(t, "page-1", item.PageID)
		assert.Equal(t, "https://tracker.test/page-1", item.URL)
	})

	t.Run("success without page ID is a hard failure", func(t *testing.T) {
		c, err := client.New("Acme Corp")
		require.NoError(t, err)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"code": 0})
		}))
		defer server.Close()

		_, err = newTrackerAdapter(t, server).CreateLinkedItem(context.Background(), c)

		var merr *sync.MissingCorrelationDataError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, sync.PlatformTracker, merr.Platform)
	})
}

func TestTrackerAdapter_ListLinkedItems(t *testing.T) {
	t.Run("filters archived items", func(t *testing.T) {
		c, err := client.New("Acme Corp")
		require.NoError(t, err)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/databases/db-1/query", r.URL.Path)

			var req trackerQueryRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, c.ID.String(), req.Filter["client_id"])

			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"pages": []map[string]any{
						{"page_id": "page-1", "title": "Acme Corp"},
						{"page_id": "page-2", "title": "Acme Corp", "archived": true},
						{"page_id": "page-3", "title": "Acme Corp"},
					},
				},
			})
		}))
		defer server.Close()

		items, err := newTrackerAdapter(t, server).ListLinkedItems(context.Background(), c.ID)

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "page-1", items[0].PageID)
		assert.Equal(t, "page-3", items[1].PageID)
	})

	t.Run("no pages yields empty slice", func(t *testing.T) {
		c, err := client.New("Acme Corp")
		require.NoError(t, err)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"code": 0})
		}))
		defer server.Close()

		items, err := newTrackerAdapter(t, server).ListLinkedItems(context.Background(), c.ID)

		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestTrackerAdapter_Rename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/pages/page-1", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Acme Corporation", payload["title"])

		json.NewEncoder(w).Encode(map[string]any{"code": 0})
	}))
	defer server.Close()

	err := newTrackerAdapter(t, server).Rename(context.Background(), "page-1", "Acme Corporation")
	assert.NoError(t, err)
}

func TestTrackerAdapter_Archive(t *testing.T) {
	t.Run("sets archived flag", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, true, payload["archived"])

			json.NewEncoder(w).Encode(map[string]any{"code": 0})
		}))
		defer server.Close()

		err := newTrackerAdapter(t, server).Archive(context.Background(), "page-1")
		assert.NoError(t, err)
	})

	t.Run("API failure surfaces", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := newTrackerAdapter(t, server).Archive(context.Background(), "page-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 502")
	})
}
