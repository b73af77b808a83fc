package platforms

import "errors"

// TrackerConfig holds configuration for the project tracker API
type TrackerConfig struct {
	// BaseURL is the tracker API endpoint
	BaseURL string
	// APIToken is the bearer token for API authorization
	APIToken string
	// DatabaseID identifies the tracker collection client items live in
	DatabaseID string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for tracker configuration
var (
	ErrTrackerConfigMissingBaseURL    = errors.New("tracker: base URL is required")
	ErrTrackerConfigMissingToken      = errors.New("tracker: API token is required")
	ErrTrackerConfigMissingDatabaseID = errors.New("tracker: database ID is required")
)

// NewTrackerConfig creates a new tracker configuration with defaults
func NewTrackerConfig(baseURL, apiToken, databaseID string) *TrackerConfig {
	return &TrackerConfig{
		BaseURL:        baseURL,
		APIToken:       apiToken,
		DatabaseID:     databaseID,
		TimeoutSeconds: 30,
	}
}

// Validate validates the tracker configuration
func (c *TrackerConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrTrackerConfigMissingBaseURL
	}
	if c.APIToken == "" {
		return ErrTrackerConfigMissingToken
	}
	if c.DatabaseID == "" {
		return ErrTrackerConfigMissingDatabaseID
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
