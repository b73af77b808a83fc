package platforms

import "errors"

// SheetConfig holds configuration for the spreadsheet ledger API
type SheetConfig struct {
	// BaseURL is the spreadsheet API endpoint
	BaseURL string
	// APIToken is the bearer token for API authorization
	APIToken string
	// SheetID identifies the ledger sheet that holds client rows
	SheetID string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for spreadsheet configuration
var (
	ErrSheetConfigMissingBaseURL = errors.New("sheet: base URL is required")
	ErrSheetConfigMissingToken   = errors.New("sheet: API token is required")
	ErrSheetConfigMissingSheetID = errors.New("sheet: sheet ID is required")
)

// NewSheetConfig creates a new spreadsheet configuration with defaults
func NewSheetConfig(baseURL, apiToken, sheetID string) *SheetConfig {
	return &SheetConfig{
		BaseURL:        baseURL,
		APIToken:       apiToken,
		SheetID:        sheetID,
		TimeoutSeconds: 30,
	}
}

// Validate validates the spreadsheet configuration
func (c *SheetConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrSheetConfigMissingBaseURL
	}
	if c.APIToken == "" {
		return ErrSheetConfigMissingToken
	}
	if c.SheetID == "" {
		return ErrSheetConfigMissingSheetID
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
