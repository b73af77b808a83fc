package platforms

import "time"

// sheetResponse is the envelope every spreadsheet API call returns
type sheetResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsSuccess returns true when the API reported success
func (r *sheetResponse) IsSuccess() bool {
	return r.Code == 0
}

// sheetRowPayload is the wire format of one ledger row
type sheetRowPayload struct {
	Name          string `json:"name"`
	ContactName   string `json:"contact_name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	LifetimeValue string `json:"lifetime_value"`
	TrackerURL    string `json:"tracker_url,omitempty"`
	UpdatedAt     int64  `json:"updated_at"` // Unix seconds of the last edit
}

// sheetAppendResponse is returned by the row append call
type sheetAppendResponse struct {
	sheetResponse
	Data *struct {
		RowNumber int `json:"row_number"`
	} `json:"data"`
}

// sheetReadResponse is returned by the row read call
type sheetReadResponse struct {
	sheetResponse
	Data *struct {
		Row sheetRowPayload `json:"row"`
	} `json:"data"`
}

// editedAt converts the wire timestamp to time.Time
func (p *sheetRowPayload) editedAt() time.Time {
	if p.UpdatedAt <= 0 {
		return time.Time{}
	}
	return time.Unix(p.UpdatedAt, 0)
}
