package platforms

// trackerResponse is the envelope every tracker API call returns
type trackerResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsSuccess returns true when the API reported success
func (r *trackerResponse) IsSuccess() bool {
	return r.Code == 0
}

// trackerPage is the wire format of one tracker item
type trackerPage struct {
	PageID   string `json:"page_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Archived bool   `json:"archived"`
}

// trackerPageResponse is returned by page create and update calls
type trackerPageResponse struct {
	trackerResponse
	Data *trackerPage `json:"data"`
}

// trackerQueryResponse is returned by the database query call
type trackerQueryResponse struct {
	trackerResponse
	Data *struct {
		Pages []trackerPage `json:"pages"`
	} `json:"data"`
}

// trackerCreateRequest creates a client item in the tracker database
type trackerCreateRequest struct {
	DatabaseID string            `json:"database_id"`
	Title      string            `json:"title"`
	Properties map[string]string `json:"properties,omitempty"`
}

// trackerQueryRequest filters database pages by property values
type trackerQueryRequest struct {
	Filter map[string]string `json:"filter"`
}
