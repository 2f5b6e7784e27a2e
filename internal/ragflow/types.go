package ragflow

import (
	"encoding/json"
	"fmt"
)

// APIError is returned for non-2xx responses and for envelopes whose code is
// not zero.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ragflow: status %d, code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ragflow: status %d: %s", e.Status, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ChunkMethod   string `json:"chunk_method"`
	DocumentCount int    `json:"document_count"`
}

type DatasetQuery struct {
	ID       string
	Name     string
	Page     int
	PageSize int
}

// Document is a file inside a dataset. Run carries the parse state
// (UNSTART, RUNNING, CANCEL, DONE, FAIL); Status is "1" when the document is
// enabled for retrieval.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	DatasetID   string `json:"dataset_id"`
	Run         string `json:"run"`
	Status      string `json:"status"`
	ChunkCount  int    `json:"chunk_count"`
	ChunkMethod string `json:"chunk_method"`
	Size        int64  `json:"size"`
	UpdateTime  *int64 `json:"update_time"`
	CreateTime  *int64 `json:"create_time"`
}

// Enabled is nil when the backend did not report a status.
func (d Document) Enabled() *bool {
	if d.Status == "" {
		return nil
	}
	on := d.Status == "1"
	return &on
}

// UpdatedAt falls back to the creation time.
func (d Document) UpdatedAt() *int64 {
	if d.UpdateTime != nil {
		return d.UpdateTime
	}
	return d.CreateTime
}

// MatchesName reports an exact match on either name field.
func (d Document) MatchesName(name string) bool {
	return d.Name == name || (d.DisplayName != "" && d.DisplayName == name)
}

type DocumentQuery struct {
	Keywords string
	Page     int
	PageSize int
}

type DocumentList struct {
	Docs  []Document `json:"docs"`
	Total int        `json:"total"`
}
