package domain

import (
	"time"

	"github.com/google/uuid"
)

type BulkImportStatus string

const (
	BulkImportStatusIdle      BulkImportStatus = "idle"
	BulkImportStatusReady     BulkImportStatus = "ready"
	BulkImportStatusUploading BulkImportStatus = "uploading"
	BulkImportStatusDone      BulkImportStatus = "done"
	BulkImportStatusError     BulkImportStatus = "error"
)

type ImportRowStatus string

const (
	ImportRowStatusUploaded ImportRowStatus = "uploaded"
	ImportRowStatusFailed   ImportRowStatus = "failed"
)

type ImportProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type ImportRowResult struct {
	Index       int             `json:"index"`
	Filename    string          `json:"filename"`
	DisplayName string          `json:"display_name"`
	Department  string          `json:"department"`
	Status      ImportRowStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

// BulkImportResult is the outcome of one import run. It is never persisted.
type BulkImportResult struct {
	ID            uuid.UUID         `json:"id"`
	KnowledgeBase string            `json:"kb,omitempty"`
	Status        BulkImportStatus  `json:"status"`
	Progress      ImportProgress    `json:"progress"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	Rows          []ImportRowResult `json:"rows"`
	Log           []string          `json:"log"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}
