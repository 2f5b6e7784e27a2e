package domain

import (
	"path"
	"time"
)

type Document struct {
	ID            int64      `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Department    string     `db:"department" json:"department"`
	DocNo         *string    `db:"doc_no" json:"doc_no"`
	DateIssued    *time.Time `db:"date_issued" json:"date_issued"`
	ReviewMeeting *string    `db:"review_meeting" json:"review_meeting"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type DocumentVersion struct {
	ID          int64      `db:"id" json:"id"`
	DocID       int64      `db:"doc_id" json:"doc_id"`
	VersionCode string     `db:"version_code" json:"version_code"`
	DateIssued  *time.Time `db:"date_issued" json:"date_issued"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	FileKey     *string    `db:"file_key" json:"file_path"`
	FileName    *string    `db:"file_name" json:"filename"`
	RagDocID    *string    `db:"rag_doc_id" json:"rag_doc_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Ext returns the stored file's extension including the dot, or "" when the
// version has no file.
func (v *DocumentVersion) Ext() string {
	if v == nil || v.FileName == nil {
		return ""
	}
	return path.Ext(*v.FileName)
}

type DocumentListItem struct {
	Doc    Document         `json:"doc"`
	Latest *DocumentVersion `json:"latest"`
}

type DocumentFilter struct {
	Department string
	Query      string
	Limit      int
	Offset     int
}

type DocumentPage struct {
	Items  []DocumentListItem `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type UploadLog struct {
	ID          int64     `db:"id" json:"id"`
	KB          *string   `db:"kb" json:"kb"`
	DocNo       *string   `db:"doc_no" json:"doc_no"`
	Title       string    `db:"title" json:"title"`
	DisplayName *string   `db:"display_name" json:"display_name"`
	RagDocID    *string   `db:"rag_doc_id" json:"rag_doc_id"`
	RagStatus   string    `db:"rag_status" json:"rag_status"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}

type RecentUpload struct {
	UploadLog
	RagURL *string `json:"rag_url"`
}

type StoredFile struct {
	Name       string    `json:"name"`
	Key        string    `json:"rel_path"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human"`
	ModifiedAt time.Time `json:"mtime"`
	URL        string    `json:"url"`
}
