package domain

import "io"

// UploadRequest is one document upload, from the HTTP form or from a bulk
// import row.
type UploadRequest struct {
	File          io.Reader
	FileName      string
	Size          int64
	ContentType   string
	Title         string
	Department    string
	DocNo         string
	DateIssued    string
	ReviewMeeting string
	VersionCode   string
	KnowledgeBase string
	SyncToRAG     bool
	Chunking      *ChunkingOptions
}

type UploadResult struct {
	Message  string           `json:"message"`
	Document *Document        `json:"doc"`
	Version  *DocumentVersion `json:"version"`
	Rag      *RagSyncResult   `json:"ragflow"`
}

// RagSynced reports whether the upload either skipped RAG sync or completed it.
func (r *UploadResult) RagSynced() bool {
	return r.Rag == nil || r.Rag.Success
}
