package domain

// Normalised RAG document states. The backend's own run states are mapped onto
// these by the RAG service.
const (
	RagStatusPending   = "PENDING"
	RagStatusSuccess   = "SUCCESS"
	RagStatusError     = "ERROR"
	RagStatusUnknown   = "UNKNOWN"
	RagStatusNotFound  = "NOT_FOUND"
	RagStatusNoFile    = "NO_FILE"
	RagStatusNotSynced = "NOT_SYNCED"
)

type KnowledgeBase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ChunkMethod string `json:"chunk_method,omitempty"`
}

type RagStatus struct {
	Found       bool    `json:"found"`
	Status      string  `json:"status"`
	Chunks      int     `json:"chunks"`
	Enabled     *bool   `json:"enabled,omitempty"`
	UpdatedAt   *int64  `json:"updated_at,omitempty"`
	DocID       string  `json:"doc_id,omitempty"`
	URL         *string `json:"url"`
	Dataset     string  `json:"dataset,omitempty"`
	ChunkMethod string  `json:"chunk_method,omitempty"`
}

type RagDocument struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Status      string  `json:"status"`
	Chunks      int     `json:"chunks"`
	Enabled     *bool   `json:"enabled"`
	UpdatedAt   *int64  `json:"updated_at"`
	URL         *string `json:"url"`
	Dataset     string  `json:"dataset"`
	ChunkMethod string  `json:"chunk_method,omitempty"`
}

type RagMatch struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type RagDeleteResult struct {
	Matches    []RagMatch `json:"matches"`
	DeletedIDs []string   `json:"deleted_ids"`
	Dataset    string     `json:"dataset"`
}

type RagWarning struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// RagSyncResult describes the outcome of pushing one file into the RAG index.
// Success is false only when the upload itself failed; a failed parse trigger
// is reported through Warning.
type RagSyncResult struct {
	Success     bool     `json:"success"`
	DisplayName string   `json:"display_name,omitempty"`
	Dataset     string   `json:"dataset,omitempty"`
	ParsedIDs   []string `json:"parsed_ids,omitempty"`
	Error       string   `json:"error,omitempty"`
	Warning     string   `json:"warn,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// ChunkingOptions are passed through to the RAG backend's segmenter.
type ChunkingOptions struct {
	Method       string `json:"method,omitempty"`
	Size         *int   `json:"size,omitempty"`
	Overlap      *int   `json:"overlap,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	HeadingRegex string `json:"heading_regex,omitempty"`
}

func (o *ChunkingOptions) IsEmpty() bool {
	return o == nil || (o.Method == "" && o.Size == nil && o.Overlap == nil && o.Pattern == "" && o.HeadingRegex == "")
}

type ChunkingUpdate struct {
	Method       string         `json:"chunking_method"`
	ParserConfig map[string]any `json:"parser_config,omitempty"`
	Reparse      bool           `json:"reparse"`
}

type ChunkingResult struct {
	DocID       string `json:"doc_id,omitempty"`
	Dataset     string `json:"dataset"`
	ChunkMethod string `json:"chunk_method"`
	Reparsed    bool   `json:"reparsed"`
}
