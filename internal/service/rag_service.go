package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/ragflow"
)

var (
	ErrRagDisabled           = errors.New("ragflow integration is not configured")
	ErrRagDocumentNotFound   = errors.New("document not found in ragflow")
	ErrChunkMethodRequired   = errors.New("chunking method is required")
	ErrInvalidKnowledgeBase  = errors.New("knowledge base must be given by name, not id")
	ErrDisplayNameRequired   = errors.New("display name is required")
	ErrRagDocumentIDRequired = errors.New("ragflow document id is required")
)

const (
	defaultDatasetChunkMethod = "laws"
	datasetIDMinLength        = 31
	defaultRagListLimit       = 500
	defaultKnowledgeBaseLimit = 200
)

// RagBackend is the subset of the RAGFlow API the service relies on.
type RagBackend interface {
	ListDatasets(ctx context.Context, q ragflow.DatasetQuery) ([]ragflow.Dataset, error)
	CreateDataset(ctx context.Context, name, description, chunkMethod string) (*ragflow.Dataset, error)
	UpdateDataset(ctx context.Context, datasetID string, fields map[string]any) error
	UploadDocument(ctx context.Context, datasetID, name string, r io.Reader) ([]ragflow.Document, error)
	ListDocuments(ctx context.Context, datasetID string, q ragflow.DocumentQuery) (*ragflow.DocumentList, error)
	UpdateDocument(ctx context.Context, datasetID, documentID string, fields map[string]any) error
	ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	Version(ctx context.Context) (string, error)
}

type RagServiceConfig struct {
	DefaultDataset string
	UIBase         string
}

// RagService wraps RAGFlow with dataset resolution, status normalisation and
// name based document lookup. A service built without a backend reports
// ErrRagDisabled from every call.
type RagService struct {
	client         RagBackend
	defaultDataset string
	uiBase         string
}

func NewRagService(client RagBackend, cfg RagServiceConfig) *RagService {
	def := strings.TrimSpace(cfg.DefaultDataset)
	if def == "" {
		def = "Regulation"
	}
	return &RagService{
		client:         client,
		defaultDataset: def,
		uiBase:         strings.TrimRight(cfg.UIBase, "/"),
	}
}

func (s *RagService) Enabled() bool {
	return s != nil && s.client != nil
}

var chunkMethodAliases = map[string]string{
	"general":      "naive",
	"naive":        "naive",
	"q&a":          "qa",
	"qa":           "qa",
	"resume":       "resume",
	"manual":       "manual",
	"paper":        "paper",
	"book":         "book",
	"laws":         "laws",
	"presentation": "presentation",
	"ppt":          "presentation",
	"table":        "table",
	"one":          "one",
	"single":       "one",
	"picture":      "picture",
	"image":        "picture",
	"pic":          "picture",
	"email":        "email",
	"mail":         "email",
	"tag":          "tag",
}

// NormalizeChunkMethod maps a user facing chunking label onto the backend's
// method name. Unknown labels pass through lower-cased.
func NormalizeChunkMethod(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return ""
	}
	if m, ok := chunkMethodAliases[key]; ok {
		return m
	}
	return key
}

// MapRunStatus folds the backend's parse run states onto the normalised set.
func MapRunStatus(run string) string {
	r := strings.ToUpper(strings.TrimSpace(run))
	switch r {
	case "UNSTART", "RUNNING":
		return domain.RagStatusPending
	case "DONE":
		return domain.RagStatusSuccess
	case "FAIL", "CANCEL":
		return domain.RagStatusError
	case "":
		return domain.RagStatusUnknown
	default:
		return r
	}
}

// RagDisplayName is the name a document carries inside the RAG index:
// "<department>-<title><ext>", without the department when it is empty or
// "unknown", and without repeating an extension the title already ends with.
func RagDisplayName(department, title, ext string) string {
	base := strings.TrimSpace(title)
	dep := strings.TrimSpace(department)
	if dep != "" && !strings.EqualFold(dep, "unknown") {
		base = dep + "-" + base
	}
	if ext == "" || strings.HasSuffix(strings.ToLower(base), strings.ToLower(ext)) {
		return base
	}
	return base + ext
}

// resolveDatasetName turns a knowledge-base parameter into a dataset name.
// Short values are names; long values are taken to be dataset ids and mapped
// back to their name, falling back to the default dataset.
func (s *RagService) resolveDatasetName(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return s.defaultDataset
	}
	if len(input) < datasetIDMinLength {
		return input
	}
	datasets, err := s.client.ListDatasets(ctx, ragflow.DatasetQuery{ID: input})
	if err != nil {
		log.Printf("[ragflow] resolve dataset id %s: %v", input, err)
		return s.defaultDataset
	}
	for _, ds := range datasets {
		if ds.ID == input && ds.Name != "" {
			return ds.Name
		}
	}
	log.Printf("[ragflow] cannot resolve dataset id %s, using %s", input, s.defaultDataset)
	return s.defaultDataset
}

// dataset resolves kb and returns the matching dataset, creating it when it
// does not exist.
func (s *RagService) dataset(ctx context.Context, kb string) (*ragflow.Dataset, error) {
	if !s.Enabled() {
		return nil, ErrRagDisabled
	}
	name := s.resolveDatasetName(ctx, kb)
	hits, err := s.client.ListDatasets(ctx, ragflow.DatasetQuery{Name: name})
	if err != nil && !isStatus(err, http.StatusNotFound) && !isLackOfPermission(err) {
		return nil, err
	}
	for i := range hits {
		if hits[i].Name == name {
			return &hits[i], nil
		}
	}
	ds, err := s.client.CreateDataset(ctx, name, "Regulations dataset", defaultDatasetChunkMethod)
	if err != nil {
		return nil, fmt.Errorf("create dataset %s: %w", name, err)
	}
	return ds, nil
}

func (s *RagService) documentURL(datasetID, docID string) *string {
	if docID == "" || s.uiBase == "" {
		return nil
	}
	u := fmt.Sprintf("%s/#/datasets/%s/documents/%s", s.uiBase, datasetID, docID)
	return &u
}

func (s *RagService) listDocuments(ctx context.Context, ds *ragflow.Dataset, keywords string, limit int) ([]ragflow.Document, error) {
	list, err := s.client.ListDocuments(ctx, ds.ID, ragflow.DocumentQuery{Keywords: keywords, Page: 1, PageSize: limit})
	if err != nil {
		return nil, err
	}
	return list.Docs, nil
}

// findDocument returns the document whose name equals name exactly, else the
// first keyword hit, else nil.
func (s *RagService) findDocument(ctx context.Context, ds *ragflow.Dataset, name string) (*ragflow.Document, error) {
	docs, err := s.listDocuments(ctx, ds, name, defaultRagListLimit)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].MatchesName(name) {
			return &docs[i], nil
		}
	}
	if len(docs) > 0 {
		return &docs[0], nil
	}
	return nil, nil
}

func (s *RagService) exactMatches(ctx context.Context, ds *ragflow.Dataset, name string) ([]domain.RagMatch, error) {
	docs, err := s.listDocuments(ctx, ds, name, defaultRagListLimit)
	if err != nil {
		return nil, err
	}
	matches := []domain.RagMatch{}
	for _, d := range docs {
		if d.ID != "" && d.MatchesName(name) {
			matches = append(matches, domain.RagMatch{ID: d.ID, Name: d.Name, DisplayName: displayNameOf(d)})
		}
	}
	return matches, nil
}

// Upload pushes one file into the dataset under displayName and queues it for
// parsing. Failures are reported in the result rather than as an error.
func (s *RagService) Upload(ctx context.Context, kb, displayName string, r io.Reader, chunking *domain.ChunkingOptions) *domain.RagSyncResult {
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return &domain.RagSyncResult{Success: false, DisplayName: displayName, Error: "dataset_unavailable: " + err.Error()}
	}
	result := &domain.RagSyncResult{DisplayName: displayName, Dataset: ds.Name}

	uploaded, err := s.client.UploadDocument(ctx, ds.ID, displayName, r)
	if err != nil {
		result.Error = "upload_failed: " + err.Error()
		return result
	}
	result.Success = true

	ids := documentIDs(uploaded)
	if len(ids) == 0 {
		matches, err := s.exactMatches(ctx, ds, displayName)
		if err != nil {
			result.Warning = "parse_trigger_failed: " + err.Error()
			return result
		}
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		result.Note = "uploaded, listing not ready yet"
		return result
	}

	if fields := chunkingFields(chunking); fields != nil {
		for _, id := range ids {
			if err := s.client.UpdateDocument(ctx, ds.ID, id, fields); err != nil {
				log.Printf("[ragflow] set chunking on %s: %v", id, err)
			}
		}
	}

	if err := s.client.ParseDocuments(ctx, ds.ID, ids); err != nil {
		result.Warning = "parse_trigger_failed: " + err.Error()
		return result
	}
	result.ParsedIDs = ids
	return result
}

// Status reports the live state of the document called displayName.
func (s *RagService) Status(ctx context.Context, kb, displayName string) (*domain.RagStatus, error) {
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	doc, err := s.findDocument(ctx, ds, displayName)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return &domain.RagStatus{Found: false, Status: domain.RagStatusNotFound, Dataset: ds.Name}, nil
	}
	return &domain.RagStatus{
		Found:       true,
		Status:      MapRunStatus(doc.Run),
		Chunks:      doc.ChunkCount,
		Enabled:     doc.Enabled(),
		UpdatedAt:   doc.UpdatedAt(),
		DocID:       doc.ID,
		URL:         s.documentURL(ds.ID, doc.ID),
		Dataset:     ds.Name,
		ChunkMethod: doc.ChunkMethod,
	}, nil
}

// ListDocuments lists the documents of a dataset, optionally filtered by
// keyword. kb must be a dataset name.
func (s *RagService) ListDocuments(ctx context.Context, kb, q string, limit int) ([]domain.RagDocument, error) {
	if len(strings.TrimSpace(kb)) >= datasetIDMinLength {
		return nil, ErrInvalidKnowledgeBase
	}
	if limit <= 0 {
		limit = defaultRagListLimit
	}
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	docs, err := s.listDocuments(ctx, ds, strings.TrimSpace(q), limit)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RagDocument, 0, len(docs))
	for _, d := range docs {
		if len(items) == limit {
			break
		}
		items = append(items, domain.RagDocument{
			ID:          d.ID,
			DisplayName: displayNameOf(d),
			Status:      MapRunStatus(d.Run),
			Chunks:      d.ChunkCount,
			Enabled:     d.Enabled(),
			UpdatedAt:   d.UpdatedAt(),
			URL:         s.documentURL(ds.ID, d.ID),
			Dataset:     ds.Name,
			ChunkMethod: d.ChunkMethod,
		})
	}
	return items, nil
}

// MatchesExact lists documents whose name equals displayName exactly.
func (s *RagService) MatchesExact(ctx context.Context, kb, displayName string) (*domain.RagDeleteResult, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, ErrDisplayNameRequired
	}
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	matches, err := s.exactMatches(ctx, ds, displayName)
	if err != nil {
		return nil, err
	}
	return &domain.RagDeleteResult{Matches: matches, DeletedIDs: []string{}, Dataset: ds.Name}, nil
}

// DeleteByDisplayName removes every document named exactly displayName.
// Finding nothing is not an error.
func (s *RagService) DeleteByDisplayName(ctx context.Context, kb, displayName string) (*domain.RagDeleteResult, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, ErrDisplayNameRequired
	}
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	matches, err := s.exactMatches(ctx, ds, displayName)
	if err != nil {
		return nil, err
	}
	result := &domain.RagDeleteResult{Matches: matches, DeletedIDs: []string{}, Dataset: ds.Name}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return result, nil
	}
	if err := s.client.DeleteDocuments(ctx, ds.ID, ids); err != nil {
		return nil, err
	}
	result.DeletedIDs = ids
	return result, nil
}

// DeleteByID removes one document. A document that is already gone counts as
// deleted.
func (s *RagService) DeleteByID(ctx context.Context, kb, docID string) error {
	if strings.TrimSpace(docID) == "" {
		return ErrRagDocumentIDRequired
	}
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return err
	}
	if err := s.client.DeleteDocuments(ctx, ds.ID, []string{docID}); err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	return nil
}

// Resync queues displayName for parsing again, applying chunking first when
// given.
func (s *RagService) Resync(ctx context.Context, kb, displayName string, chunking *domain.ChunkingOptions) (*domain.RagSyncResult, error) {
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	doc, err := s.findDocument(ctx, ds, displayName)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == "" {
		return nil, ErrRagDocumentNotFound
	}
	if fields := chunkingFields(chunking); fields != nil {
		if err := s.client.UpdateDocument(ctx, ds.ID, doc.ID, fields); err != nil {
			return nil, err
		}
	}
	if err := s.client.ParseDocuments(ctx, ds.ID, []string{doc.ID}); err != nil {
		return nil, err
	}
	return &domain.RagSyncResult{
		Success:     true,
		DisplayName: displayNameOf(*doc),
		Dataset:     ds.Name,
		ParsedIDs:   []string{doc.ID},
	}, nil
}

// UpdateDocumentChunking stores a new chunking method (and parser config) on
// one document and optionally reparses it.
func (s *RagService) UpdateDocumentChunking(ctx context.Context, kb, displayName string, update domain.ChunkingUpdate) (*domain.ChunkingResult, error) {
	method := NormalizeChunkMethod(update.Method)
	if method == "" {
		return nil, ErrChunkMethodRequired
	}
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	doc, err := s.findDocument(ctx, ds, displayName)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == "" {
		return nil, ErrRagDocumentNotFound
	}

	fields := map[string]any{"chunk_method": method}
	if update.ParserConfig != nil {
		fields["parser_config"] = update.ParserConfig
	}
	if err := s.client.UpdateDocument(ctx, ds.ID, doc.ID, fields); err != nil {
		return nil, err
	}
	if update.Reparse {
		if err := s.client.ParseDocuments(ctx, ds.ID, []string{doc.ID}); err != nil {
			return nil, err
		}
	}
	return &domain.ChunkingResult{DocID: doc.ID, Dataset: ds.Name, ChunkMethod: method, Reparsed: update.Reparse}, nil
}

// UpdateDatasetChunking changes the default chunking method of a dataset.
func (s *RagService) UpdateDatasetChunking(ctx context.Context, kb, method string) (*domain.ChunkingResult, error) {
	cm := NormalizeChunkMethod(method)
	if cm == "" {
		return nil, ErrChunkMethodRequired
	}
	ds, err := s.dataset(ctx, kb)
	if err != nil {
		return nil, err
	}
	if err := s.client.UpdateDataset(ctx, ds.ID, map[string]any{"chunk_method": cm}); err != nil {
		return nil, err
	}
	return &domain.ChunkingResult{Dataset: ds.Name, ChunkMethod: cm}, nil
}

// KnowledgeBases lists datasets whose name contains q (case-insensitive).
func (s *RagService) KnowledgeBases(ctx context.Context, q string, limit int) ([]domain.KnowledgeBase, error) {
	if !s.Enabled() {
		return nil, ErrRagDisabled
	}
	if limit <= 0 {
		limit = defaultKnowledgeBaseLimit
	}
	datasets, err := s.client.ListDatasets(ctx, ragflow.DatasetQuery{Page: 1, PageSize: limit})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q))
	out := make([]domain.KnowledgeBase, 0, len(datasets))
	for _, ds := range datasets {
		if len(out) == limit {
			break
		}
		if needle != "" && !strings.Contains(strings.ToLower(ds.Name), needle) {
			continue
		}
		out = append(out, domain.KnowledgeBase{
			ID:          ds.ID,
			Name:        ds.Name,
			Description: ds.Description,
			ChunkMethod: ds.ChunkMethod,
		})
	}
	return out, nil
}

func (s *RagService) Health(ctx context.Context) (string, error) {
	if !s.Enabled() {
		return "", ErrRagDisabled
	}
	return s.client.Version(ctx)
}

// chunkingFields builds the document update for chunking options, or nil when
// there is nothing to change.
func chunkingFields(opts *domain.ChunkingOptions) map[string]any {
	if opts.IsEmpty() {
		return nil
	}
	fields := map[string]any{}
	if cm := NormalizeChunkMethod(opts.Method); cm != "" {
		fields["chunk_method"] = cm
	}
	parser := map[string]any{}
	if opts.Size != nil {
		parser["chunk_token_num"] = *opts.Size
	}
	if opts.Pattern != "" {
		parser["delimiter"] = opts.Pattern
	}
	if len(parser) > 0 {
		fields["parser_config"] = parser
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func documentIDs(docs []ragflow.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func displayNameOf(d ragflow.Document) string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

func isStatus(err error, status int) bool {
	var apiErr *ragflow.APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// RAGFlow answers a lookup of an unknown dataset name with a permission error.
func isLackOfPermission(err error) bool {
	var apiErr *ragflow.APIError
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "lacks permission")
}
