package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/repository/ports"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrVersionNotFound   = errors.New("document version not found")
	ErrInvalidDepartment = errors.New("invalid department")
	ErrFileRequired      = errors.New("file is required")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrInvalidDate       = errors.New("date_issued must be YYYY-MM-DD")
	ErrNoFile            = errors.New("document has no stored file")
	ErrFileNotFound      = errors.New("file not found")
)

const (
	documentPrefix      = "documents/"
	defaultVersionCode  = "v1"
	defaultKeepUploads  = 10
	defaultPageSize     = 50
	maxPageSize         = 500
	fileDownloadBaseURL = "/api/files/download/"
)

type DocumentServiceConfig struct {
	Bucket         string
	Departments    domain.DepartmentSet
	MaxFileBytes   int64
	KeepUploadLogs int
}

type DocumentService struct {
	docs         ports.DocumentRepository
	versions     ports.DocumentVersionRepository
	uploadLogs   ports.UploadLogRepository
	storage      ports.ObjectStorage
	rag          *RagService
	bucket       string
	departments  domain.DepartmentSet
	maxFileBytes int64
	keepLogs     int
	newID        func() uuid.UUID
}

func NewDocumentService(docs ports.DocumentRepository, versions ports.DocumentVersionRepository, uploadLogs ports.UploadLogRepository, storage ports.ObjectStorage, rag *RagService, cfg DocumentServiceConfig) *DocumentService {
	maxFile := cfg.MaxFileBytes
	if maxFile <= 0 {
		maxFile = 50 << 20
	}
	keep := cfg.KeepUploadLogs
	if keep <= 0 {
		keep = defaultKeepUploads
	}
	return &DocumentService{
		docs:         docs,
		versions:     versions,
		uploadLogs:   uploadLogs,
		storage:      storage,
		rag:          rag,
		bucket:       cfg.Bucket,
		departments:  cfg.Departments,
		maxFileBytes: maxFile,
		keepLogs:     keep,
		newID:        uuid.New,
	}
}

func (s *DocumentService) Departments() domain.DepartmentSet {
	return s.departments
}

// Upload stores one file as a new document with a single active version and,
// when asked, pushes it into the RAG index under its display name. A failed
// RAG step leaves the stored document in place and is reported in the result.
func (s *DocumentService) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	if req.File == nil {
		return nil, ErrFileRequired
	}
	if req.Size > s.maxFileBytes {
		return nil, ErrFileTooLarge
	}

	filename := sanitizeFilename(req.FileName)
	ext := path.Ext(filename)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, ext)
	}
	department := strings.TrimSpace(req.Department)
	if department != "" && s.departments.Len() > 0 && !s.departments.Contains(department) {
		return nil, fmt.Errorf("%w %q; valid departments: %s", ErrInvalidDepartment, department, s.departments.String())
	}
	dateIssued, err := parseDateIssued(req.DateIssued)
	if err != nil {
		return nil, err
	}
	versionCode := strings.TrimSpace(req.VersionCode)
	if versionCode == "" {
		versionCode = defaultVersionCode
	}

	data, err := io.ReadAll(io.LimitReader(req.File, s.maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrFileRequired
	}
	if int64(len(data)) > s.maxFileBytes {
		return nil, ErrFileTooLarge
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}
	key := documentPrefix + s.newID().String() + "/" + filename
	if _, err := s.storage.Upload(ctx, s.bucket, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	doc, version, err := s.createRecords(ctx, title, department, req, dateIssued, versionCode, key, filename)
	if err != nil {
		if rmErr := s.storage.Remove(ctx, s.bucket, key); rmErr != nil {
			log.Printf("[documents] cleanup %s after failed insert: %v", key, rmErr)
		}
		return nil, err
	}

	displayName := RagDisplayName(department, title, ext)
	result := &domain.UploadResult{
		Message:  fmt.Sprintf("uploaded %s (version %s)", title, versionCode),
		Document: doc,
		Version:  version,
	}

	ragStatus := domain.RagStatusNotSynced
	var ragDocID *string
	if req.SyncToRAG {
		result.Rag = s.rag.Upload(ctx, req.KnowledgeBase, displayName, bytes.NewReader(data), req.Chunking)
		switch {
		case !result.Rag.Success:
			ragStatus = domain.RagStatusError
		case len(result.Rag.ParsedIDs) > 0:
			ragStatus = domain.RagStatusPending
			id := result.Rag.ParsedIDs[0]
			ragDocID = &id
			if err := s.versions.SetRagDocID(ctx, version.ID, id); err != nil {
				log.Printf("[documents] store rag id for version %d: %v", version.ID, err)
			} else {
				version.RagDocID = ragDocID
			}
		default:
			ragStatus = domain.RagStatusUnknown
		}
	}

	s.appendUploadLog(ctx, &domain.UploadLog{
		KB:          optionalString(req.KnowledgeBase),
		DocNo:       doc.DocNo,
		Title:       title,
		DisplayName: &displayName,
		RagDocID:    ragDocID,
		RagStatus:   ragStatus,
	})
	return result, nil
}

func (s *DocumentService) createRecords(ctx context.Context, title, department string, req domain.UploadRequest, dateIssued *time.Time, versionCode, key, filename string) (*domain.Document, *domain.DocumentVersion, error) {
	doc, err := s.docs.Create(ctx, &domain.Document{
		Title:         title,
		Department:    department,
		DocNo:         optionalString(req.DocNo),
		DateIssued:    dateIssued,
		ReviewMeeting: optionalString(req.ReviewMeeting),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create document: %w", err)
	}
	version, err := s.versions.Create(ctx, &domain.DocumentVersion{
		DocID:       doc.ID,
		VersionCode: versionCode,
		DateIssued:  dateIssued,
		IsActive:    true,
		FileKey:     &key,
		FileName:    &filename,
	})
	if err != nil {
		if delErr := s.docs.Delete(ctx, doc.ID); delErr != nil {
			log.Printf("[documents] rollback document %d: %v", doc.ID, delErr)
		}
		return nil, nil, fmt.Errorf("create version: %w", err)
	}
	return doc, version, nil
}

// appendUploadLog records the upload and trims the log to the newest entries.
// Log failures never fail the upload.
func (s *DocumentService) appendUploadLog(ctx context.Context, entry *domain.UploadLog) {
	if s.uploadLogs == nil {
		return
	}
	if _, err := s.uploadLogs.Insert(ctx, entry); err != nil {
		log.Printf("[documents] append upload log: %v", err)
		return
	}
	if _, err := s.uploadLogs.Prune(ctx, s.keepLogs); err != nil {
		log.Printf("[documents] prune upload log: %v", err)
	}
}

// List returns a page of documents, newest issue date first, each with its
// latest version.
func (s *DocumentService) List(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentPage, error) {
	filter.Department = strings.TrimSpace(filter.Department)
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	latest, err := s.versions.LatestByDocs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.DocumentListItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, domain.DocumentListItem{Doc: d, Latest: latest[d.ID]})
	}
	return &domain.DocumentPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.DocumentListItem, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	version, err := s.latestVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentListItem{Doc: *doc, Latest: version}, nil
}

func (s *DocumentService) ToggleVersion(ctx context.Context, versionID int64) (*domain.DocumentVersion, error) {
	v, err := s.versions.ToggleActive(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	return v, err
}

// Delete removes a document with all its versions and stored files. RAG
// copies are deleted by display name first; failures there are returned as
// warnings and never stop the local delete.
func (s *DocumentService) Delete(ctx context.Context, id int64, kb string) ([]domain.RagWarning, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByDoc(ctx, id)
	if err != nil {
		return nil, err
	}

	var warnings []domain.RagWarning
	if s.rag.Enabled() {
		seen := map[string]struct{}{}
		for i := range versions {
			name := RagDisplayName(doc.Department, doc.Title, versions[i].Ext())
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if _, err := s.rag.DeleteByDisplayName(ctx, kb, name); err != nil {
				warnings = append(warnings, domain.RagWarning{DisplayName: name, Error: err.Error()})
			}
		}
	}

	for _, v := range versions {
		if v.FileKey == nil || *v.FileKey == "" {
			continue
		}
		if err := s.storage.Remove(ctx, s.bucket, *v.FileKey); err != nil {
			log.Printf("[documents] remove %s: %v", *v.FileKey, err)
		}
	}

	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return warnings, ErrDocumentNotFound
		}
		return warnings, err
	}
	return warnings, nil
}

// RagStatus reports the RAG state of a document's latest version.
func (s *DocumentService) RagStatus(ctx context.Context, id int64, kb string) (*domain.RagStatus, error) {
	name, err := s.displayName(ctx, id)
	if errors.Is(err, ErrNoFile) {
		return &domain.RagStatus{Found: false, Status: domain.RagStatusNoFile}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.rag.Status(ctx, kb, name)
}

func (s *DocumentService) Resync(ctx context.Context, id int64, kb string, chunking *domain.ChunkingOptions) (*domain.RagSyncResult, error) {
	name, err := s.displayName(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.rag.Resync(ctx, kb, name, chunking)
}

func (s *DocumentService) UpdateChunking(ctx context.Context, id int64, kb string, update domain.ChunkingUpdate) (*domain.ChunkingResult, error) {
	name, err := s.displayName(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.rag.UpdateDocumentChunking(ctx, kb, name, update)
}

// RecentUploads returns the latest upload log entries with their live RAG
// state when the RAG backend is reachable.
func (s *DocumentService) RecentUploads(ctx context.Context, kb string) ([]domain.RecentUpload, error) {
	entries, err := s.uploadLogs.Recent(ctx, s.keepLogs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecentUpload, 0, len(entries))
	for _, e := range entries {
		item := domain.RecentUpload{UploadLog: e}
		if e.DisplayName != nil && s.rag.Enabled() {
			lookupKB := kb
			if lookupKB == "" && e.KB != nil {
				lookupKB = *e.KB
			}
			if st, err := s.rag.Status(ctx, lookupKB, *e.DisplayName); err == nil {
				item.RagStatus = st.Status
				item.RagURL = st.URL
			} else {
				log.Printf("[documents] live status for %s: %v", *e.DisplayName, err)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// ListFiles lists stored PDF files, newest first.
func (s *DocumentService) ListFiles(ctx context.Context) ([]domain.StoredFile, error) {
	objects, err := s.storage.List(ctx, s.bucket, documentPrefix)
	if err != nil {
		return nil, err
	}
	files := make([]domain.StoredFile, 0, len(objects))
	for _, obj := range objects {
		if !strings.EqualFold(path.Ext(obj.Key), ".pdf") {
			continue
		}
		rel := strings.TrimPrefix(obj.Key, documentPrefix)
		files = append(files, domain.StoredFile{
			Name:       path.Base(obj.Key),
			Key:        rel,
			Size:       obj.Size,
			SizeHuman:  humanize.IBytes(uint64(obj.Size)),
			ModifiedAt: obj.LastModified,
			URL:        fileDownloadBaseURL + rel,
		})
	}
	return files, nil
}

// OpenFile opens a stored file by the relative path ListFiles reports.
func (s *DocumentService) OpenFile(ctx context.Context, rel string) (io.ReadCloser, *ports.StoredObject, error) {
	clean := path.Clean("/" + strings.ReplaceAll(rel, `\`, "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return nil, nil, ErrFileNotFound
	}
	rc, obj, err := s.storage.Open(ctx, s.bucket, documentPrefix+clean)
	if errors.Is(err, ports.ErrObjectNotFound) {
		return nil, nil, ErrFileNotFound
	}
	return rc, obj, err
}

func (s *DocumentService) findDocument(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

func (s *DocumentService) latestVersion(ctx context.Context, docID int64) (*domain.DocumentVersion, error) {
	v, err := s.versions.Latest(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// displayName is the RAG display name of a document's latest stored file.
func (s *DocumentService) displayName(ctx context.Context, id int64) (string, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return "", err
	}
	v, err := s.latestVersion(ctx, id)
	if err != nil {
		return "", err
	}
	if v == nil || v.FileKey == nil || *v.FileKey == "" {
		return "", ErrNoFile
	}
	return RagDisplayName(doc.Department, doc.Title, v.Ext()), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[\x00-\x1f/\\:*?"<>|]+`)

// sanitizeFilename keeps the base name of an uploaded file, drops characters
// that are unsafe in object keys and defaults to unnamed.pdf.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" || name == "/" {
		return "unnamed.pdf"
	}
	return name
}

func parseDateIssued(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return &t, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
