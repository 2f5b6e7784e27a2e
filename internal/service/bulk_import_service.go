package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/manifest"
)

var ErrNoFilesSelected = errors.New("no files selected")

const fileNotFoundReason = "file not found"

// Uploader stores one document. DocumentService satisfies it in-process and
// client.Client does over HTTP.
type Uploader interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error)
}

// ImportObserver receives the state of a running import as it changes.
type ImportObserver interface {
	OnStatus(status domain.BulkImportStatus)
	OnProgress(progress domain.ImportProgress)
	OnLog(line string)
	OnBusy(busy bool)
	OnDone()
}

// ObserverFuncs adapts optional callbacks to ImportObserver. Nil fields are
// skipped.
type ObserverFuncs struct {
	Status   func(domain.BulkImportStatus)
	Progress func(domain.ImportProgress)
	Log      func(string)
	Busy     func(bool)
	Done     func()
}

func (o ObserverFuncs) OnStatus(s domain.BulkImportStatus) {
	if o.Status != nil {
		o.Status(s)
	}
}

func (o ObserverFuncs) OnProgress(p domain.ImportProgress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

func (o ObserverFuncs) OnLog(line string) {
	if o.Log != nil {
		o.Log(line)
	}
}

func (o ObserverFuncs) OnBusy(busy bool) {
	if o.Busy != nil {
		o.Busy(busy)
	}
}

func (o ObserverFuncs) OnDone() {
	if o.Done != nil {
		o.Done()
	}
}

type BulkImportServiceConfig struct {
	Departments domain.DepartmentSet
	// Logf mirrors every run log line. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

type BulkImportService struct {
	uploader    Uploader
	departments domain.DepartmentSet
	logf        func(format string, args ...any)
	now         func() time.Time
	newID       func() uuid.UUID
}

func NewBulkImportService(uploader Uploader, cfg BulkImportServiceConfig) *BulkImportService {
	departments := cfg.Departments
	if departments.Len() == 0 {
		departments = domain.NewDepartmentSet(domain.DefaultDepartments)
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &BulkImportService{
		uploader:    uploader,
		departments: departments,
		logf:        logf,
		now:         time.Now,
		newID:       uuid.New,
	}
}

func (s *BulkImportService) Departments() domain.DepartmentSet {
	return s.departments
}

// importRun holds the observable state of one Run call.
type importRun struct {
	svc    *BulkImportService
	obs    ImportObserver
	result *domain.BulkImportResult
	busy   bool
}

func (r *importRun) setStatus(status domain.BulkImportStatus) {
	r.result.Status = status
	r.obs.OnStatus(status)
}

func (r *importRun) setProgress(done, total int) {
	r.result.Progress = domain.ImportProgress{Done: done, Total: total}
	r.obs.OnProgress(r.result.Progress)
}

func (r *importRun) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.result.Log = append(r.result.Log, line)
	r.svc.logf("[bulk-import] %s %s", r.result.ID, line)
	r.obs.OnLog(line)
}

func (r *importRun) setBusy(busy bool) {
	if r.busy == busy {
		return
	}
	r.busy = busy
	r.obs.OnBusy(busy)
}

func (r *importRun) fail(err error) {
	r.result.Error = err.Error()
	r.logf("import aborted: %v", err)
	r.setStatus(domain.BulkImportStatusError)
	r.setBusy(false)
	r.result.FinishedAt = r.svc.now()
}

// Run imports a file selection: it locates and validates the manifest, then
// uploads one document per manifest entry, strictly in order. Manifest
// problems stop the run before anything is uploaded and are returned as the
// error; a failed row only counts as a failure and the run moves on.
//
// The run is detached from ctx cancellation so it always covers every entry
// once started.
func (s *BulkImportService) Run(ctx context.Context, files []manifest.File, kb string, obs ImportObserver) (result *domain.BulkImportResult, err error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}
	run := &importRun{
		svc: s,
		obs: obs,
		result: &domain.BulkImportResult{
			ID:            s.newID(),
			KnowledgeBase: strings.TrimSpace(kb),
			Status:        domain.BulkImportStatusIdle,
			Rows:          []domain.ImportRowResult{},
			Log:           []string{},
			StartedAt:     s.now(),
		},
	}
	result = run.result

	if len(files) == 0 {
		return result, ErrNoFilesSelected
	}
	run.setStatus(domain.BulkImportStatusReady)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("bulk import: %v", p)
			run.fail(err)
		}
	}()

	entries, err := s.prepare(run, files)
	if err != nil {
		run.fail(err)
		return result, err
	}

	s.upload(context.WithoutCancel(ctx), run, entries, manifest.NewFileIndex(files))
	return result, nil
}

func (s *BulkImportService) prepare(run *importRun, files []manifest.File) ([]manifest.Entry, error) {
	csvFile, ok := manifest.FindManifest(files)
	if !ok {
		return nil, manifest.ErrNoCSV
	}
	run.logf("manifest: %s", csvFile.Path())

	sheet, err := manifest.Load(csvFile)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", csvFile.Path(), err)
	}
	if len(sheet.Rows) == 0 {
		return nil, manifest.ErrEmptyCSV
	}
	run.logf("headers: %s", strings.Join(sheet.Headers, ", "))

	cols, err := manifest.ResolveColumns(sheet.Headers)
	if err != nil {
		return nil, err
	}
	run.logf("columns: %s", cols)

	entries, err := manifest.Build(cols, sheet.Rows, s.departments)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BulkImportService) upload(ctx context.Context, run *importRun, entries []manifest.Entry, index *manifest.FileIndex) {
	result := run.result
	total := len(entries)

	run.setProgress(0, total)
	kbLabel := result.KnowledgeBase
	if kbLabel == "" {
		kbLabel = "(default)"
	}
	run.logf("uploading %d files, knowledge base: %s", total, kbLabel)
	run.setStatus(domain.BulkImportStatusUploading)
	run.setBusy(true)

	for idx, entry := range entries {
		row := domain.ImportRowResult{
			Index:       idx + 1,
			Filename:    entry.Filename,
			DisplayName: entry.DisplayName,
			Department:  entry.Department,
		}

		if err := s.uploadEntry(ctx, run, entry, index); err != nil {
			row.Status = domain.ImportRowStatusFailed
			row.Error = err.Error()
			result.Failed++
		} else {
			row.Status = domain.ImportRowStatusUploaded
			result.Succeeded++
		}
		result.Rows = append(result.Rows, row)
		run.setProgress(idx+1, total)
	}

	run.logf("import finished: %d succeeded, %d failed", result.Succeeded, result.Failed)
	result.FinishedAt = s.now()
	run.setStatus(domain.BulkImportStatusDone)
	run.setBusy(false)
	run.obs.OnDone()
}

func (s *BulkImportService) uploadEntry(ctx context.Context, run *importRun, entry manifest.Entry, index *manifest.FileIndex) error {
	file, ok := index.Resolve(entry.Filename)
	if !ok {
		run.logf("%s: %s", fileNotFoundReason, entry.Filename)
		return errors.New(fileNotFoundReason)
	}

	rc, err := file.Open()
	if err != nil {
		run.logf("failed: %s: %v", entry.DisplayName, err)
		return err
	}
	defer rc.Close()

	res, err := s.uploader.Upload(ctx, buildUploadRequest(entry, file, rc, run.result.KnowledgeBase))
	if err != nil {
		run.logf("failed: %s: %v", entry.DisplayName, err)
		return err
	}

	run.logf("uploaded: %s", entry.DisplayName)
	if res != nil && !res.RagSynced() {
		note := res.Rag.Error
		if note == "" {
			note = res.Rag.Note
		}
		run.logf("  ragflow sync failed for %s: %s", entry.DisplayName, note)
	}
	return nil
}

// buildUploadRequest names the upload "<department>-<display name><ext>",
// keeping the real file's extension.
func buildUploadRequest(entry manifest.Entry, file manifest.File, body io.Reader, kb string) domain.UploadRequest {
	ext := path.Ext(file.Name())
	if ext == "" {
		ext = ".pdf"
	}
	contentType := mime.TypeByExtension(strings.ToLower(ext))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req := domain.UploadRequest{
		File:          body,
		FileName:      entry.Department + "-" + entry.DisplayName + ext,
		Size:          file.Size(),
		ContentType:   contentType,
		Title:         entry.DisplayName,
		Department:    entry.Department,
		DocNo:         manifest.DocNumber(entry.Filename),
		KnowledgeBase: kb,
		SyncToRAG:     true,
	}
	if entry.HasDate() {
		req.DateIssued = entry.LastUpdate
	}
	return req
}
