package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/manifest"
	"github.com/njprem/regdocs/internal/service"
)

type stubUploader struct {
	mu    sync.Mutex
	calls []domain.UploadRequest
}

func (u *stubUploader) Upload(_ context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, req)
	return &domain.UploadResult{Message: "uploaded", Rag: &domain.RagSyncResult{Success: true}}, nil
}

type selectionPart struct {
	path string
	data string
}

func multipartSelection(t *testing.T, kb string, parts ...selectionPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		base := p.path[strings.LastIndex(p.path, "/")+1:]
		fw, err := mw.CreateFormFile("files", base)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(p.data)); err != nil {
			t.Fatalf("write part: %v", err)
		}
		if err := mw.WriteField("paths", p.path); err != nil {
			t.Fatalf("write path: %v", err)
		}
	}
	if kb != "" {
		if err := mw.WriteField("kb", kb); err != nil {
			t.Fatalf("write kb: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func newBulkImportServer(uploader service.Uploader, maxBytes int64) *echo.Echo {
	e := echo.New()
	importer := service.NewBulkImportService(uploader, service.BulkImportServiceConfig{
		Logf: func(string, ...any) {},
	})
	RegisterBulkImports(e, RequireAdmin(nil), importer, maxBytes)
	return e
}

func postSelection(e *echo.Echo, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/bulk-imports", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBulkImportUploadsSelection(t *testing.T) {
	uploader := &stubUploader{}
	e := newBulkImportServer(uploader, 1<<20)

	csv := "法規名稱,檔名,處室,最後更新日期\n學則,R-01,教務處,2024/03/05\n宿舍規則,dorm/R-02.pdf,學務處,\n遺失規則,R-03,總務處,\n"
	body, ct := multipartSelection(t, "Regulation",
		selectionPart{"regs/manifest.csv", csv},
		selectionPart{"regs/R-01.pdf", "%PDF-1"},
		selectionPart{"regs/dorm/R-02.pdf", "%PDF-2"},
	)
	rec := postSelection(e, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Import domain.BulkImportResult `json:"import"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	got := resp.Import
	if got.Status != domain.BulkImportStatusDone {
		t.Fatalf("expected done, got %q", got.Status)
	}
	if got.Succeeded != 2 || got.Failed != 1 {
		t.Fatalf("expected 2 succeeded and 1 failed, got %d/%d", got.Succeeded, got.Failed)
	}
	if got.Progress.Done != 3 || got.Progress.Total != 3 {
		t.Fatalf("unexpected progress %+v", got.Progress)
	}
	if got.KnowledgeBase != "Regulation" {
		t.Fatalf("expected kb Regulation, got %q", got.KnowledgeBase)
	}

	if len(uploader.calls) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploader.calls))
	}
	if uploader.calls[0].FileName != "教務處-學則.pdf" || uploader.calls[0].DateIssued != "2024-03-05" {
		t.Fatalf("unexpected first upload %+v", uploader.calls[0])
	}
	if uploader.calls[1].FileName != "學務處-宿舍規則.pdf" || uploader.calls[1].KnowledgeBase != "Regulation" {
		t.Fatalf("unexpected second upload %+v", uploader.calls[1])
	}
}

func TestBulkImportManifestErrorIs422(t *testing.T) {
	uploader := &stubUploader{}
	e := newBulkImportServer(uploader, 1<<20)

	body, ct := multipartSelection(t, "",
		selectionPart{"regs/manifest.csv", "title,file,department\n學則,R-01,不存在處\n"},
		selectionPart{"regs/R-01.pdf", "%PDF"},
	)
	rec := postSelection(e, body, ct)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error  string                  `json:"error"`
		Import domain.BulkImportResult `json:"import"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "不存在處") {
		t.Fatalf("expected the bad department in the error, got %q", resp.Error)
	}
	if resp.Import.Status != domain.BulkImportStatusError {
		t.Fatalf("expected error status, got %q", resp.Import.Status)
	}
	if len(uploader.calls) != 0 {
		t.Fatalf("expected no uploads, got %d", len(uploader.calls))
	}
}

func TestBulkImportRejectsEmptySelection(t *testing.T) {
	e := newBulkImportServer(&stubUploader{}, 1<<20)

	body, ct := multipartSelection(t, "Regulation")
	rec := postSelection(e, body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBulkImportSizeLimit(t *testing.T) {
	uploader := &stubUploader{}
	e := newBulkImportServer(uploader, 16)

	body, ct := multipartSelection(t, "",
		selectionPart{"regs/manifest.csv", "法規名稱,檔名,處室\n學則,R-01,教務處\n"},
		selectionPart{"regs/R-01.pdf", "%PDF"},
	)
	rec := postSelection(e, body, ct)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if len(uploader.calls) != 0 {
		t.Fatalf("expected no uploads, got %d", len(uploader.calls))
	}
}

func TestBulkImportRequiresAdmin(t *testing.T) {
	e := echo.New()
	importer := service.NewBulkImportService(&stubUploader{}, service.BulkImportServiceConfig{Logf: func(string, ...any) {}})
	RegisterBulkImports(e, RequireAdmin(newTestJWT()), importer, 1<<20)

	body, ct := multipartSelection(t, "", selectionPart{"regs/manifest.csv", "x"})
	rec := postSelection(e, body, ct)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBulkImportTemplate(t *testing.T) {
	e := newBulkImportServer(&stubUploader{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/bulk-imports/template", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(got, "manifest.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "\ufeff") {
		t.Fatal("expected a byte order mark")
	}

	sheet := manifest.Parse(body)
	cols, err := manifest.ResolveColumns(sheet.Headers)
	if err != nil {
		t.Fatalf("template headers do not resolve: %v", err)
	}
	if !cols.HasDate() {
		t.Fatal("expected the template to carry a date column")
	}
	entries, err := manifest.Build(cols, sheet.Rows, domain.NewDepartmentSet(domain.DefaultDepartments))
	if err != nil {
		t.Fatalf("template rows do not build: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 sample entries, got %d", len(entries))
	}
}
