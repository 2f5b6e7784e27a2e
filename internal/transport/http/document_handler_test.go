package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseUploadRequest(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "學則.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte("%PDF"))
	fields := map[string]string{
		"title":           " 學則 ",
		"department":      "教務處",
		"date_issued":     "2024-03-05",
		"chunking_method": "laws",
		"chunk_regex":     `^第.+條`,
		"chunk_size":      "512",
		"sync_to_ragflow": "on",
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/docs?kb=Regulation", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	c := e.NewContext(req, httptest.NewRecorder())

	upload, closeFile, err := parseUploadRequest(c)
	if err != nil {
		t.Fatalf("parseUploadRequest returned error: %v", err)
	}
	defer closeFile()

	if upload.Title != "學則" || upload.Department != "教務處" || upload.FileName != "學則.pdf" {
		t.Fatalf("unexpected request %+v", upload)
	}
	if upload.KnowledgeBase != "Regulation" || !upload.SyncToRAG {
		t.Fatalf("expected kb from query and sync on, got %+v", upload)
	}
	if upload.Chunking == nil || upload.Chunking.Method != "laws" || upload.Chunking.Pattern != `^第.+條` {
		t.Fatalf("unexpected chunking %+v", upload.Chunking)
	}
	if upload.Chunking.Size == nil || *upload.Chunking.Size != 512 || upload.Chunking.Overlap != nil {
		t.Fatalf("unexpected chunk sizes %+v", upload.Chunking)
	}
	data, _ := io.ReadAll(upload.File)
	if string(data) != "%PDF" {
		t.Fatalf("unexpected file content %q", data)
	}
}

func TestParseUploadRequestErrors(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/docs", strings.NewReader("title=x"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if _, _, err := parseUploadRequest(e.NewContext(req, httptest.NewRecorder())); err == nil {
		t.Fatal("expected an error without a file")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "a.pdf")
	_, _ = fw.Write([]byte("x"))
	_ = mw.WriteField("chunk_overlap", "lots")
	_ = mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/api/docs", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	_, _, err := parseUploadRequest(e.NewContext(req, httptest.NewRecorder()))
	if err == nil || !strings.Contains(err.Error(), "chunk_overlap") {
		t.Fatalf("expected chunk_overlap error, got %v", err)
	}
}

func TestResyncPayloadOptions(t *testing.T) {
	decode := func(body string) resyncPayload {
		t.Helper()
		var p resyncPayload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
		return p
	}

	if opts := decode(`{}`).options(); opts != nil {
		t.Fatalf("expected no options, got %+v", opts)
	}

	nested := decode(`{"chunking":{"method":"laws","size":256},"chunk_method":"naive"}`).options()
	if nested == nil || nested.Method != "laws" || nested.Size == nil || *nested.Size != 256 {
		t.Fatalf("expected nested options to win, got %+v", nested)
	}

	parse := decode(`{"parse_options":{"method":"book"}}`).options()
	if parse == nil || parse.Method != "book" {
		t.Fatalf("expected parse_options, got %+v", parse)
	}

	flat := decode(`{"chunk_method":"laws","size":100,"chunk_size":300,"chunk_overlap":20,"pattern":"a","chunk_regex":"b"}`).options()
	if flat == nil || flat.Method != "laws" || flat.Pattern != "b" {
		t.Fatalf("unexpected flat options %+v", flat)
	}
	if *flat.Size != 300 || *flat.Overlap != 20 {
		t.Fatalf("expected chunk_* keys to win, got size=%d overlap=%d", *flat.Size, *flat.Overlap)
	}
}

func TestParseDocumentFilter(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/docs", nil)
	q := req.URL.Query()
	q.Set("department", " 教務處 ")
	q.Set("q", "學則")
	q.Set("limit", "20")
	q.Set("offset", "40")
	req.URL.RawQuery = q.Encode()
	filter, err := parseDocumentFilter(e.NewContext(req, httptest.NewRecorder()))
	if err != nil {
		t.Fatalf("parseDocumentFilter returned error: %v", err)
	}
	if filter.Department != "教務處" || filter.Query != "學則" || filter.Limit != 20 || filter.Offset != 40 {
		t.Fatalf("unexpected filter %+v", filter)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/docs?limit=-1", nil)
	if _, err := parseDocumentFilter(e.NewContext(req, httptest.NewRecorder())); err == nil {
		t.Fatal("expected an error for a negative limit")
	}
}

func TestBindOptionalJSONEmptyBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	var payload resyncPayload
	if err := bindOptionalJSON(e.NewContext(req, httptest.NewRecorder()), &payload); err != nil {
		t.Fatalf("expected empty body to be accepted, got %v", err)
	}
}
