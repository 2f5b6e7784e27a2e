// Package client talks to the regdocs HTTP API. The bulk import command uses
// it as its upload collaborator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/njprem/regdocs/internal/domain"
)

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload failed (%d): %s", e.Status, e.Message)
}

type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token     string
	Timeout   time.Duration
	Transport http.RoundTripper
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Upload posts one document to /api/docs. A 207 answer (stored, but the RAG
// step failed) is returned as a result, not an error.
func (c *Client) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	if req.File == nil {
		return nil, fmt.Errorf("upload %s: no file", req.FileName)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("read %s: %w", req.FileName, err)
	}

	fields := [][2]string{
		{"title", req.Title},
		{"department", req.Department},
		{"doc_no", req.DocNo},
		{"date_issued", req.DateIssued},
		{"review_meeting", req.ReviewMeeting},
		{"version_code", req.VersionCode},
		{"kb", req.KnowledgeBase},
	}
	if opts := req.Chunking; !opts.IsEmpty() {
		fields = append(fields, [2]string{"chunk_method", opts.Method}, [2]string{"chunk_pattern", opts.Pattern})
		if opts.Size != nil {
			fields = append(fields, [2]string{"chunk_size", strconv.Itoa(*opts.Size)})
		}
		if opts.Overlap != nil {
			fields = append(fields, [2]string{"chunk_overlap", strconv.Itoa(*opts.Overlap)})
		}
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := mw.WriteField("sync_to_ragflow", strconv.FormatBool(req.SyncToRAG)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/docs", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out domain.UploadResult
	if err := c.send(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Departments returns the department list the server validates against.
func (c *Client) Departments(ctx context.Context) (domain.DepartmentSet, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/departments", nil)
	if err != nil {
		return domain.DepartmentSet{}, err
	}
	var out struct {
		Departments []string `json:"departments"`
	}
	if err := c.send(req, &out); err != nil {
		return domain.DepartmentSet{}, err
	}
	return domain.NewDepartmentSet(out.Departments), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var env struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
