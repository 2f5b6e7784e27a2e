package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is a small REST client for the RAGFlow HTTP API (/api/v1).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Transport defaults to an otelhttp-instrumented http.DefaultTransport.
	Transport http.RoundTripper
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListDatasets(ctx context.Context, q DatasetQuery) ([]Dataset, error) {
	params := url.Values{}
	if q.ID != "" {
		params.Set("id", q.ID)
	}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	setPaging(params, q.Page, q.PageSize)

	var out []Dataset
	if err := c.do(ctx, http.MethodGet, "/api/v1/datasets", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDataset(ctx context.Context, name, description, chunkMethod string) (*Dataset, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	if chunkMethod != "" {
		body["chunk_method"] = chunkMethod
	}
	var out Dataset
	if err := c.do(ctx, http.MethodPost, "/api/v1/datasets", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDataset(ctx context.Context, datasetID string, fields map[string]any) error {
	return c.do(ctx, http.MethodPut, "/api/v1/datasets/"+url.PathEscape(datasetID), nil, fields, nil)
}

// UploadDocument stores one file in a dataset under the given name. Parsing
// is not started.
func (c *Client) UploadDocument(ctx context.Context, datasetID, name string, r io.Reader) ([]Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/datasets/"+url.PathEscape(datasetID)+"/documents", nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out []Document
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDocuments(ctx context.Context, datasetID string, q DocumentQuery) (*DocumentList, error) {
	params := url.Values{}
	if q.Keywords != "" {
		params.Set("keywords", q.Keywords)
	}
	setPaging(params, q.Page, q.PageSize)

	var out DocumentList
	if err := c.do(ctx, http.MethodGet, "/api/v1/datasets/"+url.PathEscape(datasetID)+"/documents", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDocument(ctx context.Context, datasetID, documentID string, fields map[string]any) error {
	p := "/api/v1/datasets/" + url.PathEscape(datasetID) + "/documents/" + url.PathEscape(documentID)
	return c.do(ctx, http.MethodPut, p, nil, fields, nil)
}

// ParseDocuments queues the documents for chunking. It returns once the
// backend has accepted the request.
func (c *Client) ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	body := map[string]any{"document_ids": documentIDs}
	return c.do(ctx, http.MethodPost, "/api/v1/datasets/"+url.PathEscape(datasetID)+"/chunks", nil, body, nil)
}

func (c *Client) DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	body := map[string]any{"ids": documentIDs}
	return c.do(ctx, http.MethodDelete, "/api/v1/datasets/"+url.PathEscape(datasetID)+"/documents", nil, body, nil)
}

// Version doubles as a health probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, "/api/v1/version", nil, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

func setPaging(params url.Values, page, size int) {
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		params.Set("page_size", strconv.Itoa(size))
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, params, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ragflow %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ragflow %s %s: read body: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "invalid response body: " + err.Error()}
	}
	if env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("ragflow %s %s: decode data: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
