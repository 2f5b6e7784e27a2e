package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	requestBodyLogKey  = "http.request.body.summary"
	responseBodyLogKey = "http.response.body.summary"
	maxLoggedBody      = 2048
	maxLoggedItems     = 20
)

// Keys whose values never reach the log.
var secretKeyHints = []string{"password", "token", "secret", "api_key", "apikey", "authorization"}

// Routes whose bodies are file payloads. They are logged without bodies.
var bodylessPrefixes = []string{"/api/files/download/", "/api/bulk-imports"}

type accessLine struct {
	Time      string `json:"time"`
	Admin     string `json:"admin"`
	LatencyMS int64  `json:"latency_ms"`
	Request   struct {
		Method string `json:"method"`
		URI    string `json:"uri"`
		Body   any    `json:"body,omitempty"`
	} `json:"request"`
	Response struct {
		Status int    `json:"status"`
		Body   any    `json:"body,omitempty"`
		Error  string `json:"error,omitempty"`
	} `json:"response"`
}

func registerLogging(e *echo.Echo) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			line := accessLine{
				Time:      v.StartTime.Format(time.RFC3339),
				Admin:     "-",
				LatencyMS: v.Latency.Milliseconds(),
			}
			if claims, ok := CurrentAdmin(c); ok {
				line.Admin = claims.Subject
			}
			line.Request.Method = v.Method
			line.Request.URI = v.URI
			line.Request.Body = c.Get(requestBodyLogKey)
			line.Response.Status = v.Status
			line.Response.Body = c.Get(responseBodyLogKey)
			if v.Error != nil {
				line.Response.Error = v.Error.Error()
			}

			buf, err := json.Marshal(line)
			if err != nil {
				return err
			}
			log.Println(string(buf))
			return nil
		},
	}))

	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: skipBodyDump,
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			if summary := summarizeBody(reqBody, c.Request().Header.Get(echo.HeaderContentType)); summary != nil {
				c.Set(requestBodyLogKey, summary)
			}
			if summary := summarizeBody(resBody, c.Response().Header().Get(echo.HeaderContentType)); summary != nil {
				c.Set(responseBodyLogKey, summary)
			}
		},
	}))
}

func skipBodyDump(c echo.Context) bool {
	p := c.Request().URL.Path
	for _, prefix := range bodylessPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// summarizeBody turns a request or response body into something small and
// safe to log. It returns nil for empty bodies.
func summarizeBody(body []byte, contentType string) any {
	if len(body) == 0 {
		return nil
	}
	mediaType, params, _ := mime.ParseMediaType(contentType)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return summarizeMultipart(body, params["boundary"])
	case mediaType == echo.MIMEApplicationJSON || (mediaType == "" && json.Valid(body)):
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			return clampJSON(redactJSON(data, ""))
		}
	case mediaType == echo.MIMEApplicationForm:
		if values, err := url.ParseQuery(string(body)); err == nil {
			fields := make(map[string]any, len(values))
			for key, vals := range values {
				for _, v := range vals {
					addFormField(fields, key, redactString(v, key))
				}
			}
			return clampJSON(fields)
		}
	}

	if isBinary(body) {
		return "binary " + humanize.Bytes(uint64(len(body)))
	}
	return clampString(string(body))
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(key, hint) {
			return true
		}
	}
	return false
}

func redactJSON(value any, key string) any {
	if key != "" && isSecretKey(key) {
		return "redacted"
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = redactJSON(item, k)
		}
		return out
	case []any:
		if len(v) > maxLoggedItems {
			return map[string]any{"_items": len(v)}
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactJSON(item, key)
		}
		return out
	case string:
		return clampString(v)
	default:
		return v
	}
}

func redactString(value, key string) string {
	if isSecretKey(key) {
		return "redacted"
	}
	if isBinary([]byte(value)) {
		return "binary"
	}
	return clampString(value)
}

// summarizeMultipart lists form fields; file parts are reduced to their
// name and size.
func summarizeMultipart(body []byte, boundary string) any {
	if boundary == "" {
		return "multipart " + humanize.Bytes(uint64(len(body)))
	}
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	fields := make(map[string]any)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "multipart " + humanize.Bytes(uint64(len(body)))
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		var value any
		if filename := part.FileName(); filename != "" {
			n, _ := io.Copy(io.Discard, part)
			value = map[string]any{"filename": filename, "size": humanize.Bytes(uint64(n))}
		} else {
			data, err := io.ReadAll(part)
			if err != nil {
				value = "unreadable"
			} else {
				value = redactString(string(data), name)
			}
		}
		_ = part.Close()
		addFormField(fields, name, value)
	}
	return clampJSON(fields)
}

// clampJSON replaces values whose encoding exceeds maxLoggedBody with their
// size.
func clampJSON(value any) any {
	buf, err := json.Marshal(value)
	if err != nil || len(buf) <= maxLoggedBody {
		return value
	}
	return map[string]any{"_truncated": humanize.Bytes(uint64(len(buf)))}
}

func isBinary(data []byte) bool {
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return true
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
		data = data[size:]
	}
	return false
}

func clampString(value string) string {
	if len(value) <= maxLoggedBody {
		return value
	}
	truncated := value[:maxLoggedBody]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "...(truncated)"
}

func addFormField(fields map[string]any, key string, value any) {
	existing, ok := fields[key]
	if !ok {
		fields[key] = value
		return
	}
	if items, ok := existing.([]any); ok {
		fields[key] = append(items, value)
		return
	}
	fields[key] = []any{existing, value}
}
