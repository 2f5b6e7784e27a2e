package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/service"
	"github.com/njprem/regdocs/internal/util"
)

type DocumentHandler struct {
	docs *service.DocumentService
}

func RegisterDocuments(e *echo.Echo, admin echo.MiddlewareFunc, docs *service.DocumentService) {
	h := &DocumentHandler{docs: docs}

	api := e.Group("/api")
	api.GET("/departments", h.departments)
	api.GET("/docs", h.list)
	api.GET("/docs/:id", h.get)
	api.GET("/docs/:id/ragflow", h.ragStatus)
	api.GET("/uploads/recent", h.recentUploads)
	api.GET("/files", h.listFiles)
	api.GET("/files/download/*", h.download)

	api.POST("/docs", h.upload, admin)
	api.DELETE("/docs/:id", h.delete, admin)
	api.POST("/versions/:id/toggle", h.toggleVersion, admin)
	api.POST("/docs/:id/ragflow/resync", h.resync, admin)
	api.POST("/docs/:id/ragflow/chunking", h.updateChunking, admin)
}

func (h *DocumentHandler) departments(c echo.Context) error {
	return c.JSON(http.StatusOK, util.Data("departments", h.docs.Departments().Names()))
}

func (h *DocumentHandler) list(c echo.Context) error {
	filter, err := parseDocumentFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	page, err := h.docs.List(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *DocumentHandler) get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	item, err := h.docs.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// upload answers 207 when the file was stored but the RAG step failed.
func (h *DocumentHandler) upload(c echo.Context) error {
	req, closeFile, err := parseUploadRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	defer closeFile()

	res, err := h.docs.Upload(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusOK
	if !res.RagSynced() {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, res)
}

func (h *DocumentHandler) delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	warnings, err := h.docs.Delete(c.Request().Context(), id, c.QueryParam("kb"))
	if err != nil {
		return writeError(c, err)
	}
	resp := util.Message("document deleted with all versions").With("ragflow_warnings", nil)
	if len(warnings) > 0 {
		resp = resp.With("ragflow_warnings", warnings)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *DocumentHandler) toggleVersion(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	v, err := h.docs.ToggleVersion(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	state := "inactive"
	if v.IsActive {
		state = "active"
	}
	return c.JSON(http.StatusOK, util.Message(fmt.Sprintf("version %d is now %s", v.ID, state)).With("version", v))
}

func (h *DocumentHandler) ragStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	st, err := h.docs.RagStatus(c.Request().Context(), id, c.QueryParam("kb"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *DocumentHandler) resync(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	var payload resyncPayload
	if err := bindOptionalJSON(c, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	res, err := h.docs.Resync(c.Request().Context(), id, c.QueryParam("kb"), payload.options())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *DocumentHandler) updateChunking(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	var payload struct {
		ChunkingMethod string         `json:"chunking_method"`
		ChunkMethod    string         `json:"chunk_method"`
		ParserConfig   map[string]any `json:"parser_config"`
		Reparse        *bool          `json:"reparse"`
	}
	if err := bindOptionalJSON(c, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	update := domain.ChunkingUpdate{
		Method:       firstNonEmpty(payload.ChunkingMethod, payload.ChunkMethod),
		ParserConfig: payload.ParserConfig,
		Reparse:      payload.Reparse == nil || *payload.Reparse,
	}
	res, err := h.docs.UpdateChunking(c.Request().Context(), id, strings.TrimSpace(c.QueryParam("kb")), update)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *DocumentHandler) recentUploads(c echo.Context) error {
	items, err := h.docs.RecentUploads(c.Request().Context(), strings.TrimSpace(c.QueryParam("kb")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *DocumentHandler) listFiles(c echo.Context) error {
	files, err := h.docs.ListFiles(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, files)
}

func (h *DocumentHandler) download(c echo.Context) error {
	rel := c.Param("*")
	if unescaped, err := url.PathUnescape(rel); err == nil {
		rel = unescaped
	}
	rc, obj, err := h.docs.OpenFile(c.Request().Context(), rel)
	if err != nil {
		return writeError(c, err)
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(rel))
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	if obj.Size > 0 {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": path.Base(rel)}))
	return c.Stream(http.StatusOK, contentType, rc)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parseDocumentFilter(c echo.Context) (domain.DocumentFilter, error) {
	filter := domain.DocumentFilter{
		Department: strings.TrimSpace(c.QueryParam("department")),
		Query:      strings.TrimSpace(c.QueryParam("q")),
	}
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(c.QueryParam("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

// parseUploadRequest reads the multipart upload form. The returned func closes
// the uploaded file.
func parseUploadRequest(c echo.Context) (domain.UploadRequest, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return domain.UploadRequest{}, nil, errors.New("file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return domain.UploadRequest{}, nil, errors.New("unable to read upload")
	}

	req := domain.UploadRequest{
		File:          src,
		FileName:      fh.Filename,
		Size:          fh.Size,
		ContentType:   fh.Header.Get(echo.HeaderContentType),
		Title:         strings.TrimSpace(c.FormValue("title")),
		Department:    strings.TrimSpace(c.FormValue("department")),
		DocNo:         strings.TrimSpace(c.FormValue("doc_no")),
		DateIssued:    strings.TrimSpace(c.FormValue("date_issued")),
		ReviewMeeting: strings.TrimSpace(c.FormValue("review_meeting")),
		VersionCode:   strings.TrimSpace(c.FormValue("version_code")),
		KnowledgeBase: strings.TrimSpace(firstNonEmpty(c.FormValue("kb"), c.QueryParam("kb"))),
		SyncToRAG:     isTruthy(c.FormValue("sync_to_ragflow")),
	}

	opts := &domain.ChunkingOptions{
		Method:       strings.TrimSpace(firstNonEmpty(c.FormValue("chunk_method"), c.FormValue("chunking_method"))),
		Pattern:      firstNonEmpty(c.FormValue("chunk_regex"), c.FormValue("chunk_pattern")),
		HeadingRegex: c.FormValue("chunk_heading_regex"),
	}
	if opts.Size, err = optionalInt(c.FormValue("chunk_size")); err != nil {
		src.Close()
		return domain.UploadRequest{}, nil, fmt.Errorf("chunk_size: %w", err)
	}
	if opts.Overlap, err = optionalInt(c.FormValue("chunk_overlap")); err != nil {
		src.Close()
		return domain.UploadRequest{}, nil, fmt.Errorf("chunk_overlap: %w", err)
	}
	if !opts.IsEmpty() {
		req.Chunking = opts
	}
	return req, func() { src.Close() }, nil
}

// resyncPayload accepts chunking options either nested or as flat keys,
// including the chunk_* aliases.
type resyncPayload struct {
	Chunking          *domain.ChunkingOptions `json:"chunking"`
	ParseOptions      *domain.ChunkingOptions `json:"parse_options"`
	Method            string                  `json:"method"`
	ChunkMethod       string                  `json:"chunk_method"`
	ChunkingMethod    string                  `json:"chunking_method"`
	Size              *int                    `json:"size"`
	ChunkSize         *int                    `json:"chunk_size"`
	Overlap           *int                    `json:"overlap"`
	ChunkOverlap      *int                    `json:"chunk_overlap"`
	Pattern           string                  `json:"pattern"`
	ChunkRegex        string                  `json:"chunk_regex"`
	HeadingRegex      string                  `json:"heading_regex"`
	ChunkHeadingRegex string                  `json:"chunk_heading_regex"`
}

func (p resyncPayload) options() *domain.ChunkingOptions {
	if !p.Chunking.IsEmpty() {
		return p.Chunking
	}
	if !p.ParseOptions.IsEmpty() {
		return p.ParseOptions
	}
	flat := &domain.ChunkingOptions{
		Method:       firstNonEmpty(p.Method, p.ChunkMethod, p.ChunkingMethod),
		Size:         p.Size,
		Overlap:      p.Overlap,
		Pattern:      firstNonEmpty(p.ChunkRegex, p.Pattern),
		HeadingRegex: firstNonEmpty(p.ChunkHeadingRegex, p.HeadingRegex),
	}
	if p.ChunkSize != nil {
		flat.Size = p.ChunkSize
	}
	if p.ChunkOverlap != nil {
		flat.Overlap = p.ChunkOverlap
	}
	if flat.IsEmpty() {
		return nil
	}
	return flat
}

// bindOptionalJSON decodes a JSON body into dst; an empty body is fine.
func bindOptionalJSON(c echo.Context, dst any) error {
	body := c.Request().Body
	if body == nil {
		return nil
	}
	err := json.NewDecoder(body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func optionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("must be an integer")
	}
	return &v, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
