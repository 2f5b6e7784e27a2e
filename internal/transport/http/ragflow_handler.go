package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/service"
	"github.com/njprem/regdocs/internal/util"
)

type RagflowHandler struct {
	rag *service.RagService
}

func RegisterRagflow(e *echo.Echo, admin echo.MiddlewareFunc, rag *service.RagService) {
	h := &RagflowHandler{rag: rag}

	api := e.Group("/api")
	api.GET("/knowledge-bases", h.knowledgeBases)
	api.GET("/ragflow/kb", h.knowledgeBases)
	api.GET("/ragflow/docs", h.listDocuments)
	api.GET("/ragflow/docs/matches", h.matches)

	api.DELETE("/ragflow/docs/by-display-name", h.deleteByDisplayName, admin)
	api.DELETE("/ragflow/docs/:id", h.deleteByID, admin)
	api.POST("/ragflow/dataset/chunking", h.datasetChunking, admin)
}

func (h *RagflowHandler) knowledgeBases(c echo.Context) error {
	limit := queryInt(c, "limit", 0)
	items, err := h.rag.KnowledgeBases(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *RagflowHandler) listDocuments(c echo.Context) error {
	kb := strings.TrimSpace(c.QueryParam("kb"))
	items, err := h.rag.ListDocuments(c.Request().Context(), kb, strings.TrimSpace(c.QueryParam("q")), queryInt(c, "limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// displayNameTarget reads the target name from ?name= or a JSON body
// {"display_name", "kb"}.
func displayNameTarget(c echo.Context) (kb, name string, err error) {
	kb = strings.TrimSpace(c.QueryParam("kb"))
	name = strings.TrimSpace(c.QueryParam("name"))
	if name != "" {
		return kb, name, nil
	}
	var payload struct {
		DisplayName string `json:"display_name"`
		KB          string `json:"kb"`
	}
	if err := bindOptionalJSON(c, &payload); err != nil {
		return "", "", err
	}
	if kb == "" {
		kb = strings.TrimSpace(payload.KB)
	}
	return kb, strings.TrimSpace(payload.DisplayName), nil
}

func (h *RagflowHandler) matches(c echo.Context) error {
	kb, name, err := displayNameTarget(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if name == "" {
		return writeError(c, service.ErrDisplayNameRequired)
	}
	res, err := h.rag.MatchesExact(c.Request().Context(), kb, name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RagflowHandler) deleteByDisplayName(c echo.Context) error {
	kb, name, err := displayNameTarget(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	res, err := h.rag.DeleteByDisplayName(c.Request().Context(), kb, name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RagflowHandler) deleteByID(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.rag.DeleteByID(c.Request().Context(), c.QueryParam("kb"), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true, "deleted_id": id})
}

func (h *RagflowHandler) datasetChunking(c echo.Context) error {
	var payload struct {
		KB             string `json:"kb"`
		ChunkingMethod string `json:"chunking_method"`
		ChunkMethod    string `json:"chunk_method"`
	}
	if err := bindOptionalJSON(c, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	kb := strings.TrimSpace(firstNonEmpty(c.QueryParam("kb"), payload.KB))
	res, err := h.rag.UpdateDatasetChunking(c.Request().Context(), kb, firstNonEmpty(payload.ChunkingMethod, payload.ChunkMethod))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// queryInt falls back to def when the parameter is missing or malformed.
func queryInt(c echo.Context, name string, def int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
