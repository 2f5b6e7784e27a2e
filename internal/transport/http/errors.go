package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/manifest"
	"github.com/njprem/regdocs/internal/ragflow"
	"github.com/njprem/regdocs/internal/service"
	"github.com/njprem/regdocs/internal/util"
)

func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrVersionNotFound),
		errors.Is(err, service.ErrFileNotFound),
		errors.Is(err, service.ErrRagDocumentNotFound):
		return c.JSON(http.StatusNotFound, util.Error(err.Error()))
	case errors.Is(err, service.ErrInvalidDepartment),
		errors.Is(err, service.ErrFileRequired),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrNoFile),
		errors.Is(err, service.ErrChunkMethodRequired),
		errors.Is(err, service.ErrInvalidKnowledgeBase),
		errors.Is(err, service.ErrDisplayNameRequired),
		errors.Is(err, service.ErrRagDocumentIDRequired),
		errors.Is(err, service.ErrNoFilesSelected):
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, util.Error(err.Error()))
	case manifest.IsManifestError(err):
		return c.JSON(http.StatusUnprocessableEntity, util.Error(err.Error()))
	case errors.Is(err, service.ErrRagDisabled):
		return c.JSON(http.StatusServiceUnavailable, util.Error(err.Error()))
	}

	var apiErr *ragflow.APIError
	if errors.As(err, &apiErr) {
		if strings.Contains(strings.ToLower(apiErr.Message), "lacks permission") {
			return c.JSON(http.StatusForbidden, util.Envelope{
				"error":  "permission denied",
				"detail": "check that kb names a dataset, e.g. Regulation, not a dataset id",
			})
		}
		return c.JSON(http.StatusBadGateway, util.Envelope{"error": "ragflow error", "detail": apiErr.Message})
	}

	log.Printf("[http] %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
}
