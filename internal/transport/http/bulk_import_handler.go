package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/manifest"
	"github.com/njprem/regdocs/internal/service"
	"github.com/njprem/regdocs/internal/util"
)

var templateRows = [][]string{
	{"法規名稱", "檔名", "處室", "最後更新日期"},
	{"學生請假規則", "student-leave.pdf", "學務處", "2024/03/05"},
	{"圖書館借閱辦法", "library/loans", "圖書館", ""},
}

type BulkImportHandler struct {
	importer *service.BulkImportService
	maxBytes int64
}

func RegisterBulkImports(e *echo.Echo, admin echo.MiddlewareFunc, importer *service.BulkImportService, maxBytes int64) {
	h := &BulkImportHandler{importer: importer, maxBytes: maxBytes}

	group := e.Group("/api/bulk-imports")
	group.GET("/template", h.template)
	group.POST("", h.create, admin)
}

func (h *BulkImportHandler) template(c echo.Context) error {
	text, err := manifest.EncodeCSV(templateRows)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, util.Error("could not generate template"))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="manifest.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte("\ufeff"+text))
}

// create runs an import over the uploaded selection and answers once every
// entry has been processed. Each "files" part may be paired by position with
// a "paths" value carrying its path inside the picked directory; multipart
// file names lose their directories.
func (h *BulkImportHandler) create(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("multipart form with files is required"))
	}
	files, err := h.readSelection(form.File["files"], form.Value["paths"])
	if err != nil {
		if errors.Is(err, service.ErrFileTooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, util.Error("selection exceeds size limit"))
		}
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}

	kb := firstNonEmpty(c.FormValue("kb"), c.QueryParam("kb"))
	result, err := h.importer.Run(c.Request().Context(), files, kb, nil)
	if err != nil {
		if manifest.IsManifestError(err) {
			return c.JSON(http.StatusUnprocessableEntity, util.Error(err.Error()).With("import", result))
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.Data("import", result))
}

func (h *BulkImportHandler) readSelection(headers []*multipart.FileHeader, paths []string) ([]manifest.File, error) {
	if len(headers) == 0 {
		return nil, service.ErrNoFilesSelected
	}
	var total int64
	files := make([]manifest.File, 0, len(headers))
	for i, fh := range headers {
		rel := fh.Filename
		if i < len(paths) && strings.TrimSpace(paths[i]) != "" {
			rel = strings.TrimSpace(paths[i])
		}
		rel = strings.ReplaceAll(rel, `\`, "/")

		remaining := int64(-1)
		if h.maxBytes > 0 {
			remaining = h.maxBytes - total
		}
		data, err := readPart(fh, remaining)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		files = append(files, manifest.NewBytesFile(rel, data))
	}
	return files, nil
}

// readPart reads one uploaded file, failing with ErrFileTooLarge beyond
// remaining bytes. A negative remaining means no limit.
func readPart(fh *multipart.FileHeader, remaining int64) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, errors.New("unable to read upload " + fh.Filename)
	}
	defer src.Close()

	reader := io.Reader(src)
	if remaining >= 0 {
		reader = io.LimitReader(src, remaining+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.New("failed reading upload " + fh.Filename)
	}
	if remaining >= 0 && int64(len(data)) > remaining {
		return nil, service.ErrFileTooLarge
	}
	return data, nil
}
