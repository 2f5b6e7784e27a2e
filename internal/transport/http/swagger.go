package http

import (
	"net/http"
	"os"
	"sync"

	"github.com/ghodss/yaml"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/njprem/regdocs/internal/util"
)

// RegisterSwagger serves the YAML API description at specPath as JSON under
// /swagger/doc.json, with the Swagger UI under /swagger. The spec is converted
// once, on first successful read.
func RegisterSwagger(e *echo.Echo, specPath string) {
	var (
		mu       sync.Mutex
		jsonSpec []byte
	)
	load := func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if jsonSpec != nil {
			return jsonSpec, nil
		}
		data, err := os.ReadFile(specPath)
		if err != nil {
			return nil, err
		}
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, err
		}
		jsonSpec = converted
		return jsonSpec, nil
	}

	e.GET("/swagger/doc.json", func(c echo.Context) error {
		spec, err := load()
		if err != nil {
			c.Logger().Errorf("load swagger spec %s: %v", specPath, err)
			return c.JSON(http.StatusInternalServerError, util.Error("unable to load swagger spec"))
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, spec)
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}
