package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HealthCheck reports the state of a dependency; a nil error means healthy.
type HealthCheck func(ctx context.Context) (string, error)

type RouterConfig struct {
	AllowOrigins []string
	// BodyLimit caps request bodies, e.g. "1G". Empty means no limit.
	BodyLimit string
	Checks    map[string]HealthCheck
}

func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	allowCredentials := true
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	registerLogging(e)

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderAuthorization,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderOrigin,
			echo.HeaderXRequestedWith,
		},
		AllowCredentials: allowCredentials,
	}))

	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, runChecks(c.Request().Context(), cfg.Checks))
	}
	e.GET("/health", health)
	e.GET("/api/health", health)
	return e
}

// runChecks reports every dependency on its own. The probe itself always
// answers 200.
func runChecks(ctx context.Context, checks map[string]HealthCheck) echo.Map {
	out := echo.Map{"ok": true}
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		detail, err := check(cctx)
		cancel()
		if err != nil {
			out[name] = echo.Map{"ok": false, "error": err.Error()}
			continue
		}
		out[name] = echo.Map{"ok": true, "detail": detail}
	}
	return out
}
