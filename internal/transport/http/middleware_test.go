package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/util"
)

func newTestJWT() *util.JWTManager {
	return util.NewJWTManager("test-secret", time.Hour)
}

func guardedEcho(jwt *util.JWTManager) *echo.Echo {
	e := echo.New()
	e.POST("/guarded", func(c echo.Context) error {
		claims, ok := CurrentAdmin(c)
		if !ok {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, claims.Subject)
	}, RequireAdmin(jwt))
	return e
}

func TestRequireAdmin(t *testing.T) {
	jwt := newTestJWT()
	token, _, err := jwt.Generate("ops")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	e := guardedEcho(jwt)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + token, http.StatusOK, "ops"},
		{"lower case scheme", "bearer " + token, http.StatusOK, "ops"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("expected body %q, got %q", tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireAdminWithoutSecretIsOpen(t *testing.T) {
	e := guardedEcho(nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/guarded", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("expected open route, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRunChecks(t *testing.T) {
	out := runChecks(context.Background(), map[string]HealthCheck{
		"ragflow": func(context.Context) (string, error) { return "", errors.New("connection refused") },
		"storage": func(context.Context) (string, error) { return "bucket ok", nil },
	})
	if out["ok"] != true {
		t.Fatalf("expected top-level ok, got %v", out["ok"])
	}
	rag, _ := out["ragflow"].(echo.Map)
	if rag["ok"] != false || rag["error"] != "connection refused" {
		t.Fatalf("unexpected ragflow entry %v", rag)
	}
	storage, _ := out["storage"].(echo.Map)
	if storage["ok"] != true || storage["detail"] != "bucket ok" {
		t.Fatalf("unexpected storage entry %v", storage)
	}
}

func TestHealthAlwaysAnswers200(t *testing.T) {
	e := NewRouter(RouterConfig{
		AllowOrigins: []string{"*"},
		Checks: map[string]HealthCheck{
			"ragflow": func(context.Context) (string, error) { return "", errors.New("down") },
		},
	})
	for _, path := range []string{"/health", "/api/health"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
