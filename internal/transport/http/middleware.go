package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/regdocs/internal/util"
)

const contextAdminKey = "admin"

// RequireAdmin guards mutating routes with an admin bearer token. A nil
// manager leaves the routes open.
func RequireAdmin(jwt *util.JWTManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if jwt == nil {
			return next
		}
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if strings.TrimSpace(authHeader) == "" {
				return c.JSON(http.StatusUnauthorized, util.Error("missing authorization header"))
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return c.JSON(http.StatusUnauthorized, util.Error("invalid authorization header"))
			}
			claims, err := jwt.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, util.Error(err.Error()))
			}
			c.Set(contextAdminKey, claims)
			return next(c)
		}
	}
}

func CurrentAdmin(c echo.Context) (*util.AdminClaims, bool) {
	claims, ok := c.Get(contextAdminKey).(*util.AdminClaims)
	return claims, ok && claims != nil
}
