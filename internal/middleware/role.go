package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole allows the request through when the token carries at least one
// of the given roles. Must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have, _ := c.Get(CtxRoles).([]string)
			for _, want := range roles {
				for _, r := range have {
					if strings.EqualFold(r, want) {
						return next(c)
					}
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
		}
	}
}

// RequirePermission allows the request through when the token's permission
// claims include every named permission. Permission names use the
// "module.action" form produced at issuance. Must run after JWTAuth.
func RequirePermission(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have, _ := c.Get(CtxPerms).([]string)
			for _, want := range perms {
				found := false
				for _, p := range have {
					if strings.EqualFold(p, want) {
						found = true
						break
					}
				}
				if !found {
					return c.JSON(http.StatusForbidden, echo.Map{"error": "missing permission"})
				}
			}
			return next(c)
		}
	}
}
