// Package router maps the HTTP surface onto handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"storegate/internal/config"
	"storegate/internal/handler"
	"storegate/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication. Currently
// only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the auth endpoints. Public token operations live under
// /v1/auth behind the rate limiter; the authenticated user surface lives
// under /v1 behind JWT validation.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler,
	jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/sso", a.SSOLogin)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", u.Me)
	auth.PUT("/users/:id", u.Update)
	auth.POST("/me/password", u.ChangePassword)
	auth.POST("/me/logout-all", u.LogoutAll)
	auth.POST("/access/check", u.AccessCheck)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("Admin"))
	admin.GET("/users/:id", u.AdminGet)
}

// RegisterCatalog exposes the public product listing behind the Redis
// response cache.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group("/v1/catalog")
	g.Use(middleware.NewRedisCache(cacheCfg, rdb))
	g.GET("/products", h.List)
	g.GET("/products/:id", h.Get)
}
