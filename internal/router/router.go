// Package router wires HTTP routes to handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/handler"
	"github.com/mkhosravi/venue-scheduler/internal/middleware"
)

// RegisterRoutes registers routes that carry no authentication.  Currently
// only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints.  Token issuance lives under
// /v1/auth without a session; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh_token body or a bearer token, so it is
	// registered without JWTAuth and resolves identity itself.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}
