// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"authcore/internal/delivery/http/middleware"
	"authcore/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler      *handler.AuthHandler
	SessionHandler   *handler.SessionHandler
	AuditHandler     *handler.AuditHandler
	WellKnownHandler *handler.WellKnownHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler      *handler.AuthHandler
	sessionHandler   *handler.SessionHandler
	auditHandler     *handler.AuditHandler
	wellKnownHandler *handler.WellKnownHandler
	authMiddleware   *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:      params.AuthHandler,
		sessionHandler:   params.SessionHandler,
		auditHandler:     params.AuditHandler,
		wellKnownHandler: params.WellKnownHandler,
		authMiddleware:   params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Public key set for resource servers
	e.GET("/.well-known/jwks.json", r.wellKnownHandler.JWKS)

	// Sign-in flows
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/email/begin", r.authHandler.BeginEmailSignIn)
		authGroup.POST("/email/complete", r.authHandler.CompleteEmailSignIn)
		authGroup.GET("/email/qr", r.authHandler.EmailSignInQR)

		authGroup.GET("/oauth/:provider/begin", r.authHandler.BeginOAuth)
		authGroup.GET("/oauth/:provider/callback", r.authHandler.OAuthCallback)

		authGroup.POST("/token/signin", r.authHandler.SignInWithIDToken)
		authGroup.POST("/credentials/signin", r.authHandler.SignInWithCredentials)

		authGroup.POST("/refresh", r.sessionHandler.Refresh)
	}

	// Session management requires a live session
	authenticated := authGroup.Group("")
	authenticated.Use(r.authMiddleware.Authenticate)
	{
		authenticated.POST("/signout", r.sessionHandler.SignOut)
		authenticated.GET("/sessions", r.sessionHandler.ListSessions)
		authenticated.DELETE("/sessions", r.sessionHandler.RevokeAllSessions)
		authenticated.DELETE("/sessions/:id", r.sessionHandler.RevokeSession)
		authenticated.GET("/audit", r.auditHandler.ListMyEvents)
	}
}
