package handler

import (
	"net/http"

	"authcore/internal/delivery/http/response"
	"authcore/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// WellKnownHandler serves the token issuer's published metadata.
type WellKnownHandler struct {
	tokens service.TokenService
}

// NewWellKnownHandler is the constructor for WellKnownHandler, injected by Fx.
func NewWellKnownHandler(tokens service.TokenService) *WellKnownHandler {
	return &WellKnownHandler{tokens: tokens}
}

// JWKS serves the public key set resource servers verify access tokens with.
func (h *WellKnownHandler) JWKS(c echo.Context) error {
	keySet, err := h.tokens.PublicKeySet()
	if err != nil {
		return errors.WithStack(err)
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=300")

	return c.Blob(http.StatusOK, "application/json", keySet)
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}
