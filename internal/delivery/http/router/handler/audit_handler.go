package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"authcore/internal/delivery/http/response"
	"authcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditHandler answers queries over the caller's recorded audit trail.
type AuditHandler struct {
	uc     usecase.AuditUsecase
	logger *slog.Logger
}

// NewAuditHandler is the constructor for AuditHandler, injected by Fx.
func NewAuditHandler(uc usecase.AuditUsecase, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		uc:     uc,
		logger: logger,
	}
}

// ListMyEvents returns the caller's most recent audit events, newest first.
func (h *AuditHandler) ListMyEvents(c echo.Context) error {
	userID, err := contextUserID(c)
	if err != nil {
		return err
	}

	limit := defaultAuditLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr == nil && parsed > 0 {
			limit = min(parsed, maxAuditLimit)
		}
	}

	events, err := h.uc.ListUserEvents(c.Request().Context(), userID, limit)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newAuditEventResponses(events))
}
