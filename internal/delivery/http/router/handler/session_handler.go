package handler

import (
	"log/slog"
	"net/http"

	"authcore/internal/delivery/http/middleware"
	"authcore/internal/delivery/http/response"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionHandler serves token refresh and session management.
type SessionHandler struct {
	sessions usecase.SessionUsecase
	signIn   usecase.SignInUsecase
	logger   *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler, injected by Fx.
func NewSessionHandler(sessions usecase.SessionUsecase, signIn usecase.SignInUsecase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		signIn:   signIn,
		logger:   logger,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates a refresh token into a fresh access/refresh pair.
func (h *SessionHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tokens, err := h.sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newSessionTokensResponse(tokens))
}

// SignOut ends the caller's own session.
func (h *SessionHandler) SignOut(c echo.Context) error {
	sessionID, err := contextSessionID(c)
	if err != nil {
		return err
	}

	if err := h.signIn.SignOut(c.Request().Context(), sessionID); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "signed out"})
}

// ListSessions returns the caller's sessions, oldest first.
func (h *SessionHandler) ListSessions(c echo.Context) error {
	userID, err := contextUserID(c)
	if err != nil {
		return err
	}
	sessionID, err := contextSessionID(c)
	if err != nil {
		return err
	}

	sessions, err := h.sessions.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newSessionResponses(sessions, sessionID))
}

// RevokeSession ends one of the caller's sessions by ID.
func (h *SessionHandler) RevokeSession(c echo.Context) error {
	userID, err := contextUserID(c)
	if err != nil {
		return err
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("session id is not a valid UUID")
	}

	// Only the owner may revoke a session. The list is small; loading it is
	// cheaper than teaching the usecase about callers.
	sessions, err := h.sessions.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	owned := false
	for _, s := range sessions {
		if s.ID == targetID {
			owned = true

			break
		}
	}
	if !owned {
		return domainerrors.ErrSessionNotFound.WrapMessage("session does not belong to the caller")
	}

	if err := h.sessions.InvalidateSession(c.Request().Context(), targetID); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "session revoked"})
}

// RevokeAllSessions signs the caller out everywhere.
func (h *SessionHandler) RevokeAllSessions(c echo.Context) error {
	userID, err := contextUserID(c)
	if err != nil {
		return err
	}

	if err := h.sessions.InvalidateUserSessions(c.Request().Context(), userID); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "all sessions revoked"})
}

// contextUserID reads the authenticated user ID set by the auth middleware.
func contextUserID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, domainerrors.ErrAuthorization.WrapMessage("request carries no authenticated user")
	}

	return id, nil
}

func contextSessionID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(middleware.ContextKeySessionID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, domainerrors.ErrAuthorization.WrapMessage("request carries no session binding")
	}

	return id, nil
}
