package usecase

import (
	"context"
	"time"

	"authcore/internal/domain/entity"
	"authcore/internal/domain/service"

	"github.com/google/uuid"
)

// SessionTokens bundles the credentials minted for one session.
type SessionTokens struct {
	SessionID        uuid.UUID
	AccessToken      string
	RefreshToken     string
	SessionExpiresAt time.Time
}

// SessionUsecase creates, refreshes, and revokes sessions and the tokens
// bound to them.
type SessionUsecase interface {
	// CreateSession opens a session for a user and mints the initial access
	// and refresh tokens. When a per-user session cap is configured, the
	// oldest session is evicted to make room.
	CreateSession(ctx context.Context, userID uuid.UUID) (*SessionTokens, error)

	// Refresh rotates a refresh token: the presented token is retired and a
	// fresh access/refresh pair is issued. Presenting an already-rotated
	// token is treated as theft evidence and can revoke the whole session.
	Refresh(ctx context.Context, refreshToken string) (*SessionTokens, error)

	// InvalidateSession ends one session. Already-issued access tokens stay
	// cryptographically valid until they expire; callers needing immediate
	// effect must check session existence per request, which ValidateAccess
	// does.
	InvalidateSession(ctx context.Context, sessionID uuid.UUID) error

	// InvalidateUserSessions ends every session a user has, across devices.
	InvalidateUserSessions(ctx context.Context, userID uuid.UUID) error

	// ListSessions returns a user's sessions, oldest first.
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error)

	// ValidateAccess verifies an access token's signature and time bounds and
	// confirms the session it names still exists.
	ValidateAccess(ctx context.Context, accessToken string) (*service.Claims, error)
}
