// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh token persistence.
var (
	// ErrRefreshTokenNotFound is returned when a refresh token is not found.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenExpired is returned when a refresh token has expired.
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
	// ErrRefreshTokenRotated is returned when a compare-and-set rotation loses
	// the race: the token row exists but was already marked rotated.
	ErrRefreshTokenRotated = errors.New("refresh token already rotated")
)

// RefreshTokenRepository defines the interface for refresh token persistence.
//
// Tokens are stored by hash only. Rotation is a compare-and-set on the
// rotated flag; presenting a token whose flag is already set is the reuse
// signal that revokes the whole session.
type RefreshTokenRepository interface {
	// Create persists a new refresh token for a session.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// FindByTokenHash retrieves a refresh token record by its securely stored hash.
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.RefreshToken, error)

	// MarkRotated sets the rotated flag on a token if and only if it is still
	// clear. Returns ErrRefreshTokenRotated when another refresh got there
	// first, ErrRefreshTokenNotFound when the row is gone.
	MarkRotated(ctx context.Context, id uuid.UUID) error

	// DeleteBySessionID removes every refresh token belonging to a session,
	// rotated ancestors included.
	DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error

	// DeleteByUserID removes all refresh tokens for a specific user.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes all expired refresh tokens and reports how many
	// were deleted. This should be called periodically for cleanup.
	DeleteExpired(ctx context.Context) (int64, error)
}
