// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines the operations for session persistence.
// This supports multi-device login and remote logout functionality.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *entity.Session) error

	// FindByID retrieves a session by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// FindByUserID retrieves all sessions for a user, oldest first.
	// This allows users to see all their active sessions across different devices.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error)

	// Delete removes a session by its ID, effectively ending it.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByUserID removes all sessions for a specific user.
	// This is useful for "logout from all devices" functionality.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes all expired sessions and reports how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)

	// CountActiveByUserID returns the number of active (non-expired) sessions for a user.
	// This is used to enforce the per-user session ceiling.
	CountActiveByUserID(ctx context.Context, userID uuid.UUID) (int, error)
}
