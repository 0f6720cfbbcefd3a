// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the standard operations for user persistence.
// The application layer will depend on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByVerifiedEmail retrieves every user whose email matches and has
	// been verified. Deduplication during account linking only considers
	// verified addresses; an unverified match must not capture a sign-in.
	// The caller decides what more than one result means.
	FindByVerifiedEmail(ctx context.Context, email string) ([]*entity.User, error)

	// FindByVerifiedPhone retrieves every user whose phone number matches and
	// has been verified. Same contract as FindByVerifiedEmail.
	FindByVerifiedPhone(ctx context.Context, phone string) ([]*entity.User, error)

	// Create persists a new user entity to the storage.
	Create(ctx context.Context, user *entity.User) error

	// Update modifies an existing user entity in the storage.
	Update(ctx context.Context, user *entity.User) error
}
