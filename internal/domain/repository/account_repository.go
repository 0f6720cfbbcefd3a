// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for account persistence.
var (
	// ErrAccountNotFound is returned when an external account link is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountDuplicate is returned when creating an account that collides
	// with an existing (provider, providerAccountID) pair. Callers recover by
	// re-running the lookup; the pair's owner already exists.
	ErrAccountDuplicate = errors.New("account already exists")
)

// AccountRepository defines the standard operations for external account persistence.
// An account ties one (provider, providerAccountID) pair to exactly one user;
// the storage enforces the pair's uniqueness.
type AccountRepository interface {
	// FindByProvider retrieves an account by its provider and provider-specific ID.
	FindByProvider(ctx context.Context, provider string, providerAccountID string) (*entity.Account, error)

	// FindByUserID retrieves all accounts linked to a user.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Account, error)

	// Create persists a new account link. A duplicate (provider,
	// providerAccountID) pair fails with a uniqueness violation the caller
	// can recognize via the infrastructure's constraint helpers.
	Create(ctx context.Context, account *entity.Account) error

	// UpdateSecret replaces the stored provider secret (e.g. a refreshed
	// OAuth token) for an existing account.
	UpdateSecret(ctx context.Context, id uuid.UUID, secret string) error

	// DeleteByUserID removes all account links for a user.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
