// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrVerifierNotFound is returned when a verifier record does not exist,
// including when a concurrent consumer deleted it first.
var ErrVerifierNotFound = errors.New("verifier not found")

// VerifierRepository defines the operations for OAuth round-trip verifier persistence.
//
// A verifier is consumed by deleting it; the delete doubles as the
// exactly-once gate. Whichever caller deletes the row wins, every other
// caller sees ErrVerifierNotFound.
type VerifierRepository interface {
	// Create persists a new verifier record.
	Create(ctx context.Context, verifier *entity.Verifier) error

	// FindByID retrieves a verifier by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Verifier, error)

	// Delete removes a verifier record. Returns ErrVerifierNotFound when the
	// row was already gone, which callers treat as a lost consumption race.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes all expired verifier records and reports how many
	// were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
