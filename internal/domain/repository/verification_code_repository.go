// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for verification code persistence.
var (
	// ErrVerificationCodeNotFound is returned when no code record exists for the lookup.
	ErrVerificationCodeNotFound = errors.New("verification code not found")
	// ErrVerificationCodeConsumed is returned when a compare-and-set redemption
	// loses the race: the row exists but was already marked used.
	ErrVerificationCodeConsumed = errors.New("verification code already consumed")
)

// VerificationCodeRepository defines the operations for one-time code persistence.
//
// Redemption is a compare-and-set on the used marker so that two concurrent
// redeemers cannot both succeed; the loser gets ErrVerificationCodeConsumed.
type VerificationCodeRepository interface {
	// Create persists a new code record.
	Create(ctx context.Context, code *entity.VerificationCode) error

	// FindByCodeHash retrieves a code record by its hash, scoped to the
	// provider, used or not. Expiry and the used marker are the caller's
	// concern.
	FindByCodeHash(ctx context.Context, provider string, codeHash string) (*entity.VerificationCode, error)

	// MarkUsed sets the used marker on a code record if and only if it is
	// still unset. Returns ErrVerificationCodeConsumed when another redeemer
	// got there first, ErrVerificationCodeNotFound when the row is gone.
	MarkUsed(ctx context.Context, id uuid.UUID) error

	// Delete removes a single code record.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByAccountRef removes every code record for the (accountRef,
	// provider) pair. Issuing a new code calls this first so at most one
	// live code exists per destination.
	DeleteByAccountRef(ctx context.Context, accountRef string, provider string) error

	// DeleteExpired removes all expired code records and reports how many
	// were deleted. Periodic housekeeping only; correctness never depends
	// on it running.
	DeleteExpired(ctx context.Context) (int64, error)
}
