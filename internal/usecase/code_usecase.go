package usecase

import (
	"context"
	"time"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// IssueCodeInput describes a one-time code to mint and deliver.
type IssueCodeInput struct {
	// AccountRef is the channel address the code proves control of; it
	// doubles as the provider account ID for the pending account.
	AccountRef string
	Provider   string
	Method     entity.AuthMethod

	// TTL overrides the configured code lifetime when positive.
	TTL time.Duration

	// VerifierID optionally ties the code to an in-flight OAuth round trip.
	VerifierID *uuid.UUID
}

// IssueCodeOutput returns the minted code. The raw code has already been
// handed to the delivery seam; it is returned as well so callers can embed it
// in hand-off links.
type IssueCodeOutput struct {
	Code      string
	ExpiresAt time.Time
}

// RedeemCodeInput carries one redemption attempt.
type RedeemCodeInput struct {
	Provider string
	Code     string
}

// RedeemCodeOutput reports a successful redemption with everything the
// account linker needs to run.
type RedeemCodeOutput struct {
	AccountRef string
	Method     entity.AuthMethod

	// Profile carries the now-proven channel claim, verified flag set.
	Profile Profile
}

// VerifierGrant is the client-facing half of a new verifier: the ID travels
// as the OAuth state parameter and the signature is the PKCE code verifier.
// Only the signature's hash is stored.
type VerifierGrant struct {
	ID        uuid.UUID
	Signature string
	ExpiresAt time.Time
}

// CodeUsecase is the verification code engine: it mints, stores, and redeems
// one-time codes and OAuth round-trip verifiers, enforcing expiry and single
// use through the store's transaction boundary.
type CodeUsecase interface {
	// IssueCode mints a cryptographically random code, supersedes any earlier
	// live code for the same accountRef and provider, and hands the code to
	// the delivery seam.
	IssueCode(ctx context.Context, input *IssueCodeInput) (*IssueCodeOutput, error)

	// RedeemCode consumes a code exactly once. The second of two concurrent
	// redeemers fails; so does any replay after success.
	RedeemCode(ctx context.Context, input *RedeemCodeInput) (*RedeemCodeOutput, error)

	// CreateVerifier opens an OAuth round trip, returning the state ID and
	// the raw PKCE signature for the client leg.
	CreateVerifier(ctx context.Context, provider string, redirectURI string) (*VerifierGrant, error)

	// ConsumeVerifier closes a round trip exactly once, checking the
	// presented signature against the stored hash.
	ConsumeVerifier(ctx context.Context, id uuid.UUID, signature string) (*entity.Verifier, error)
}
