package entity

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCode is a one-time secret proving control of an email or phone
// channel. At most one live code exists per (accountRef, provider); issuing a
// newer code invalidates the older one. A code is redeemable once, and only
// before its expiration time.
type VerificationCode struct {
	ID         uuid.UUID  // The unique ID for this code record.
	AccountRef string     // The channel address the code was sent to (email or phone), also the pending accounts's provider account ID.
	Provider   string     // The provider that issued the code, e.g. "email", "phone".
	CodeHash   string     // SHA-256 hash of the raw code; the raw secret is never stored.
	VerifierID *uuid.UUID // Optional link to the Verifier securing an OAuth leg of the same flow.
	Method     AuthMethod // The authentication method this code belongs to.
	UsedAt     *time.Time // Set when the code is redeemed; a used row stays behind so replays are recognized.
	ExpiresAt  time.Time  // The exact time after which redemption fails.
	CreatedAt  time.Time  // Timestamp of when the code was issued.
}

// Expired reports whether the code has passed its expiration time.
func (c *VerificationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Used reports whether the code has already been redeemed.
func (c *VerificationCode) Used() bool {
	return c.UsedAt != nil
}

// Verifier secures one OAuth/PKCE round trip against CSRF and replay.
// It is consumed exactly once when the provider redirects back.
type Verifier struct {
	ID           uuid.UUID // The unique ID, sent to the provider as the OAuth state parameter.
	SignatureSum string    // SHA-256 hash of the verifier signature (the PKCE code verifier).
	Provider     string    // The provider this round trip targets.
	RedirectURI  string    // The redirect URI the flow was started with, rechecked on completion.
	ExpiresAt    time.Time // The exact time after which the round trip is abandoned.
	CreatedAt    time.Time // Timestamp of when the flow started.
}

// Expired reports whether the verifier has passed its expiration time.
func (v *Verifier) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
