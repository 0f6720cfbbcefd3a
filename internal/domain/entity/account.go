package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account represents one external identity linked to a User.
// A user signing in with Google has one record, the same user's magic-link
// email is another. Exactly one Account exists per (provider,
// providerAccountID) pair.
type Account struct {
	ID                uuid.UUID // The unique ID for this specific account record itself.
	UserID            uuid.UUID // Links this account to the User it belongs to.
	Provider          string    // The provider this identity came from, e.g. "google", "github", "email".
	ProviderAccountID string    // The user's unique ID at the provider (e.g. the OIDC 'sub' claim, or the email address itself for email flows).
	Secret            string    // Provider-specific secret material, e.g. the password hash for credentials providers. Empty otherwise.
	CreatedAt         time.Time // Timestamp of when this account was linked to the user.
	UpdatedAt         time.Time // Timestamp of the last modification to this account.
}
