package service

import (
	"context"

	"authcore/internal/domain/entity"
)

// VerifiedProfile carries identity claims attested by an external provider.
// Only claims the provider itself vouches for belong here; in particular
// EmailVerified reflects the provider's assertion, not ours.
type VerifiedProfile struct {
	ProviderAccountID string            // Provider-specific stable user ID (e.g. the OIDC 'sub' claim)
	Email             string            // Email address reported by the provider
	EmailVerified     bool              // Whether the provider attests the email is verified
	Phone             string            // Phone number reported by the provider, if any
	PhoneVerified     bool              // Whether the provider attests the phone is verified
	Name              string            // Display name
	AvatarURL         string            // URL to the user's profile picture
	Method            entity.AuthMethod // The authentication method this proof represents
	Secret            string            // Provider credential material to store alongside the account (e.g. serialized OAuth tokens)
	ExtraData         map[string]any    // Additional provider-specific claims
}

// IdentityProvider verifies proofs issued by an external identity provider.
type IdentityProvider interface {
	// Name returns the provider key used in account records and configuration,
	// e.g. "google" or "firebase".
	Name() string

	// VerifyIDToken checks a provider-issued ID token and returns the profile
	// it attests. Used when the client obtained the token directly, without a
	// server-side redirect.
	VerifyIDToken(ctx context.Context, idToken string) (*VerifiedProfile, error)
}

// RedirectProvider is an identity provider driven through an
// authorization-code redirect. The state and code verifier passed in here are
// managed by the verifier engine; the provider only embeds and replays them.
type RedirectProvider interface {
	IdentityProvider

	// AuthCodeURL builds the provider URL that starts the redirect flow.
	// The challenge is the hashed counterpart of the code verifier.
	AuthCodeURL(state string, codeChallenge string) string

	// Exchange redeems an authorization code for the attested profile.
	Exchange(ctx context.Context, code string, codeVerifier string) (*VerifiedProfile, error)
}
