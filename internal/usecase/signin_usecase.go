package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BeginEmailSignInInput starts an email or phone code flow.
type BeginEmailSignInInput struct {
	// Provider names the configured email or phone provider to use.
	Provider string

	// AccountRef is the email address or phone number to send the code to.
	AccountRef string

	// WithQR requests a hand-off QR code of the sign-in link, for completing
	// the flow on a second device.
	WithQR bool
}

// BeginEmailSignInOutput acknowledges the issued code without revealing it.
type BeginEmailSignInOutput struct {
	ExpiresAt time.Time

	// HandoffLink is the sign-in URL the code was embedded in, when a QR was
	// requested.
	HandoffLink string

	// QRCode is the rendered PNG of HandoffLink, when requested.
	QRCode []byte
}

// CompleteEmailSignInInput redeems a delivered code.
type CompleteEmailSignInInput struct {
	Provider string
	Code     string
}

// BeginOAuthInput starts a redirect-based OAuth flow.
type BeginOAuthInput struct {
	Provider    string
	RedirectURI string
}

// BeginOAuthOutput carries the provider URL to send the client to.
type BeginOAuthOutput struct {
	AuthURL string

	// State is the verifier ID the provider will echo back.
	State string

	// Signature is the PKCE code verifier. The delivery layer hands it to the
	// client (an HttpOnly cookie, typically) and it must come back in
	// CompleteOAuthInput.Signature. It never goes to the provider.
	Signature string
}

// CompleteOAuthInput finishes a redirect flow with what the provider sent back.
type CompleteOAuthInput struct {
	Provider string
	State    string

	// Code is the provider's authorization code.
	Code string

	// Signature is the PKCE verifier the client held onto since BeginOAuth.
	Signature string

	RedirectURI string
}

// IDTokenSignInInput signs in with a provider-issued ID token obtained
// directly by the client, without a server-side redirect.
type IDTokenSignInInput struct {
	Provider string
	IDToken  string
}

// CredentialsSignInInput signs in with an identifier/secret pair.
type CredentialsSignInInput struct {
	Provider   string
	Identifier string
	Secret     string

	// Name seeds the profile when this sign-in creates a new user.
	Name string
}

// SignInResult is the outcome every completed sign-in flow converges on.
type SignInResult struct {
	UserID    uuid.UUID
	IsNewUser bool
	Session   *SessionTokens
}

// SignInUsecase orchestrates complete sign-in flows: proof verification,
// account linking, and session issuance in order.
type SignInUsecase interface {
	// BeginEmailSignIn issues and delivers a one-time code for an email or
	// phone channel.
	BeginEmailSignIn(ctx context.Context, input *BeginEmailSignInInput) (*BeginEmailSignInOutput, error)

	// CompleteEmailSignIn redeems a code, links the proven identity, and
	// opens a session.
	CompleteEmailSignIn(ctx context.Context, input *CompleteEmailSignInInput) (*SignInResult, error)

	// BeginOAuth opens an OAuth round trip guarded by a verifier.
	BeginOAuth(ctx context.Context, input *BeginOAuthInput) (*BeginOAuthOutput, error)

	// CompleteOAuth consumes the verifier, exchanges the authorization code,
	// links the attested identity, and opens a session.
	CompleteOAuth(ctx context.Context, input *CompleteOAuthInput) (*SignInResult, error)

	// SignInWithIDToken verifies a client-obtained ID token, links the
	// attested identity, and opens a session.
	SignInWithIDToken(ctx context.Context, input *IDTokenSignInInput) (*SignInResult, error)

	// SignInWithCredentials verifies an identifier/secret pair against the
	// stored account secret, registering a new identity on first use.
	SignInWithCredentials(ctx context.Context, input *CredentialsSignInInput) (*SignInResult, error)

	// SignOut ends the named session.
	SignOut(ctx context.Context, sessionID uuid.UUID) error
}
