package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims defines the custom claims carried by access tokens.
type Claims struct {
	UserID    uuid.UUID `json:"uid"`
	SessionID uuid.UUID `json:"sid"`
	jwt.RegisteredClaims
}

// TokenService defines the interface for minting and validating session credentials.
// This abstracts the signing algorithm and key handling from the use cases.
//
// Access tokens are asymmetrically signed so resource servers can verify them
// offline against the published key set, without calling back into this
// service. Refresh tokens are opaque random strings; only their hash is ever
// persisted.
type TokenService interface {
	// GenerateAccessToken creates a signed access token bound to a user and session.
	GenerateAccessToken(userID, sessionID uuid.UUID) (string, error)

	// ValidateToken checks the signature and time bounds of an access token string.
	ValidateToken(tokenString string) (*Claims, error)

	// NewRefreshToken mints an opaque refresh token, returning both the raw
	// value for the client and the hash for storage.
	NewRefreshToken() (raw string, hash string, err error)

	// HashToken computes the storage hash of a raw refresh token.
	HashToken(raw string) string

	// PublicKeySet returns the JSON Web Key Set containing the active
	// verification keys, ready to serve at the well-known endpoint.
	PublicKeySet() ([]byte, error)

	// GetAccessTokenDuration returns the configured lifetime for access tokens.
	GetAccessTokenDuration() time.Duration

	// GetRefreshTokenDuration returns the configured lifetime for refresh tokens.
	GetRefreshTokenDuration() time.Duration
}
