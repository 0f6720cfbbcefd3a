package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one authenticated client lifetime. It is created at
// successful sign-in and deleted on sign-out, revocation, or expiry.
// Access tokens carry the session ID so revocation can be checked per request.
type Session struct {
	ID        uuid.UUID // The unique ID for this session record.
	UserID    uuid.UUID // Links this session to the User it belongs to.
	ExpiresAt time.Time // The exact time when this session ends regardless of refresh activity.
	CreatedAt time.Time // Timestamp of when the user signed in.
}

// Expired reports whether the session has passed its expiration time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RefreshToken is the rotation record backing a session. Each refresh
// atomically replaces the stored hash; presenting a superseded token is
// treated as a replay signal.
type RefreshToken struct {
	ID        uuid.UUID // The unique ID for this specific refresh token record.
	SessionID uuid.UUID // Links this token to the Session it extends.
	UserID    uuid.UUID // Links this token to the User, for bulk revocation.
	TokenHash string    // Stores a SHA-256 hash of the raw refresh token for secure comparison in the database.
	Rotated   bool      // Set when this token has been exchanged for its successor; presenting it again is a reuse.
	ExpiresAt time.Time // The exact time when this refresh token will expire and become invalid.
	CreatedAt time.Time // Timestamp of when this token was issued.
}

// Expired reports whether the refresh token has passed its expiration time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
