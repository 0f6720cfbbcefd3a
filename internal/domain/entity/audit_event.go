package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is a persisted record of a security-significant authentication
// outcome, written by the audit worker from published events.
type AuditEvent struct {
	ID         uuid.UUID // The unique ID for this audit record.
	Kind       string    // The event kind, e.g. "user.created", "refresh_token.reused".
	UserID     uuid.UUID // The user the event concerns; may be uuid.Nil for pre-identity events.
	Provider   string    // The provider involved, when applicable.
	RequestID  string    // The originating request ID, for tracing.
	Detail     string    // Free-form JSON detail payload.
	OccurredAt time.Time // When the event happened at the source.
	CreatedAt  time.Time // When the event was persisted.
}
