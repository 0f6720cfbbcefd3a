package service

import (
	"context"
	"time"
)

// Audit event kinds published to the queue.
const (
	EventUserCreated    = "user.created"
	EventAccountLinked  = "account.linked"
	EventCodeIssued     = "code.issued"
	EventCodeRedeemed   = "code.redeemed"
	EventSessionCreated = "session.created"
	EventSessionRevoked = "session.revoked"
	EventRefreshReuse   = "refresh.reuse"
)

// AuthEvent represents an authentication event to be processed by the audit worker.
// Events never carry raw secrets; codes and tokens appear only as hashes if at all.
type AuthEvent struct {
	RequestID  string    `json:"request_id,omitempty"` // For distributed tracing
	Kind       string    `json:"kind"`                 // One of the Event* constants
	UserID     string    `json:"user_id,omitempty"`    // Affected user, when known
	SessionID  string    `json:"session_id,omitempty"` // Affected session, when known
	Provider   string    `json:"provider,omitempty"`   // Provider involved in the event
	Method     string    `json:"method,omitempty"`     // Authentication method involved
	Detail     string    `json:"detail,omitempty"`     // Free-form context for the audit trail
	OccurredAt time.Time `json:"occurred_at"`          // When the event happened
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishAuthEvent publishes an authentication event for async processing
	PublishAuthEvent(ctx context.Context, event *AuthEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
