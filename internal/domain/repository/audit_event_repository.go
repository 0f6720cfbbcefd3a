// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"time"

	"authcore/internal/domain/entity"

	"github.com/google/uuid"
)

// AuditEventRepository defines the operations for audit trail persistence.
// Events arrive through the worker's push subscription, not from request
// handlers, so writes here are never on a sign-in's critical path.
type AuditEventRepository interface {
	// Create persists a new audit event. Inserting an ID that already exists
	// is a no-op; delivery is at-least-once and record IDs are content-derived.
	Create(ctx context.Context, event *entity.AuditEvent) error

	// FindByUserID retrieves the most recent events for a user, newest first,
	// capped at limit.
	FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.AuditEvent, error)

	// DeleteOlderThan removes events that occurred before the cutoff and
	// reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
