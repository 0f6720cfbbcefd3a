package usecase

import (
	"context"

	"authcore/internal/domain/entity"
	"authcore/internal/domain/service"

	"github.com/google/uuid"
)

// AuditUsecase persists authentication events delivered through the queue
// and answers queries over the recorded trail.
type AuditUsecase interface {
	// RecordEvent stores one delivered event. Safe to call twice with the
	// same event; queue delivery is at-least-once.
	RecordEvent(ctx context.Context, event *service.AuthEvent) error

	// ListUserEvents returns the most recent events for a user, newest first.
	ListUserEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.AuditEvent, error)
}
