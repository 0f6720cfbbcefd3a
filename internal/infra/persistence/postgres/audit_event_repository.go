package postgres

import (
	"context"
	"time"

	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// auditEventRepository implements the domain.AuditEventRepository interface using GORM.
type auditEventRepository struct {
	db *gorm.DB
}

// NewAuditEventRepository is the constructor for auditEventRepository.
func NewAuditEventRepository(db *gorm.DB) repository.AuditEventRepository {
	return &auditEventRepository{db: db}
}

// Create persists a new audit event. Record IDs are content-derived and
// delivery is at-least-once, so an insert that collides on the primary key is
// silently skipped rather than treated as a failure.
func (repo *auditEventRepository) Create(ctx context.Context, event *entity.AuditEvent) error {
	eventM := fromAuditEventDomain(event)

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(eventM).Error

	if err != nil {
		// OnConflict covers redelivery; anything else is a real failure.
		if isUniqueConstraintViolation(err) {
			return nil
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create audit event")
	}

	return nil
}

// FindByUserID retrieves the most recent events for a user, newest first.
// A non-positive limit returns everything.
func (repo *auditEventRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.AuditEvent, error) {
	query := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var eventModels []*model.AuditEventModel
	if err := query.Find(&eventModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find audit events by user id")
	}

	events := make([]*entity.AuditEvent, 0, len(eventModels))
	for _, eventM := range eventModels {
		events = append(events, toAuditEventDomain(eventM))
	}

	return events, nil
}

// DeleteOlderThan removes events that occurred before the cutoff.
func (repo *auditEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&model.AuditEventModel{})

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete audit events older than cutoff")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toAuditEventDomain converts a GORM AuditEventModel to a domain AuditEvent entity.
func toAuditEventDomain(data *model.AuditEventModel) *entity.AuditEvent {
	if data == nil {
		return nil
	}

	return &entity.AuditEvent{
		ID:         data.ID,
		Kind:       data.Kind,
		UserID:     data.UserID,
		Provider:   data.Provider,
		RequestID:  data.RequestID,
		Detail:     data.Detail,
		OccurredAt: data.OccurredAt,
		CreatedAt:  data.CreatedAt,
	}
}

// fromAuditEventDomain converts a domain AuditEvent entity to a GORM AuditEventModel.
func fromAuditEventDomain(data *entity.AuditEvent) *model.AuditEventModel {
	if data == nil {
		return nil
	}

	return &model.AuditEventModel{
		ID:         data.ID,
		Kind:       data.Kind,
		UserID:     data.UserID,
		Provider:   data.Provider,
		RequestID:  data.RequestID,
		Detail:     data.Detail,
		OccurredAt: data.OccurredAt,
		CreatedAt:  data.CreatedAt,
	}
}
