package impl

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultAuditListLimit = 50
	maxAuditListLimit     = 500
)

// auditService implements the AuditUsecase interface.
type auditService struct {
	txManager repository.TransactionManager
	logger    *slog.Logger

	now func() time.Time
}

// AuditServiceParams holds dependencies for auditService, injected by Fx.
type AuditServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Logger    *slog.Logger
}

// NewAuditService is the constructor for auditService.
func NewAuditService(params AuditServiceParams) usecase.AuditUsecase {
	return &auditService{
		txManager: params.TxManager,
		logger:    params.Logger,
		now:       time.Now,
	}
}

func (srv *auditService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// RecordEvent stores one delivered event. The record ID derives from the
// event's content, so redelivering the same event inserts the same row and
// the store drops the duplicate.
func (srv *auditService) RecordEvent(ctx context.Context, event *service.AuthEvent) error {
	if event == nil || event.Kind == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("event kind is required")
	}

	var userID uuid.UUID
	if event.UserID != "" {
		if parsed, err := uuid.Parse(event.UserID); err == nil {
			userID = parsed
		}
	}

	detail, err := encodeEventDetail(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode event detail")
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = srv.now()
	}

	record := &entity.AuditEvent{
		ID:         deterministicEventID(event),
		Kind:       event.Kind,
		UserID:     userID,
		Provider:   event.Provider,
		RequestID:  event.RequestID,
		Detail:     detail,
		OccurredAt: occurredAt,
	}

	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		return repos.NewAuditEventRepository().Create(ctx, record)
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute audit record transaction",
			slog.String("kind", event.Kind),
			slog.Any("error", err),
		)

		return errors.Wrap(err, "failed to execute audit record transaction")
	}

	return nil
}

// ListUserEvents returns the most recent events for a user, newest first.
func (srv *auditService) ListUserEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.AuditEvent, error) {
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	if limit > maxAuditListLimit {
		limit = maxAuditListLimit
	}

	var events []*entity.AuditEvent
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		var err error
		events, err = repos.NewAuditEventRepository().FindByUserID(ctx, userID, limit)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit events")
	}

	return events, nil
}

// eventDetail is the JSON payload folded into AuditEvent.Detail for the
// event fields the audit table has no dedicated column for.
type eventDetail struct {
	SessionID string `json:"sessionID,omitempty"`
	Method    string `json:"method,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func encodeEventDetail(event *service.AuthEvent) (string, error) {
	if event.SessionID == "" && event.Method == "" && event.Detail == "" {
		return "", nil
	}

	raw, err := json.Marshal(eventDetail{
		SessionID: event.SessionID,
		Method:    event.Method,
		Detail:    event.Detail,
	})
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// deterministicEventID folds the event's identifying fields into a name-based
// UUID. Two deliveries of the same event map to the same ID.
func deterministicEventID(event *service.AuthEvent) uuid.UUID {
	seed := strings.Join([]string{
		event.Kind,
		event.UserID,
		event.SessionID,
		event.Provider,
		event.RequestID,
		event.Detail,
		event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}, "|")

	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}
