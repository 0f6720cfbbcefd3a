package impl

import (
	"context"
	"log/slog"
	"time"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/repository"
	"authcore/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultAuditRetention = 90 * 24 * time.Hour

// maintenanceService implements the MaintenanceUsecase interface. Expiry is
// enforced at read time everywhere else; this sweep only reclaims space.
type maintenanceService struct {
	txManager      repository.TransactionManager
	logger         *slog.Logger
	auditRetention time.Duration

	now func() time.Time
}

// MaintenanceServiceParams holds dependencies for maintenanceService, injected by Fx.
type MaintenanceServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Config    *config.Config
	Logger    *slog.Logger
}

// NewMaintenanceService is the constructor for maintenanceService.
func NewMaintenanceService(params MaintenanceServiceParams) usecase.MaintenanceUsecase {
	retention := defaultAuditRetention
	if params.Config != nil && params.Config.Maintenance != nil && params.Config.Maintenance.AuditRetention > 0 {
		retention = params.Config.Maintenance.AuditRetention
	}

	return &maintenanceService{
		txManager:      params.TxManager,
		logger:         params.Logger,
		auditRetention: retention,
		now:            time.Now,
	}
}

func (srv *maintenanceService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Sweep removes expired rows in one transaction and reports what it reclaimed.
func (srv *maintenanceService) Sweep(ctx context.Context) (*usecase.SweepReport, error) {
	report := &usecase.SweepReport{}
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		var err error
		if report.ExpiredCodes, err = repos.NewVerificationCodeRepository().DeleteExpired(ctx); err != nil {
			return errors.Wrap(err, "failed to sweep verification codes")
		}
		if report.ExpiredVerifiers, err = repos.NewVerifierRepository().DeleteExpired(ctx); err != nil {
			return errors.Wrap(err, "failed to sweep verifiers")
		}
		if report.ExpiredRefreshTokens, err = repos.NewRefreshTokenRepository().DeleteExpired(ctx); err != nil {
			return errors.Wrap(err, "failed to sweep refresh tokens")
		}
		if report.ExpiredSessions, err = repos.NewSessionRepository().DeleteExpired(ctx); err != nil {
			return errors.Wrap(err, "failed to sweep sessions")
		}

		cutoff := srv.now().Add(-srv.auditRetention)
		if report.PrunedAuditEvents, err = repos.NewAuditEventRepository().DeleteOlderThan(ctx, cutoff); err != nil {
			return errors.Wrap(err, "failed to prune audit events")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute maintenance sweep", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute maintenance sweep")
	}

	srv.log(ctx).Info("Maintenance sweep finished",
		slog.Int64("expiredCodes", report.ExpiredCodes),
		slog.Int64("expiredVerifiers", report.ExpiredVerifiers),
		slog.Int64("expiredSessions", report.ExpiredSessions),
		slog.Int64("expiredRefreshTokens", report.ExpiredRefreshTokens),
		slog.Int64("prunedAuditEvents", report.PrunedAuditEvents),
	)

	return report, nil
}
