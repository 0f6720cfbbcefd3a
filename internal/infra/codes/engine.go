// Package codes hosts the verification code engine backends and picks one
// from configuration. The relational backend enforces single use through
// the store's transaction boundary; the Redis backend does the same with
// atomic key operations and native expiry.
package codes

import (
	"log/slog"

	"authcore/config"
	"authcore/internal/domain/constants"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"
	"authcore/internal/usecase/impl"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// EngineParams holds dependencies for the code engine, injected by Fx.
type EngineParams struct {
	fx.In

	TxManager repository.TransactionManager
	Sender    service.CodeSender
	Publisher service.EventPublisher
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger

	// Redis is only present when a Redis connection is configured.
	Redis *redis.Client `optional:"true"`
}

// NewCodeEngine picks the code engine backend from configuration; the
// relational store is the default.
func NewCodeEngine(params EngineParams) (usecase.CodeUsecase, error) {
	backend := constants.CodeBackendStore
	if params.Config != nil && params.Config.Codes != nil && params.Config.Codes.Backend != "" {
		backend = params.Config.Codes.Backend
	}

	switch backend {
	case constants.CodeBackendStore:
		return impl.NewCodeService(impl.CodeServiceParams{
			TxManager: params.TxManager,
			Sender:    params.Sender,
			Publisher: params.Publisher,
			Metrics:   params.Metrics,
			Config:    params.Config,
			Logger:    params.Logger,
		}), nil

	case constants.CodeBackendRedis:
		if params.Redis == nil {
			return nil, errors.New("codes backend is redis but no redis connection is configured")
		}
		params.Logger.Info("Using Redis code engine")

		return newRedisEngine(params), nil

	default:
		return nil, errors.Errorf("unknown codes backend: %s", backend)
	}
}
