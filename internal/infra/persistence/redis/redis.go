// Package redis wires the Redis client used by the Redis-backed code engine.
package redis

import (
	"context"
	"log/slog"

	"authcore/config"
	"authcore/internal/domain/lifecycle"
	"authcore/internal/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the Redis client. Redis is optional: when no connection is
// configured the constructor yields a nil client and consumers that need
// one fail at their own construction time with a pointed message.
func New(params Params) (*redis.Client, error) {
	conn := params.Config.Redis
	if conn == nil {
		params.Logger.Info("Redis not configured, skipping client")

		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conn.Addr,
		Password: conn.Password,
		DB:       conn.DB,
	})

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping Redis")
			}

			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}
