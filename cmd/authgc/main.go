// Command authgc reclaims expired rows: verification codes, verifiers,
// sessions, refresh tokens, and audit events past their retention window.
// Expiry is enforced at read time everywhere else, so the sweep only frees
// space and can run on any schedule.
package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"authcore/config"
	logs "authcore/internal/infra/log"
	"authcore/internal/infra/persistence/postgres"
	"authcore/internal/usecase"
	"authcore/internal/usecase/impl"

	"go.uber.org/fx"
)

type sweeperParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Maintenance usecase.MaintenanceUsecase
	Logger      *slog.Logger
}

func main() {
	interval := flag.Duration("interval", 0,
		"Sweep repeatedly at this interval, overriding maintenance.interval from config; with neither set, one sweep runs and the process exits")
	flag.Parse()

	fx.New(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			postgres.New,
			postgres.NewTransactionManager,
			impl.NewMaintenanceService,
		),
		fx.Invoke(func(cfg *config.Config, params sweeperParams) {
			startSweeper(params, resolveInterval(*interval, cfg))
		}),
	).Run()
}

// resolveInterval prefers the flag over the configured schedule. Zero means a
// single sweep.
func resolveInterval(flagInterval time.Duration, cfg *config.Config) time.Duration {
	if flagInterval > 0 {
		return flagInterval
	}
	if cfg.Maintenance != nil {
		return cfg.Maintenance.Interval
	}

	return 0
}

func startSweeper(params sweeperParams, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sweepLoop(ctx, params, interval)

			return nil
		},
		OnStop: func(context.Context) error {
			cancel()

			return nil
		},
	})
}

func sweepLoop(ctx context.Context, params sweeperParams, interval time.Duration) {
	err := sweepOnce(ctx, params)

	if interval <= 0 {
		code := 0
		if err != nil {
			code = 1
		}
		if shutdownErr := params.Shutdown(fx.ExitCode(code)); shutdownErr != nil {
			params.Logger.Error("Failed to shutdown", slog.Any("error", shutdownErr))
		}

		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = sweepOnce(ctx, params)
		}
	}
}

// sweepOnce runs one sweep. The service logs what it reclaimed; only the
// failure is handled here.
func sweepOnce(ctx context.Context, params sweeperParams) error {
	if _, err := params.Maintenance.Sweep(ctx); err != nil {
		params.Logger.Error("Maintenance sweep failed", slog.Any("error", err))

		return err
	}

	return nil
}
