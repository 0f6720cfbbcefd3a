// Package metrics implements the domain metrics seam on OpenTelemetry
// counters. Without a registered meter provider the global no-op provider
// makes every recording free, so the recorder is always safe to wire.
package metrics

import (
	"context"

	"authcore/internal/domain/service"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
)

const meterScope = "authcore/internal/infra/metrics"

// Params collects the recorder dependencies. The meter provider is optional;
// when absent the global provider is used.
type Params struct {
	fx.In

	MeterProvider metric.MeterProvider `optional:"true"`
}

type otelRecorder struct {
	links           metric.Int64Counter
	codesIssued     metric.Int64Counter
	codesRedeemed   metric.Int64Counter
	refreshReuse    metric.Int64Counter
	sessionsCreated metric.Int64Counter
}

// NewRecorder builds the OpenTelemetry-backed metrics recorder.
func NewRecorder(params Params) (service.MetricsRecorder, error) {
	provider := params.MeterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterScope)

	links, err := meter.Int64Counter(
		"authcore.account.links",
		metric.WithDescription("Resolved account links by provider."),
		metric.WithUnit("{link}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create account links counter")
	}

	codesIssued, err := meter.Int64Counter(
		"authcore.codes.issued",
		metric.WithDescription("Minted one-time verification codes."),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create codes issued counter")
	}

	codesRedeemed, err := meter.Int64Counter(
		"authcore.codes.redeemed",
		metric.WithDescription("Code redemption attempts by outcome."),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create codes redeemed counter")
	}

	refreshReuse, err := meter.Int64Counter(
		"authcore.refresh.reuse",
		metric.WithDescription("Refresh token reuse detections."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create refresh reuse counter")
	}

	sessionsCreated, err := meter.Int64Counter(
		"authcore.sessions.created",
		metric.WithDescription("Sessions opened after successful sign-in."),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sessions created counter")
	}

	return &otelRecorder{
		links:           links,
		codesIssued:     codesIssued,
		codesRedeemed:   codesRedeemed,
		refreshReuse:    refreshReuse,
		sessionsCreated: sessionsCreated,
	}, nil
}

func (r *otelRecorder) LinkRecorded(ctx context.Context, provider string, isNewUser bool) {
	r.links.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("new_user", isNewUser),
	))
}

func (r *otelRecorder) CodeIssued(ctx context.Context, provider string) {
	r.codesIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
	))
}

func (r *otelRecorder) CodeRedeemed(ctx context.Context, provider string, outcome string) {
	r.codesRedeemed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func (r *otelRecorder) RefreshReuseDetected(ctx context.Context) {
	r.refreshReuse.Add(ctx, 1)
}

func (r *otelRecorder) SessionCreated(ctx context.Context) {
	r.sessionsCreated.Add(ctx, 1)
}
