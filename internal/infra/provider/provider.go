// Package provider holds the adapters that verify identities against
// external providers. Each adapter turns provider-specific proof (an ID
// token or an authorization code) into a VerifiedProfile; trust decisions
// about that profile belong to the account linker, not here.
package provider

import (
	"context"
	"log/slog"

	"authcore/config"
	"authcore/internal/domain/entity"
	"authcore/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Provider keys with dedicated adapters. Every other oauth provider is
// served by the generic endpoint-driven adapter.
const (
	providerGoogle   = "google"
	providerFirebase = "firebase"
)

// Params holds dependencies for the provider registry, injected by Fx.
type Params struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewProviders builds one adapter per configured oauth provider. Providers
// using other methods (email, phone, credentials) are driven by the code
// engine and the password hasher and need no adapter here.
func NewProviders(params Params) ([]service.IdentityProvider, error) {
	var adapters []service.IdentityProvider
	for i := range params.Config.Providers {
		pc := &params.Config.Providers[i]
		if entity.AuthMethod(pc.Method) != entity.AuthMethodOAuth {
			continue
		}

		adapter, err := newAdapter(params.Ctx, pc, params.Config, params.Logger)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build adapter for provider %q", pc.Name)
		}

		params.Logger.Info("Registered identity provider",
			slog.String("provider", pc.Name),
		)
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

func newAdapter(ctx context.Context, pc *config.ProviderConfig, cfg *config.Config, logger *slog.Logger) (service.IdentityProvider, error) {
	switch pc.Name {
	case providerGoogle:
		return NewGoogleProvider(pc, logger), nil
	case providerFirebase:
		return NewFirebaseProvider(ctx, pc.Name, cfg.Firebase, logger)
	default:
		return NewOIDCProvider(pc, logger)
	}
}

// Module provides the identity provider FX module. The adapter slice is
// flattened into the identity_providers group the sign-in service consumes.
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProviders,
			fx.ResultTags(`group:"identity_providers,flatten"`),
		),
	),
)

// profileFromClaims maps standard OIDC claim names onto a VerifiedProfile.
// Unknown claims ride along in ExtraData for the post-link hook.
func profileFromClaims(subject string, claims map[string]any) *service.VerifiedProfile {
	profile := &service.VerifiedProfile{
		ProviderAccountID: subject,
		Method:            entity.AuthMethodOAuth,
		ExtraData:         claims,
	}

	profile.Email, _ = claims["email"].(string)
	profile.EmailVerified = boolClaim(claims["email_verified"])
	profile.Phone, _ = claims["phone_number"].(string)
	profile.PhoneVerified = boolClaim(claims["phone_number_verified"])
	profile.Name, _ = claims["name"].(string)
	profile.AvatarURL, _ = claims["picture"].(string)

	return profile
}

// boolClaim tolerates the string encoding some providers use for boolean
// claims.
func boolClaim(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		return typed == "true"
	}

	return false
}
