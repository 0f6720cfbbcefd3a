package provider

import (
	"context"
	"log/slog"

	"authcore/config"
	"authcore/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// firebaseProvider verifies Firebase Authentication ID tokens through the
// admin SDK. Firebase has no redirect leg of its own; clients authenticate
// against Firebase directly and present the resulting token here.
type firebaseProvider struct {
	name   string
	client *firebaseauth.Client
	logger *slog.Logger
}

// NewFirebaseProvider is the constructor for firebaseProvider.
func NewFirebaseProvider(ctx context.Context, name string, cfg *config.FirebaseConfig, logger *slog.Logger) (service.IdentityProvider, error) {
	if cfg == nil {
		return nil, errors.New("firebase provider configured without firebase settings")
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize firebase app")
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get firebase auth client")
	}

	return &firebaseProvider{
		name:   name,
		client: client,
		logger: logger,
	}, nil
}

// Name implements service.IdentityProvider.
func (p *firebaseProvider) Name() string {
	return p.name
}

// VerifyIDToken implements service.IdentityProvider.
func (p *firebaseProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*service.VerifiedProfile, error) {
	token, err := p.client.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify firebase id token")
	}

	p.logger.Debug("Firebase ID token verified",
		slog.String("provider", p.name),
	)

	profile := profileFromClaims(token.UID, token.Claims)
	// Firebase attaches a phone number only after SMS verification.
	if profile.Phone != "" {
		profile.PhoneVerified = true
	}

	return profile, nil
}
