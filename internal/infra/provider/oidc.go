package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"authcore/config"
	"authcore/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// oidcProvider is the generic redirect adapter for providers configured
// with explicit endpoints. It exchanges the authorization code and reads
// the profile from the provider's userinfo endpoint, which is expected to
// answer standard OIDC claim names.
type oidcProvider struct {
	name        string
	oauth       *oauth2.Config
	userInfoURL string
	logger      *slog.Logger
}

// NewOIDCProvider is the constructor for oidcProvider.
func NewOIDCProvider(pc *config.ProviderConfig, logger *slog.Logger) (service.RedirectProvider, error) {
	if pc.AuthURL == "" || pc.TokenURL == "" {
		return nil, errors.Errorf("provider %q needs authUrl and tokenUrl or a dedicated adapter", pc.Name)
	}
	if pc.UserInfoURL == "" {
		return nil, errors.Errorf("provider %q needs userInfoUrl to resolve profiles", pc.Name)
	}

	return &oidcProvider{
		name: pc.Name,
		oauth: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURI,
			Scopes:       pc.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  pc.AuthURL,
				TokenURL: pc.TokenURL,
			},
		},
		userInfoURL: pc.UserInfoURL,
		logger:      logger,
	}, nil
}

// Name implements service.IdentityProvider.
func (p *oidcProvider) Name() string {
	return p.name
}

// AuthCodeURL implements service.RedirectProvider.
func (p *oidcProvider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange implements service.RedirectProvider.
func (p *oidcProvider) Exchange(ctx context.Context, code string, codeVerifier string) (*service.VerifiedProfile, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}

	claims, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, errors.New("userinfo response carries no subject")
	}

	profile := profileFromClaims(subject, claims)
	profile.Secret = serializeToken(token)

	return profile, nil
}

// VerifyIDToken implements service.IdentityProvider. The generic adapter
// has no key material to verify foreign tokens against, so direct ID token
// sign-in is reserved for providers with dedicated adapters.
func (p *oidcProvider) VerifyIDToken(_ context.Context, _ string) (*service.VerifiedProfile, error) {
	return nil, errors.Errorf("provider %q cannot verify id tokens", p.name)
}

func (p *oidcProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create userinfo request")
	}

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch userinfo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, errors.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, errors.Wrap(err, "failed to decode userinfo response")
	}

	return claims, nil
}
