package impl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
)

// signInService implements the SignInUsecase interface. It owns no state of
// its own; it sequences the code engine, the account linker, and the session
// service into complete flows.
type signInService struct {
	codes     usecase.CodeUsecase
	linker    usecase.LinkerUsecase
	sessions  usecase.SessionUsecase
	txManager repository.TransactionManager
	hasher    service.PasswordHasher
	qr        service.QRCodeService
	logger    *slog.Logger

	providers       map[string]service.IdentityProvider
	providerMethods map[string]entity.AuthMethod
	signInBaseURL   string
}

// SignInServiceParams holds dependencies for signInService, injected by Fx.
type SignInServiceParams struct {
	fx.In

	Codes     usecase.CodeUsecase
	Linker    usecase.LinkerUsecase
	Sessions  usecase.SessionUsecase
	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
	QRCode    service.QRCodeService      `optional:"true"`
	Providers []service.IdentityProvider `group:"identity_providers"`
	Config    *config.Config
	Logger    *slog.Logger
}

// NewSignInService is the constructor for signInService.
func NewSignInService(params SignInServiceParams) (usecase.SignInUsecase, error) {
	providers := make(map[string]service.IdentityProvider, len(params.Providers))
	for _, p := range params.Providers {
		if p == nil {
			continue
		}
		if _, ok := providers[p.Name()]; ok {
			return nil, errors.Errorf("identity provider %q registered twice", p.Name())
		}
		providers[p.Name()] = p
	}

	methods := make(map[string]entity.AuthMethod)
	signInBaseURL := ""
	if params.Config != nil {
		for _, pc := range params.Config.Providers {
			methods[pc.Name] = entity.AuthMethod(pc.Method)
		}
		if params.Config.QRCode != nil {
			signInBaseURL = params.Config.QRCode.SignInBaseURL
		}
	}

	return &signInService{
		codes:           params.Codes,
		linker:          params.Linker,
		sessions:        params.Sessions,
		txManager:       params.TxManager,
		hasher:          params.Hasher,
		qr:              params.QRCode,
		logger:          params.Logger,
		providers:       providers,
		providerMethods: methods,
		signInBaseURL:   signInBaseURL,
	}, nil
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *signInService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// configuredMethod resolves the auth method a provider was configured with.
func (srv *signInService) configuredMethod(provider string) (entity.AuthMethod, error) {
	method, ok := srv.providerMethods[provider]
	if !ok {
		return "", domainerrors.ErrProviderUnknown.WrapMessage(fmt.Sprintf("provider %q is not configured", provider))
	}

	return method, nil
}

// identityProvider resolves the adapter for a configured oauth provider.
func (srv *signInService) identityProvider(name string) (service.IdentityProvider, error) {
	method, err := srv.configuredMethod(name)
	if err != nil {
		return nil, err
	}
	if method != entity.AuthMethodOAuth {
		return nil, domainerrors.ErrValidationFailed.WrapMessage(fmt.Sprintf("provider %q does not verify provider tokens", name))
	}

	provider, ok := srv.providers[name]
	if !ok {
		return nil, domainerrors.ErrProviderConfig.WrapMessage(fmt.Sprintf("no adapter registered for provider %q", name))
	}

	return provider, nil
}

func (srv *signInService) redirectProvider(name string) (service.RedirectProvider, error) {
	provider, err := srv.identityProvider(name)
	if err != nil {
		return nil, err
	}

	redirect, ok := provider.(service.RedirectProvider)
	if !ok {
		return nil, domainerrors.ErrProviderConfig.WrapMessage(fmt.Sprintf("provider %q cannot drive a redirect flow", name))
	}

	return redirect, nil
}

// BeginEmailSignIn issues a one-time code for an email or phone channel and,
// when asked, renders a hand-off QR so the flow can finish on another device.
func (srv *signInService) BeginEmailSignIn(ctx context.Context, input *usecase.BeginEmailSignInInput) (*usecase.BeginEmailSignInOutput, error) {
	if input.AccountRef == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("account reference is required")
	}

	method, err := srv.configuredMethod(input.Provider)
	if err != nil {
		return nil, err
	}
	if method != entity.AuthMethodEmail && method != entity.AuthMethodPhone {
		return nil, domainerrors.ErrValidationFailed.WrapMessage(fmt.Sprintf("provider %q does not issue sign-in codes", input.Provider))
	}

	issued, err := srv.codes.IssueCode(ctx, &usecase.IssueCodeInput{
		AccountRef: input.AccountRef,
		Provider:   input.Provider,
		Method:     method,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue sign-in code")
	}

	output := &usecase.BeginEmailSignInOutput{ExpiresAt: issued.ExpiresAt}
	if input.WithQR {
		srv.attachHandoff(ctx, output, input.Provider, issued.Code)
	}

	return output, nil
}

// attachHandoff embeds the issued code in a sign-in link and renders it as a
// QR when a renderer is wired. The sign-in itself already succeeded, so a
// missing base URL only costs the hand-off, not the code.
func (srv *signInService) attachHandoff(ctx context.Context, output *usecase.BeginEmailSignInOutput, provider string, code string) {
	if srv.signInBaseURL == "" {
		srv.log(ctx).Warn("QR hand-off requested but sign-in base URL is not configured")

		return
	}

	link, err := url.Parse(srv.signInBaseURL)
	if err != nil {
		srv.log(ctx).Warn("Sign-in base URL is not a valid URL", slog.Any("error", err))

		return
	}
	query := link.Query()
	query.Set("provider", provider)
	query.Set("code", code)
	link.RawQuery = query.Encode()
	output.HandoffLink = link.String()

	if srv.qr == nil {
		return
	}
	png, err := srv.qr.GenerateSignInQR(output.HandoffLink)
	if err != nil {
		srv.log(ctx).Warn("Failed to render sign-in QR", slog.Any("error", err))

		return
	}
	output.QRCode = png
}

// CompleteEmailSignIn redeems a delivered code, links the proven channel
// identity, and opens a session.
func (srv *signInService) CompleteEmailSignIn(ctx context.Context, input *usecase.CompleteEmailSignInInput) (*usecase.SignInResult, error) {
	redeemed, err := srv.codes.RedeemCode(ctx, &usecase.RedeemCodeInput{
		Provider: input.Provider,
		Code:     input.Code,
	})
	if err != nil {
		return nil, err
	}

	return srv.finishSignIn(ctx, &usecase.LinkAccountInput{
		Provider:          input.Provider,
		ProviderAccountID: redeemed.AccountRef,
		Method:            redeemed.Method,
		Profile:           redeemed.Profile,
	})
}

// BeginOAuth opens an OAuth round trip. The verifier ID travels as the state
// parameter and the PKCE challenge derives from the verifier signature, so
// completion can only come from the client that started the flow.
func (srv *signInService) BeginOAuth(ctx context.Context, input *usecase.BeginOAuthInput) (*usecase.BeginOAuthOutput, error) {
	provider, err := srv.redirectProvider(input.Provider)
	if err != nil {
		return nil, err
	}

	grant, err := srv.codes.CreateVerifier(ctx, input.Provider, input.RedirectURI)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open oauth round trip")
	}

	state := grant.ID.String()

	return &usecase.BeginOAuthOutput{
		AuthURL:   provider.AuthCodeURL(state, oauth2.S256ChallengeFromVerifier(grant.Signature)),
		State:     state,
		Signature: grant.Signature,
	}, nil
}

// CompleteOAuth consumes the round-trip verifier, exchanges the authorization
// code, links the attested identity, and opens a session. The verifier is
// spent before the exchange, so a failed exchange cannot be replayed.
func (srv *signInService) CompleteOAuth(ctx context.Context, input *usecase.CompleteOAuthInput) (*usecase.SignInResult, error) {
	provider, err := srv.redirectProvider(input.Provider)
	if err != nil {
		return nil, err
	}

	verifierID, err := uuid.Parse(input.State)
	if err != nil {
		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("state is not a known verifier")
	}

	verifier, err := srv.codes.ConsumeVerifier(ctx, verifierID, input.Signature)
	if err != nil {
		return nil, err
	}

	if verifier.Provider != input.Provider {
		srv.log(ctx).Warn("Verifier was minted for a different provider",
			slog.String("provider", input.Provider),
		)

		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("verifier does not belong to this provider")
	}
	if verifier.RedirectURI != "" && input.RedirectURI != "" && verifier.RedirectURI != input.RedirectURI {
		srv.log(ctx).Warn("Redirect URI changed between begin and completion",
			slog.String("provider", input.Provider),
		)

		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("redirect URI changed mid-flow")
	}

	profile, err := provider.Exchange(ctx, input.Code, input.Signature)
	if err != nil {
		srv.log(ctx).Warn("OAuth code exchange failed",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, domainerrors.SignInFailed.WrapMessage("authorization code exchange failed")
	}

	return srv.finishSignIn(ctx, providerLinkInput(input.Provider, entity.AuthMethodOAuth, profile))
}

// SignInWithIDToken verifies a provider-issued ID token the client obtained
// directly, links the attested identity, and opens a session.
func (srv *signInService) SignInWithIDToken(ctx context.Context, input *usecase.IDTokenSignInInput) (*usecase.SignInResult, error) {
	if input.IDToken == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("id token is required")
	}

	provider, err := srv.identityProvider(input.Provider)
	if err != nil {
		return nil, err
	}

	profile, err := provider.VerifyIDToken(ctx, input.IDToken)
	if err != nil {
		srv.log(ctx).Warn("ID token verification failed",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, domainerrors.SignInFailed.WrapMessage("id token rejected")
	}
	if profile.ProviderAccountID == "" {
		return nil, domainerrors.SignInFailed.WrapMessage("id token carries no subject")
	}

	return srv.finishSignIn(ctx, providerLinkInput(input.Provider, entity.AuthMethodOAuth, profile))
}

// SignInWithCredentials verifies an identifier/secret pair against the stored
// account secret. The first use of an identifier registers it; every failure
// after that collapses into one generic rejection.
func (srv *signInService) SignInWithCredentials(ctx context.Context, input *usecase.CredentialsSignInInput) (*usecase.SignInResult, error) {
	if input.Identifier == "" || input.Secret == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("identifier and secret are required")
	}

	method, err := srv.configuredMethod(input.Provider)
	if err != nil {
		return nil, err
	}
	if method != entity.AuthMethodCredentials {
		return nil, domainerrors.ErrValidationFailed.WrapMessage(fmt.Sprintf("provider %q does not accept credentials", input.Provider))
	}

	var account *entity.Account
	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		found, err := repos.NewAccountRepository().FindByProvider(ctx, input.Provider, input.Identifier)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to look up account")
		}
		account = found

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute credentials lookup transaction")
	}

	if account != nil {
		if !srv.hasher.Check(input.Secret, account.Secret) {
			srv.log(ctx).Warn("Credentials sign-in rejected",
				slog.String("provider", input.Provider),
			)

			return nil, domainerrors.SignInFailed.WrapMessage("identifier or secret is wrong")
		}

		session, err := srv.sessions.CreateSession(ctx, account.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open session")
		}

		return &usecase.SignInResult{UserID: account.UserID, Session: session}, nil
	}

	secretHash, err := srv.hasher.Hash(input.Secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash secret")
	}

	profile := usecase.Profile{Name: input.Name}
	// The identifier doubles as the profile email when it is one.
	if strings.Contains(input.Identifier, "@") {
		profile.Email = input.Identifier
	}

	return srv.finishSignIn(ctx, &usecase.LinkAccountInput{
		Provider:          input.Provider,
		ProviderAccountID: input.Identifier,
		Method:            entity.AuthMethodCredentials,
		Profile:           profile,
		Secret:            secretHash,
	})
}

// SignOut ends the named session. Signing out twice is not an error.
func (srv *signInService) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	if err := srv.sessions.InvalidateSession(ctx, sessionID); err != nil {
		if errors.Is(err, domainerrors.ErrSessionNotFound) {
			return nil
		}

		return err
	}

	return nil
}

// finishSignIn is the shared tail of every completed flow: link the proven
// identity, then open a session for whichever user it resolved to.
func (srv *signInService) finishSignIn(ctx context.Context, link *usecase.LinkAccountInput) (*usecase.SignInResult, error) {
	if link.RequestID == "" {
		link.RequestID = deliverycontext.GetRequestIDFromContext(ctx)
	}

	linked, err := srv.linker.LinkAccount(ctx, link)
	if err != nil {
		return nil, err
	}
	if linked.HookErr != nil {
		srv.log(ctx).Warn("Post-link hook failed during sign-in",
			slog.Any("userID", linked.UserID),
			slog.Any("error", linked.HookErr),
		)
	}

	session, err := srv.sessions.CreateSession(ctx, linked.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session")
	}

	return &usecase.SignInResult{
		UserID:    linked.UserID,
		IsNewUser: linked.IsNewUser,
		Session:   session,
	}, nil
}

// providerLinkInput maps an attested profile onto the linker's input.
func providerLinkInput(name string, fallback entity.AuthMethod, profile *service.VerifiedProfile) *usecase.LinkAccountInput {
	method := profile.Method
	if method == "" {
		method = fallback
	}

	return &usecase.LinkAccountInput{
		Provider:          name,
		ProviderAccountID: profile.ProviderAccountID,
		Method:            method,
		Profile: usecase.Profile{
			Email:         profile.Email,
			EmailVerified: profile.EmailVerified,
			Phone:         profile.Phone,
			PhoneVerified: profile.PhoneVerified,
			Name:          profile.Name,
			AvatarURL:     profile.AvatarURL,
		},
		Secret: profile.Secret,
	}
}
