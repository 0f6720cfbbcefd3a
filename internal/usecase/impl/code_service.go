package impl

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"
	"authcore/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultCodeTTL     = 10 * time.Minute
	defaultVerifierTTL = 10 * time.Minute
	defaultOTPLength   = 6
)

// codeService implements the CodeUsecase interface against the relational
// store. Single use is enforced by compare-and-set writes inside the store's
// transaction boundary; expiry is checked lazily at redemption time.
type codeService struct {
	txManager repository.TransactionManager
	sender    service.CodeSender
	publisher service.EventPublisher
	metrics   service.MetricsRecorder
	logger    *slog.Logger

	codeTTL     time.Duration
	verifierTTL time.Duration
	otpLength   int

	now func() time.Time
}

// CodeServiceParams holds dependencies for codeService, injected by Fx.
type CodeServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Sender    service.CodeSender
	Publisher service.EventPublisher
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewCodeService is the constructor for codeService.
func NewCodeService(params CodeServiceParams) usecase.CodeUsecase {
	codeTTL := defaultCodeTTL
	verifierTTL := defaultVerifierTTL
	otpLength := defaultOTPLength
	if params.Config != nil && params.Config.Codes != nil {
		if params.Config.Codes.TTL > 0 {
			codeTTL = params.Config.Codes.TTL
		}
		if params.Config.Codes.VerifierTTL > 0 {
			verifierTTL = params.Config.Codes.VerifierTTL
		}
		if params.Config.Codes.Length > 0 {
			otpLength = params.Config.Codes.Length
		}
	}

	return &codeService{
		txManager:   params.TxManager,
		sender:      params.Sender,
		publisher:   params.Publisher,
		metrics:     params.Metrics,
		logger:      params.Logger,
		codeTTL:     codeTTL,
		verifierTTL: verifierTTL,
		otpLength:   otpLength,
		now:         time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *codeService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// IssueCode mints a one-time code, supersedes any earlier code for the same
// destination, and hands the raw code to the delivery seam. Delivery happens
// after the transaction commits; the critical section stays write-only.
func (srv *codeService) IssueCode(ctx context.Context, input *usecase.IssueCodeInput) (*usecase.IssueCodeOutput, error) {
	if input.AccountRef == "" || input.Provider == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("account reference and provider are required")
	}
	if !input.Method.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unknown authentication method " + string(input.Method))
	}

	raw, err := srv.mintCode(input.Method)
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint code")
	}

	ttl := srv.codeTTL
	if input.TTL > 0 {
		ttl = input.TTL
	}
	expiresAt := srv.now().Add(ttl)

	code := &entity.VerificationCode{
		AccountRef: input.AccountRef,
		Provider:   input.Provider,
		CodeHash:   util.HashSecret(raw),
		VerifierID: input.VerifierID,
		Method:     input.Method,
		ExpiresAt:  expiresAt,
	}

	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		codeRepo := repos.NewVerificationCodeRepository()

		// At most one live code per destination: issuing supersedes.
		if err := codeRepo.DeleteByAccountRef(ctx, input.AccountRef, input.Provider); err != nil {
			return errors.Wrap(err, "failed to supersede previous codes")
		}

		if err := codeRepo.Create(ctx, code); err != nil {
			return errors.Wrap(err, "failed to store code")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to issue code",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to execute code issue transaction")
	}

	if err := srv.sender.SendCode(ctx, input.Method, input.AccountRef, raw); err != nil {
		srv.log(ctx).Error("Failed to deliver code",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to deliver code")
	}

	srv.metrics.CodeIssued(ctx, input.Provider)
	srv.publishEvent(ctx, &service.AuthEvent{
		Kind:       service.EventCodeIssued,
		Provider:   input.Provider,
		Method:     input.Method.String(),
		OccurredAt: srv.now(),
	})

	srv.log(ctx).Debug("Code issued",
		slog.String("provider", input.Provider),
		slog.Time("expiresAt", expiresAt),
	)

	return &usecase.IssueCodeOutput{Code: raw, ExpiresAt: expiresAt}, nil
}

// redeemOutcome is what the redemption transaction concluded. Rejections
// commit (an expiry check may delete the row); only store failures roll back.
type redeemOutcome struct {
	status string
	code   *entity.VerificationCode
}

// RedeemCode consumes a code exactly once. Of two concurrent redeemers one
// wins the compare-and-set and the other observes "already used"; a replay
// after success observes the same.
func (srv *codeService) RedeemCode(ctx context.Context, input *usecase.RedeemCodeInput) (*usecase.RedeemCodeOutput, error) {
	if util.MalformedSecret(input.Code) {
		srv.metrics.CodeRedeemed(ctx, input.Provider, service.RedeemOutcomeMalformed)

		return nil, domainerrors.ErrCodeMalformed.WrapMessage("presented code is empty or malformed")
	}
	if input.Provider == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("provider is required")
	}

	codeHash := util.HashSecret(input.Code)

	var outcome redeemOutcome
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		return srv.redeemWithin(ctx, repos, input.Provider, codeHash, &outcome)
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute code redemption transaction",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to execute code redemption transaction")
	}

	srv.metrics.CodeRedeemed(ctx, input.Provider, outcome.status)

	switch outcome.status {
	case service.RedeemOutcomeNotFound:
		return nil, domainerrors.ErrCodeNotFound.WrapMessage("no code matches for provider " + input.Provider)
	case service.RedeemOutcomeExpired:
		return nil, domainerrors.ErrCodeExpired.WrapMessage("code expired before redemption")
	case service.RedeemOutcomeAlreadyUsed:
		return nil, domainerrors.ErrCodeAlreadyUsed.WrapMessage("code was already redeemed")
	}

	srv.publishEvent(ctx, &service.AuthEvent{
		Kind:       service.EventCodeRedeemed,
		Provider:   input.Provider,
		Method:     outcome.code.Method.String(),
		OccurredAt: srv.now(),
	})

	srv.log(ctx).Debug("Code redeemed",
		slog.String("provider", input.Provider),
		slog.String("method", outcome.code.Method.String()),
	)

	return srv.buildRedeemOutput(outcome.code), nil
}

// redeemWithin is the redemption transaction body. Rejection paths set the
// outcome and return nil so their side effects (expiry deletion) commit.
func (srv *codeService) redeemWithin(ctx context.Context, repos repository.RepositoryFactory, provider, codeHash string, outcome *redeemOutcome) error {
	codeRepo := repos.NewVerificationCodeRepository()

	code, err := codeRepo.FindByCodeHash(ctx, provider, codeHash)
	if errors.Is(err, repository.ErrVerificationCodeNotFound) {
		outcome.status = service.RedeemOutcomeNotFound

		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to look up code")
	}

	if code.Used() {
		outcome.status = service.RedeemOutcomeAlreadyUsed

		return nil
	}

	if code.Expired(srv.now()) {
		// The expiry check deletes the row as its side effect, so this
		// rejection must commit rather than roll back.
		if err := codeRepo.Delete(ctx, code.ID); err != nil {
			return errors.Wrap(err, "failed to delete expired code")
		}
		outcome.status = service.RedeemOutcomeExpired

		return nil
	}

	if err := codeRepo.MarkUsed(ctx, code.ID); err != nil {
		if errors.Is(err, repository.ErrVerificationCodeConsumed) || errors.Is(err, repository.ErrVerificationCodeNotFound) {
			outcome.status = service.RedeemOutcomeAlreadyUsed

			return nil
		}

		return errors.Wrap(err, "failed to consume code")
	}

	// A verifier tied to this code is finished with; drop it so the round
	// trip leaves nothing behind.
	if code.VerifierID != nil {
		err := repos.NewVerifierRepository().Delete(ctx, *code.VerifierID)
		if err != nil && !errors.Is(err, repository.ErrVerifierNotFound) {
			return errors.Wrap(err, "failed to delete linked verifier")
		}
	}

	outcome.status = service.RedeemOutcomeOK
	outcome.code = code

	return nil
}

// buildRedeemOutput assembles what the account linker needs: the channel
// claim is now proven, so it is returned verified.
func (srv *codeService) buildRedeemOutput(code *entity.VerificationCode) *usecase.RedeemCodeOutput {
	out := &usecase.RedeemCodeOutput{
		AccountRef: code.AccountRef,
		Method:     code.Method,
	}

	switch code.Method {
	case entity.AuthMethodPhone:
		out.Profile = usecase.Profile{Phone: code.AccountRef, PhoneVerified: true}
	default:
		out.Profile = usecase.Profile{Email: code.AccountRef, EmailVerified: true}
	}

	return out
}

// CreateVerifier opens an OAuth round trip: the ID travels as the state
// parameter, the signature is the PKCE verifier, and only the signature's
// hash is stored.
func (srv *codeService) CreateVerifier(ctx context.Context, provider string, redirectURI string) (*usecase.VerifierGrant, error) {
	if provider == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("provider is required")
	}

	signature, err := util.MintToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint verifier signature")
	}

	verifier := &entity.Verifier{
		SignatureSum: util.HashSecret(signature),
		Provider:     provider,
		RedirectURI:  redirectURI,
		ExpiresAt:    srv.now().Add(srv.verifierTTL),
	}

	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		return repos.NewVerifierRepository().Create(ctx, verifier)
	})
	if err != nil {
		srv.log(ctx).Error("Failed to create verifier",
			slog.String("provider", provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to execute verifier create transaction")
	}

	return &usecase.VerifierGrant{
		ID:        verifier.ID,
		Signature: signature,
		ExpiresAt: verifier.ExpiresAt,
	}, nil
}

// ConsumeVerifier closes a round trip exactly once. Deleting the row is the
// consumption gate: whichever caller deletes it wins, and every other caller
// is told the flow is invalid. Missing, expired, and signature-mismatched
// verifiers are deliberately indistinguishable to callers.
func (srv *codeService) ConsumeVerifier(ctx context.Context, id uuid.UUID, signature string) (*entity.Verifier, error) {
	if util.MalformedSecret(signature) {
		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("verifier signature is empty or malformed")
	}

	var (
		verifier *entity.Verifier
		rejected string
	)
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		verifierRepo := repos.NewVerifierRepository()

		found, err := verifierRepo.FindByID(ctx, id)
		if errors.Is(err, repository.ErrVerifierNotFound) {
			rejected = "not found"

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to look up verifier")
		}

		if found.Expired(srv.now()) {
			if err := verifierRepo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrVerifierNotFound) {
				return errors.Wrap(err, "failed to delete expired verifier")
			}
			rejected = "expired"

			return nil
		}

		if subtle.ConstantTimeCompare([]byte(found.SignatureSum), []byte(util.HashSecret(signature))) != 1 {
			rejected = "signature mismatch"

			return nil
		}

		if err := verifierRepo.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrVerifierNotFound) {
				// A concurrent consumer deleted it first.
				rejected = "already consumed"

				return nil
			}

			return errors.Wrap(err, "failed to consume verifier")
		}

		verifier = found

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute verifier consume transaction",
			slog.Any("verifierID", id),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to execute verifier consume transaction")
	}

	if rejected != "" {
		srv.log(ctx).Warn("Verifier consumption rejected",
			slog.Any("verifierID", id),
			slog.String("reason", rejected),
		)

		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("verifier rejected: " + rejected)
	}

	return verifier, nil
}

// publishEvent emits an audit event, logging and swallowing failures.
func (srv *codeService) publishEvent(ctx context.Context, event *service.AuthEvent) {
	if event.RequestID == "" {
		event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)
	}
	if err := srv.publisher.PublishAuthEvent(ctx, event); err != nil {
		srv.log(ctx).Warn("Failed to publish audit event",
			slog.String("kind", event.Kind),
			slog.Any("error", err),
		)
	}
}

// mintCode picks the code shape for the method: short numeric codes for
// phone OTP, long link tokens otherwise.
func (srv *codeService) mintCode(method entity.AuthMethod) (string, error) {
	if method == entity.AuthMethodPhone {
		return util.MintOTP(srv.otpLength)
	}

	return util.MintToken()
}
