package codes

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"time"

	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"
	"authcore/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCodeTTL     = 10 * time.Minute
	defaultVerifierTTL = 10 * time.Minute
	defaultOTPLength   = 6

	codeKeyPrefix     = "authcore:code:"
	codeRefKeyPrefix  = "authcore:coderef:"
	codeUsedKeyPrefix = "authcore:codeused:"
	verifierKeyPrefix = "authcore:verifier:"
)

// storedCode is the Redis value for a live one-time code, keyed by the
// code's hash. The raw secret never reaches Redis.
type storedCode struct {
	AccountRef string     `json:"account_ref"`
	Provider   string     `json:"provider"`
	Method     string     `json:"method"`
	VerifierID *uuid.UUID `json:"verifier_id,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	IssuedAt   time.Time  `json:"issued_at"`
}

// storedVerifier is the Redis value for an open OAuth round trip.
type storedVerifier struct {
	SignatureSum string    `json:"signature_sum"`
	Provider     string    `json:"provider"`
	RedirectURI  string    `json:"redirect_uri,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// redisEngine implements the CodeUsecase interface on Redis. Single use
// rides on GETDEL for codes and on DEL's removal count for verifiers;
// expiry is native TTL. A short-lived tombstone marker distinguishes a
// replayed code from one that never existed.
type redisEngine struct {
	client    *redis.Client
	sender    service.CodeSender
	publisher service.EventPublisher
	metrics   service.MetricsRecorder
	logger    *slog.Logger

	codeTTL     time.Duration
	verifierTTL time.Duration
	otpLength   int

	now func() time.Time
}

func newRedisEngine(params EngineParams) usecase.CodeUsecase {
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

	return &redisEngine{
		client:      params.Redis,
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

// log returns a request-scoped logger if available, otherwise falls back to the engine's logger.
func (srv *redisEngine) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func codeKey(provider, codeHash string) string {
	return codeKeyPrefix + provider + ":" + codeHash
}

func codeRefKey(provider, accountRef string) string {
	return codeRefKeyPrefix + provider + ":" + accountRef
}

func codeUsedKey(provider, codeHash string) string {
	return codeUsedKeyPrefix + provider + ":" + codeHash
}

func verifierKey(id uuid.UUID) string {
	return verifierKeyPrefix + id.String()
}

// IssueCode mints a one-time code, supersedes any earlier code for the same
// destination, and hands the raw code to the delivery seam.
func (srv *redisEngine) IssueCode(ctx context.Context, input *usecase.IssueCodeInput) (*usecase.IssueCodeOutput, error) {
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
	now := srv.now()
	expiresAt := now.Add(ttl)
	codeHash := util.HashSecret(raw)

	payload, err := json.Marshal(storedCode{
		AccountRef: input.AccountRef,
		Provider:   input.Provider,
		Method:     string(input.Method),
		VerifierID: input.VerifierID,
		ExpiresAt:  expiresAt,
		IssuedAt:   now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode code")
	}

	// At most one live code per destination: the ref index points at the
	// current code's hash, and issuing removes whatever it pointed at.
	prevHash, err := srv.client.GetDel(ctx, codeRefKey(input.Provider, input.AccountRef)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to supersede previous codes")
	}
	if prevHash != "" {
		if err := srv.client.Del(ctx, codeKey(input.Provider, prevHash)).Err(); err != nil {
			return nil, errors.Wrap(err, "failed to supersede previous codes")
		}
	}

	pipe := srv.client.TxPipeline()
	pipe.Set(ctx, codeKey(input.Provider, codeHash), payload, ttl)
	pipe.Set(ctx, codeRefKey(input.Provider, input.AccountRef), codeHash, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		srv.log(ctx).Error("Failed to issue code",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to store code")
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

// RedeemCode consumes a code exactly once. GETDEL leaves exactly one caller
// holding the value; everyone after that finds the tombstone marker or
// nothing at all.
func (srv *redisEngine) RedeemCode(ctx context.Context, input *usecase.RedeemCodeInput) (*usecase.RedeemCodeOutput, error) {
	if util.MalformedSecret(input.Code) {
		srv.metrics.CodeRedeemed(ctx, input.Provider, service.RedeemOutcomeMalformed)

		return nil, domainerrors.ErrCodeMalformed.WrapMessage("presented code is empty or malformed")
	}
	if input.Provider == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("provider is required")
	}

	codeHash := util.HashSecret(input.Code)

	data, err := srv.client.GetDel(ctx, codeKey(input.Provider, codeHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		used, markerErr := srv.client.Exists(ctx, codeUsedKey(input.Provider, codeHash)).Result()
		if markerErr == nil && used > 0 {
			srv.metrics.CodeRedeemed(ctx, input.Provider, service.RedeemOutcomeAlreadyUsed)

			return nil, domainerrors.ErrCodeAlreadyUsed.WrapMessage("code was already redeemed")
		}
		srv.metrics.CodeRedeemed(ctx, input.Provider, service.RedeemOutcomeNotFound)

		return nil, domainerrors.ErrCodeNotFound.WrapMessage("no code matches for provider " + input.Provider)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up code")
	}

	var stored storedCode
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "failed to decode code")
	}

	// Redis expiry is authoritative, but the embedded timestamp is checked
	// as well so a lagging TTL cannot revive a dead code.
	if srv.now().After(stored.ExpiresAt) {
		srv.metrics.CodeRedeemed(ctx, input.Provider, service.RedeemOutcomeExpired)

		return nil, domainerrors.ErrCodeExpired.WrapMessage("code expired before redemption")
	}

	// The tombstone lets replays within one code lifetime be told apart
	// from codes that never existed. Losing it only degrades the error.
	if err := srv.client.Set(ctx, codeUsedKey(input.Provider, codeHash), "1", srv.codeTTL).Err(); err != nil {
		srv.log(ctx).Warn("Failed to record code tombstone", slog.Any("error", err))
	}

	// A verifier tied to this code is finished with; drop it so the round
	// trip leaves nothing behind.
	if stored.VerifierID != nil {
		if err := srv.client.Del(ctx, verifierKey(*stored.VerifierID)).Err(); err != nil {
			srv.log(ctx).Warn("Failed to delete linked verifier", slog.Any("error", err))
		}
	}

	srv.metrics.CodeRedeemed(ctx, input.Provider, service.RedeemOutcomeOK)
	srv.publishEvent(ctx, &service.AuthEvent{
		Kind:       service.EventCodeRedeemed,
		Provider:   input.Provider,
		Method:     stored.Method,
		OccurredAt: srv.now(),
	})

	srv.log(ctx).Debug("Code redeemed",
		slog.String("provider", input.Provider),
		slog.String("method", stored.Method),
	)

	return buildRedeemOutput(&stored), nil
}

// buildRedeemOutput assembles what the account linker needs: the channel
// claim is now proven, so it is returned verified.
func buildRedeemOutput(stored *storedCode) *usecase.RedeemCodeOutput {
	method := entity.AuthMethod(stored.Method)
	out := &usecase.RedeemCodeOutput{
		AccountRef: stored.AccountRef,
		Method:     method,
	}

	switch method {
	case entity.AuthMethodPhone:
		out.Profile = usecase.Profile{Phone: stored.AccountRef, PhoneVerified: true}
	default:
		out.Profile = usecase.Profile{Email: stored.AccountRef, EmailVerified: true}
	}

	return out
}

// CreateVerifier opens an OAuth round trip: the ID travels as the state
// parameter, the signature is the PKCE verifier, and only the signature's
// hash is stored.
func (srv *redisEngine) CreateVerifier(ctx context.Context, provider string, redirectURI string) (*usecase.VerifierGrant, error) {
	if provider == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("provider is required")
	}

	signature, err := util.MintToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint verifier signature")
	}

	id := uuid.New()
	now := srv.now()
	expiresAt := now.Add(srv.verifierTTL)

	payload, err := json.Marshal(storedVerifier{
		SignatureSum: util.HashSecret(signature),
		Provider:     provider,
		RedirectURI:  redirectURI,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode verifier")
	}

	if err := srv.client.Set(ctx, verifierKey(id), payload, srv.verifierTTL).Err(); err != nil {
		srv.log(ctx).Error("Failed to create verifier",
			slog.String("provider", provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to store verifier")
	}

	return &usecase.VerifierGrant{
		ID:        id,
		Signature: signature,
		ExpiresAt: expiresAt,
	}, nil
}

// ConsumeVerifier closes a round trip exactly once: whichever caller's DEL
// removes the key wins. Missing, expired, and signature-mismatched
// verifiers are deliberately indistinguishable to callers.
func (srv *redisEngine) ConsumeVerifier(ctx context.Context, id uuid.UUID, signature string) (*entity.Verifier, error) {
	if util.MalformedSecret(signature) {
		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("verifier signature is empty or malformed")
	}

	rejected := ""
	var stored storedVerifier

	data, err := srv.client.Get(ctx, verifierKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		rejected = "not found"
	case err != nil:
		return nil, errors.Wrap(err, "failed to look up verifier")
	default:
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, errors.Wrap(err, "failed to decode verifier")
		}

		switch {
		case srv.now().After(stored.ExpiresAt):
			if err := srv.client.Del(ctx, verifierKey(id)).Err(); err != nil {
				srv.log(ctx).Warn("Failed to delete expired verifier", slog.Any("error", err))
			}
			rejected = "expired"

		case subtle.ConstantTimeCompare([]byte(stored.SignatureSum), []byte(util.HashSecret(signature))) != 1:
			// A mismatch must not consume the verifier; the honest client
			// may still arrive with the right signature.
			rejected = "signature mismatch"

		default:
			deleted, err := srv.client.Del(ctx, verifierKey(id)).Result()
			if err != nil {
				return nil, errors.Wrap(err, "failed to consume verifier")
			}
			if deleted == 0 {
				rejected = "already consumed"
			}
		}
	}

	if rejected != "" {
		srv.log(ctx).Warn("Verifier consumption rejected",
			slog.Any("verifierID", id),
			slog.String("reason", rejected),
		)

		return nil, domainerrors.ErrVerifierNotFound.WrapMessage("verifier rejected: " + rejected)
	}

	return &entity.Verifier{
		ID:           id,
		SignatureSum: stored.SignatureSum,
		Provider:     stored.Provider,
		RedirectURI:  stored.RedirectURI,
		ExpiresAt:    stored.ExpiresAt,
		CreatedAt:    stored.CreatedAt,
	}, nil
}

// publishEvent emits an audit event, logging and swallowing failures.
func (srv *redisEngine) publishEvent(ctx context.Context, event *service.AuthEvent) {
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
func (srv *redisEngine) mintCode(method entity.AuthMethod) (string, error) {
	if method == entity.AuthMethodPhone {
		return util.MintOTP(srv.otpLength)
	}

	return util.MintToken()
}
