package codes

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"authcore/config"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedSend struct {
	method     entity.AuthMethod
	accountRef string
	code       string
}

type fakeSender struct {
	mu    sync.Mutex
	sends []capturedSend
}

func (s *fakeSender) SendCode(_ context.Context, method entity.AuthMethod, accountRef string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, capturedSend{method: method, accountRef: accountRef, code: code})

	return nil
}

func (s *fakeSender) last() (capturedSend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sends) == 0 {
		return capturedSend{}, false
	}

	return s.sends[len(s.sends)-1], true
}

type fakePublisher struct {
	mu     sync.Mutex
	events []service.AuthEvent
}

func (p *fakePublisher) PublishAuthEvent(_ context.Context, event *service.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)

	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) countKind(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, e := range p.events {
		if e.Kind == kind {
			count++
		}
	}

	return count
}

type fakeMetrics struct {
	mu       sync.Mutex
	redeemed map[string]int
	issued   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{redeemed: make(map[string]int)}
}

func (m *fakeMetrics) LinkRecorded(context.Context, string, bool) {}

func (m *fakeMetrics) CodeIssued(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
}

func (m *fakeMetrics) CodeRedeemed(_ context.Context, _ string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redeemed[outcome]++
}

func (m *fakeMetrics) RefreshReuseDetected(context.Context) {}
func (m *fakeMetrics) SessionCreated(context.Context)       {}

func (m *fakeMetrics) redeemedCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.redeemed[outcome]
}

type redisFixtures struct {
	engine    usecase.CodeUsecase
	mr        *miniredis.Miniredis
	sender    *fakeSender
	publisher *fakePublisher
	metrics   *fakeMetrics
}

func createTestRedisEngine(t *testing.T) redisFixtures {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sender := &fakeSender{}
	publisher := &fakePublisher{}
	metrics := newFakeMetrics()

	engine, err := NewCodeEngine(EngineParams{
		Sender:    sender,
		Publisher: publisher,
		Metrics:   metrics,
		Config: &config.Config{
			Codes: &config.CodesConfig{Backend: "redis"},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:  client,
	})
	require.NoError(t, err)

	return redisFixtures{
		engine:    engine,
		mr:        mr,
		sender:    sender,
		publisher: publisher,
		metrics:   metrics,
	}
}

func TestRedisEngine_IssueAndRedeem(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	issued, err := fx.engine.IssueCode(ctx, &usecase.IssueCodeInput{
		AccountRef: "ada@example.com",
		Provider:   "email",
		Method:     entity.AuthMethodEmail,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Code)

	delivered, ok := fx.sender.last()
	require.True(t, ok)
	assert.Equal(t, issued.Code, delivered.code)
	assert.Equal(t, "ada@example.com", delivered.accountRef)

	redeemed, err := fx.engine.RedeemCode(ctx, &usecase.RedeemCodeInput{
		Provider: "email",
		Code:     issued.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", redeemed.AccountRef)
	assert.Equal(t, entity.AuthMethodEmail, redeemed.Method)
	assert.Equal(t, "ada@example.com", redeemed.Profile.Email)
	assert.True(t, redeemed.Profile.EmailVerified)

	assert.Equal(t, 1, fx.metrics.redeemedCount(service.RedeemOutcomeOK))
	assert.Equal(t, 1, fx.publisher.countKind(service.EventCodeIssued))
	assert.Equal(t, 1, fx.publisher.countKind(service.EventCodeRedeemed))
}

func TestRedisEngine_PhoneGetsNumericOTP(t *testing.T) {
	fx := createTestRedisEngine(t)

	issued, err := fx.engine.IssueCode(context.Background(), &usecase.IssueCodeInput{
		AccountRef: "+886900000001",
		Provider:   "phone",
		Method:     entity.AuthMethodPhone,
	})
	require.NoError(t, err)
	require.Len(t, issued.Code, 6)
	for _, r := range issued.Code {
		assert.True(t, r >= '0' && r <= '9')
	}

	redeemed, err := fx.engine.RedeemCode(context.Background(), &usecase.RedeemCodeInput{
		Provider: "phone",
		Code:     issued.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, "+886900000001", redeemed.Profile.Phone)
	assert.True(t, redeemed.Profile.PhoneVerified)
}

func TestRedisEngine_ReplayIsRecognized(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	issued, err := fx.engine.IssueCode(ctx, &usecase.IssueCodeInput{
		AccountRef: "ada@example.com",
		Provider:   "email",
		Method:     entity.AuthMethodEmail,
	})
	require.NoError(t, err)

	_, err = fx.engine.RedeemCode(ctx, &usecase.RedeemCodeInput{Provider: "email", Code: issued.Code})
	require.NoError(t, err)

	_, err = fx.engine.RedeemCode(ctx, &usecase.RedeemCodeInput{Provider: "email", Code: issued.Code})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrCodeAlreadyUsed))
	assert.Equal(t, 1, fx.metrics.redeemedCount(service.RedeemOutcomeAlreadyUsed))
}

func TestRedisEngine_UnknownCode(t *testing.T) {
	fx := createTestRedisEngine(t)

	_, err := fx.engine.RedeemCode(context.Background(), &usecase.RedeemCodeInput{
		Provider: "email",
		Code:     "never-issued",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrCodeNotFound))
}

func TestRedisEngine_MalformedCode(t *testing.T) {
	fx := createTestRedisEngine(t)

	_, err := fx.engine.RedeemCode(context.Background(), &usecase.RedeemCodeInput{
		Provider: "email",
		Code:     "has space",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrCodeMalformed))
	assert.Equal(t, 1, fx.metrics.redeemedCount(service.RedeemOutcomeMalformed))
}

func TestRedisEngine_SupersedesPreviousCode(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	first, err := fx.engine.IssueCode(ctx, &usecase.IssueCodeInput{
		AccountRef: "ada@example.com",
		Provider:   "email",
		Method:     entity.AuthMethodEmail,
	})
	require.NoError(t, err)

	second, err := fx.engine.IssueCode(ctx, &usecase.IssueCodeInput{
		AccountRef: "ada@example.com",
		Provider:   "email",
		Method:     entity.AuthMethodEmail,
	})
	require.NoError(t, err)

	// The older code died when the newer one was issued.
	_, err = fx.engine.RedeemCode(ctx, &usecase.RedeemCodeInput{Provider: "email", Code: first.Code})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrCodeNotFound))

	_, err = fx.engine.RedeemCode(ctx, &usecase.RedeemCodeInput{Provider: "email", Code: second.Code})
	require.NoError(t, err)
}

func TestRedisEngine_ExpiredCodeStopsRedeeming(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	issued, err := fx.engine.IssueCode(ctx, &usecase.IssueCodeInput{
		AccountRef: "ada@example.com",
		Provider:   "email",
		Method:     entity.AuthMethodEmail,
		TTL:        time.Minute,
	})
	require.NoError(t, err)

	fx.mr.FastForward(2 * time.Minute)

	_, err = fx.engine.RedeemCode(ctx, &usecase.RedeemCodeInput{Provider: "email", Code: issued.Code})
	require.Error(t, err)
	// Native TTL removed the key, so the attempt reads as unknown.
	assert.True(t, errors.Is(err, domainerrors.ErrCodeNotFound))
}

func TestRedisEngine_VerifierRoundTrip(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	grant, err := fx.engine.CreateVerifier(ctx, "google", "https://app.example.com/callback")
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Signature)

	verifier, err := fx.engine.ConsumeVerifier(ctx, grant.ID, grant.Signature)
	require.NoError(t, err)
	assert.Equal(t, grant.ID, verifier.ID)
	assert.Equal(t, "google", verifier.Provider)
	assert.Equal(t, "https://app.example.com/callback", verifier.RedirectURI)

	// Consumed means consumed.
	_, err = fx.engine.ConsumeVerifier(ctx, grant.ID, grant.Signature)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrVerifierNotFound))
}

func TestRedisEngine_VerifierSignatureMismatchDoesNotConsume(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	grant, err := fx.engine.CreateVerifier(ctx, "google", "")
	require.NoError(t, err)

	_, err = fx.engine.ConsumeVerifier(ctx, grant.ID, "wrong-signature")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrVerifierNotFound))

	// The honest client can still finish the round trip.
	_, err = fx.engine.ConsumeVerifier(ctx, grant.ID, grant.Signature)
	require.NoError(t, err)
}

func TestRedisEngine_VerifierExpires(t *testing.T) {
	fx := createTestRedisEngine(t)
	ctx := context.Background()

	grant, err := fx.engine.CreateVerifier(ctx, "google", "")
	require.NoError(t, err)

	fx.mr.FastForward(11 * time.Minute)

	_, err = fx.engine.ConsumeVerifier(ctx, grant.ID, grant.Signature)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrVerifierNotFound))
}

func TestNewCodeEngine_BackendSelection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The relational store is the default backend.
	engine, err := NewCodeEngine(EngineParams{Config: &config.Config{}, Logger: logger})
	require.NoError(t, err)
	assert.NotNil(t, engine)

	// Redis backend without a connection is a configuration error.
	_, err = NewCodeEngine(EngineParams{
		Config: &config.Config{Codes: &config.CodesConfig{Backend: "redis"}},
		Logger: logger,
	})
	require.Error(t, err)

	_, err = NewCodeEngine(EngineParams{
		Config: &config.Config{Codes: &config.CodesConfig{Backend: "carrier-pigeon"}},
		Logger: logger,
	})
	require.Error(t, err)
}
