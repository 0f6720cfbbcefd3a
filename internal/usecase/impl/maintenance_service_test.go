package impl

import (
	"context"
	"testing"
	"time"

	"authcore/config"
	"authcore/internal/domain/entity"
	"authcore/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestMaintenanceService(t *testing.T, opts ...func(*config.Config)) (usecase.MaintenanceUsecase, *memStore) {
	t.Helper()

	store := newMemStore()
	cfg := newTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	service := NewMaintenanceService(MaintenanceServiceParams{
		TxManager: newFakeTxManager(store),
		Config:    cfg,
		Logger:    newDiscardLogger(),
	})

	return service, store
}

func TestMaintenanceService_Sweep_ReclaimsExpiredRows(t *testing.T) {
	service, store := createTestMaintenanceService(t)

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	user := store.seedUser(&entity.User{Name: "Ada"})

	store.seedCode(&entity.VerificationCode{AccountRef: "a@example.com", Provider: "email", CodeHash: "h1", Method: entity.AuthMethodEmail, ExpiresAt: past})
	store.seedCode(&entity.VerificationCode{AccountRef: "b@example.com", Provider: "email", CodeHash: "h2", Method: entity.AuthMethodEmail, ExpiresAt: past})
	store.seedCode(&entity.VerificationCode{AccountRef: "c@example.com", Provider: "email", CodeHash: "h3", Method: entity.AuthMethodEmail, ExpiresAt: future})

	store.seedVerifier(&entity.Verifier{SignatureSum: "s1", Provider: "google", ExpiresAt: past})
	store.seedVerifier(&entity.Verifier{SignatureSum: "s2", Provider: "google", ExpiresAt: future})

	expiredSession := store.seedSession(&entity.Session{UserID: user.ID, ExpiresAt: past})
	liveSession := store.seedSession(&entity.Session{UserID: user.ID, ExpiresAt: future})

	store.seedRefreshToken(&entity.RefreshToken{SessionID: expiredSession.ID, UserID: user.ID, TokenHash: "t1", ExpiresAt: past})
	store.seedRefreshToken(&entity.RefreshToken{SessionID: expiredSession.ID, UserID: user.ID, TokenHash: "t2", ExpiresAt: past})
	store.seedRefreshToken(&entity.RefreshToken{SessionID: liveSession.ID, UserID: user.ID, TokenHash: "t3", ExpiresAt: future})

	store.seedAuditEvent(&entity.AuditEvent{Kind: "user.created", UserID: user.ID, OccurredAt: now.Add(-120 * 24 * time.Hour)})
	store.seedAuditEvent(&entity.AuditEvent{Kind: "session.created", UserID: user.ID, OccurredAt: now.Add(-91 * 24 * time.Hour)})
	store.seedAuditEvent(&entity.AuditEvent{Kind: "session.revoked", UserID: user.ID, OccurredAt: now.Add(-time.Hour)})

	report, err := service.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), report.ExpiredCodes)
	assert.Equal(t, int64(1), report.ExpiredVerifiers)
	assert.Equal(t, int64(2), report.ExpiredRefreshTokens)
	assert.Equal(t, int64(1), report.ExpiredSessions)
	assert.Equal(t, int64(2), report.PrunedAuditEvents)

	// Live rows are untouched.
	assert.Equal(t, 1, store.codeCount())
	assert.Equal(t, 1, store.verifierCount())
	assert.Equal(t, 1, store.refreshTokenCount())
	assert.Equal(t, 1, store.sessionCount())
	assert.Equal(t, 1, store.auditEventCount())
	assert.NotNil(t, store.sessionByID(liveSession.ID))
}

func TestMaintenanceService_Sweep_EmptyStore(t *testing.T) {
	service, _ := createTestMaintenanceService(t)

	report, err := service.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(0), report.ExpiredCodes)
	assert.Equal(t, int64(0), report.ExpiredVerifiers)
	assert.Equal(t, int64(0), report.ExpiredRefreshTokens)
	assert.Equal(t, int64(0), report.ExpiredSessions)
	assert.Equal(t, int64(0), report.PrunedAuditEvents)
}

func TestMaintenanceService_Sweep_HonorsConfiguredRetention(t *testing.T) {
	service, store := createTestMaintenanceService(t, func(cfg *config.Config) {
		cfg.Maintenance = &config.MaintenanceConfig{AuditRetention: 24 * time.Hour}
	})

	store.seedAuditEvent(&entity.AuditEvent{Kind: "user.created", OccurredAt: time.Now().Add(-48 * time.Hour)})
	store.seedAuditEvent(&entity.AuditEvent{Kind: "user.created", OccurredAt: time.Now().Add(-time.Hour)})

	report, err := service.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), report.PrunedAuditEvents)
	assert.Equal(t, 1, store.auditEventCount())
}
