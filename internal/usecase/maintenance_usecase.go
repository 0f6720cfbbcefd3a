package usecase

import "context"

// SweepReport counts what one garbage collection pass removed.
type SweepReport struct {
	ExpiredCodes         int64
	ExpiredVerifiers     int64
	ExpiredSessions      int64
	ExpiredRefreshTokens int64
	PrunedAuditEvents    int64
}

// MaintenanceUsecase reclaims space from expired rows. Expiry is always
// enforced lazily at read time; this sweep only keeps tables from growing,
// and nothing breaks if it never runs.
type MaintenanceUsecase interface {
	// Sweep removes expired codes, verifiers, sessions, and refresh tokens,
	// plus audit events past their retention.
	Sweep(ctx context.Context) (*SweepReport, error)
}
