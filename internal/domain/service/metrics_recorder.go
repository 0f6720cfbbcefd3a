package service

import "context"

// Redemption outcomes recorded by MetricsRecorder.CodeRedeemed.
const (
	RedeemOutcomeOK          = "ok"
	RedeemOutcomeNotFound    = "not_found"
	RedeemOutcomeExpired     = "expired"
	RedeemOutcomeAlreadyUsed = "already_used"
	RedeemOutcomeMalformed   = "malformed"
)

// MetricsRecorder counts security-significant outcomes. Implementations must
// be safe for concurrent use and must never fail the operation being counted.
type MetricsRecorder interface {
	// LinkRecorded counts a resolved account link.
	LinkRecorded(ctx context.Context, provider string, isNewUser bool)

	// CodeIssued counts a minted verification code.
	CodeIssued(ctx context.Context, provider string)

	// CodeRedeemed counts a redemption attempt by outcome.
	CodeRedeemed(ctx context.Context, provider string, outcome string)

	// RefreshReuseDetected counts a replayed refresh token, the strongest
	// theft signal this system observes.
	RefreshReuseDetected(ctx context.Context)

	// SessionCreated counts an opened session.
	SessionCreated(ctx context.Context)
}
