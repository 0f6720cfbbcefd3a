package impl

import (
	"io"
	"log/slog"
	"time"

	"authcore/config"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(b bool) *bool { return &b }

// newTestConfig wires the provider set the flow tests exercise: a trusted
// OAuth provider, one with linking disabled, email and phone channels, and
// credentials providers on both sides of the pre-verified switch.
func newTestConfig() *config.Config {
	return &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "google", Method: "oauth"},
			{Name: "strict-oauth", Method: "oauth", AllowDangerousEmailAccountLinking: boolPtr(false)},
			{Name: "email", Method: "email"},
			{Name: "phone", Method: "phone"},
			{Name: "credentials", Method: "credentials"},
			{Name: "corp", Method: "credentials", EmailPreVerified: true},
		},
		Codes: &config.CodesConfig{
			Length:      6,
			TTL:         10 * time.Minute,
			VerifierTTL: 10 * time.Minute,
		},
		Sessions: &config.SessionsConfig{
			SessionDuration:      720 * time.Hour,
			RefreshTokenDuration: 720 * time.Hour,
		},
		QRCode: &config.QRCodeConfig{
			Size:          256,
			SignInBaseURL: "https://auth.example.com/signin",
		},
	}
}
