// Package notification delivers one-time sign-in codes to the channel
// address they were minted for.
package notification

import (
	"context"
	"log/slog"

	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	"authcore/internal/domain/service"
)

type logSender struct {
	logger *slog.Logger
}

// NewLogCodeSender returns the development sender: it writes the raw code to
// the log so the sign-in flow can be exercised without an email or SMS
// gateway. Production deployments swap in their own CodeSender.
func NewLogCodeSender(logger *slog.Logger) service.CodeSender {
	return &logSender{logger: logger}
}

func (s *logSender) SendCode(ctx context.Context, method entity.AuthMethod, accountRef string, code string) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, s.logger)
	logger.InfoContext(ctx, "Delivering sign-in code",
		slog.String("channel", channelFor(method)),
		slog.String("account_ref", accountRef),
		slog.String("code", code),
	)

	return nil
}

func channelFor(method entity.AuthMethod) string {
	switch method {
	case entity.AuthMethodEmail:
		return "email"
	case entity.AuthMethodPhone:
		return "sms"
	default:
		return string(method)
	}
}
