package service

import (
	"context"

	"authcore/internal/domain/entity"
)

// CodeSender delivers a one-time code to its destination channel.
// Mail and SMS gateways live outside this module; the code engine only
// depends on this seam and treats delivery failures as issue failures.
type CodeSender interface {
	// SendCode delivers the raw code to accountRef over the channel implied
	// by the method (email address or phone number).
	SendCode(ctx context.Context, method entity.AuthMethod, accountRef string, code string) error
}
