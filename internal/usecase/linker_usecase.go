package usecase

import (
	"context"

	"authcore/internal/domain/entity"
	"authcore/internal/domain/repository"

	"github.com/google/uuid"
)

// Profile carries the identity claims a provider attested for one sign-in.
type Profile struct {
	Email         string
	EmailVerified bool
	Phone         string
	PhoneVerified bool
	Name          string
	AvatarURL     string
}

// LinkAccountInput identifies one incoming sign-in to reconcile.
type LinkAccountInput struct {
	Provider          string
	ProviderAccountID string
	Method            entity.AuthMethod
	Profile           Profile

	// Secret is provider credential material stored on the account record,
	// e.g. serialized OAuth tokens or a credentials hash.
	Secret string

	// RequestID propagates into audit events for tracing.
	RequestID string
}

// LinkAccountOutput reports the resolved identity.
type LinkAccountOutput struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	IsNewUser bool

	// HookErr carries a post-link hook failure. When set, the identity and
	// account writes have still committed; the caller decides whether the
	// secondary failure matters to it.
	HookErr error
}

// CreateOrUpdateUserInput is handed to the custom user callback when one is
// configured. The callback fully replaces the default resolve-or-create
// logic; its writes go through Repos so they join the linking transaction.
type CreateOrUpdateUserInput struct {
	ExistingUserID *uuid.UUID
	Profile        Profile
	Provider       string
	Method         entity.AuthMethod
	Trusted        bool
	Repos          repository.RepositoryFactory
}

// CreateOrUpdateUserFunc decides which user an incoming sign-in belongs to.
// Returning an error rejects the sign-in and rolls back the transaction.
type CreateOrUpdateUserFunc func(ctx context.Context, input *CreateOrUpdateUserInput) (uuid.UUID, error)

// AfterUserInput is handed to the post-link hook.
type AfterUserInput struct {
	UserID         uuid.UUID
	ExistingUserID *uuid.UUID
	IsNewUser      bool
	Repos          repository.RepositoryFactory
}

// AfterUserFunc runs after the identity writes have committed, in its own
// transaction. Its failure never undoes the committed identity.
type AfterUserFunc func(ctx context.Context, input *AfterUserInput) error

// LinkerUsecase reconciles incoming provider identities into canonical users.
type LinkerUsecase interface {
	// LinkAccount maps (provider, providerAccountID, profile) onto a user,
	// creating the user and account records as needed. Concurrent sign-ins
	// for the same trusted email converge on a single user.
	LinkAccount(ctx context.Context, input *LinkAccountInput) (*LinkAccountOutput, error)
}
