// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"authcore/internal/domain/entity"
)

// TrustUsecase classifies whether a provider/method pair's identity claims
// are considered pre-verified. The account linker consults this before it is
// willing to attach a sign-in to an existing user by email or phone.
//
// Classification is pure: it reads only provider configuration fixed at
// startup and never touches the store.
type TrustUsecase interface {
	// IsTrusted reports whether claims from the given provider and method may
	// deduplicate against existing verified identities. An unknown provider
	// is a configuration fault, not a user error.
	IsTrusted(provider string, method entity.AuthMethod) (bool, error)
}
