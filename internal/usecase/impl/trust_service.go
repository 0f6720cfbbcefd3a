// Package impl contains the implementation of the application's business logic.
package impl

import (
	"authcore/config"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/usecase"

	"go.uber.org/fx"
)

// trustRule is one provider's resolved trust policy.
type trustRule struct {
	method            entity.AuthMethod
	allowEmailLinking bool
	emailPreVerified  bool
}

// trustService implements the TrustUsecase interface.
type trustService struct {
	rules map[string]trustRule
}

// TrustServiceParams holds dependencies for trustService, injected by Fx.
type TrustServiceParams struct {
	fx.In

	Config *config.Config
}

// NewTrustService resolves the configured providers into trust rules. A
// malformed provider entry fails construction, which aborts startup; trust
// questions must never be answered by guessing at request time.
func NewTrustService(params TrustServiceParams) (usecase.TrustUsecase, error) {
	rules := make(map[string]trustRule, len(params.Config.Providers))

	for i := range params.Config.Providers {
		p := &params.Config.Providers[i]

		method := entity.AuthMethod(p.Method)
		if !method.IsValid() {
			return nil, domainerrors.ErrProviderConfig.WrapMessage("provider " + p.Name + " has unknown method " + p.Method)
		}

		allowEmailLinking := true
		if p.AllowDangerousEmailAccountLinking != nil {
			allowEmailLinking = *p.AllowDangerousEmailAccountLinking
		}

		rules[p.Name] = trustRule{
			method:            method,
			allowEmailLinking: allowEmailLinking,
			emailPreVerified:  p.EmailPreVerified,
		}
	}

	return &trustService{rules: rules}, nil
}

// IsTrusted reports whether identity claims from this provider and method may
// deduplicate against existing verified users.
//
// Email and phone codes prove control of the channel directly, so they are
// always trusted. OAuth providers are trusted unless linking was explicitly
// disallowed for them. Credentials providers are untrusted unless their
// emails are verified out of band.
func (srv *trustService) IsTrusted(provider string, method entity.AuthMethod) (bool, error) {
	rule, ok := srv.rules[provider]
	if !ok {
		return false, domainerrors.ErrProviderConfig.WrapMessage("provider " + provider + " is not configured")
	}

	if rule.method != method {
		return false, domainerrors.ErrProviderConfig.WrapMessage("provider " + provider + " is configured for method " + rule.method.String() + ", not " + method.String())
	}

	switch method {
	case entity.AuthMethodEmail, entity.AuthMethodPhone:
		return true, nil
	case entity.AuthMethodOAuth:
		return rule.allowEmailLinking, nil
	case entity.AuthMethodCredentials:
		return rule.emailPreVerified, nil
	default:
		return false, domainerrors.ErrProviderConfig.WrapMessage("method " + method.String() + " has no trust rule")
	}
}
