package handler

import (
	"time"

	"authcore/internal/domain/entity"
	"authcore/internal/usecase"

	"github.com/google/uuid"
)

type sessionTokensResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}

type signInResponse struct {
	UserID    string                 `json:"user_id"`
	IsNewUser bool                   `json:"is_new_user"`
	Session   *sessionTokensResponse `json:"session"`
}

type beginEmailResponse struct {
	ExpiresAt   time.Time `json:"expires_at"`
	HandoffLink string    `json:"handoff_link,omitempty"`
	QRCode      []byte    `json:"qr_code,omitempty"`
}

type beginOAuthResponse struct {
	AuthURL   string `json:"auth_url"`
	State     string `json:"state"`
	Signature string `json:"signature"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Current   bool      `json:"current"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Provider   string    `json:"provider,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newSessionTokensResponse(tokens *usecase.SessionTokens) *sessionTokensResponse {
	if tokens == nil {
		return nil
	}

	return &sessionTokensResponse{
		SessionID:        tokens.SessionID.String(),
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		SessionExpiresAt: tokens.SessionExpiresAt,
	}
}

func newSignInResponse(result *usecase.SignInResult) *signInResponse {
	return &signInResponse{
		UserID:    result.UserID.String(),
		IsNewUser: result.IsNewUser,
		Session:   newSessionTokensResponse(result.Session),
	}
}

func newBeginEmailResponse(output *usecase.BeginEmailSignInOutput) *beginEmailResponse {
	return &beginEmailResponse{
		ExpiresAt:   output.ExpiresAt,
		HandoffLink: output.HandoffLink,
		QRCode:      output.QRCode,
	}
}

func newSessionResponses(sessions []*entity.Session, current uuid.UUID) []*sessionResponse {
	out := make([]*sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, &sessionResponse{
			ID:        s.ID.String(),
			Current:   s.ID == current,
			ExpiresAt: s.ExpiresAt,
			CreatedAt: s.CreatedAt,
		})
	}

	return out
}

func newAuditEventResponses(events []*entity.AuditEvent) []*auditEventResponse {
	out := make([]*auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, &auditEventResponse{
			ID:         e.ID.String(),
			Kind:       e.Kind,
			Provider:   e.Provider,
			RequestID:  e.RequestID,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}

	return out
}
