// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"authcore/config"
	"authcore/internal/delivery/http/response"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// verifierCookieName holds the PKCE verifier between the two OAuth legs.
// HttpOnly keeps it out of reach of page scripts; Lax survives the top-level
// redirect back from the provider.
const verifierCookieName = "authcore_oauth_verifier"

const defaultVerifierCookieTTL = 10 * time.Minute

// AuthHandler serves the sign-in flows.
type AuthHandler struct {
	uc     usecase.SignInUsecase
	cfg    *config.Config
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.SignInUsecase, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:     uc,
		cfg:    cfg,
		logger: logger,
	}
}

type beginEmailRequest struct {
	Provider   string `json:"provider" validate:"required"`
	AccountRef string `json:"account_ref" validate:"required"`
	WithQR     bool   `json:"with_qr"`
}

// BeginEmailSignIn issues a one-time code for an email or phone channel.
func (h *AuthHandler) BeginEmailSignIn(c echo.Context) error {
	var req beginEmailRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.uc.BeginEmailSignIn(c.Request().Context(), &usecase.BeginEmailSignInInput{
		Provider:   req.Provider,
		AccountRef: req.AccountRef,
		WithQR:     req.WithQR,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusAccepted, newBeginEmailResponse(output))
}

type completeEmailRequest struct {
	Provider string `json:"provider" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// CompleteEmailSignIn redeems a delivered code and opens a session.
func (h *AuthHandler) CompleteEmailSignIn(c echo.Context) error {
	var req completeEmailRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.uc.CompleteEmailSignIn(c.Request().Context(), &usecase.CompleteEmailSignInInput{
		Provider: req.Provider,
		Code:     req.Code,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newSignInResponse(result))
}

// EmailSignInQR issues a code and answers with the hand-off QR as a PNG, for
// finishing the flow on a second device.
func (h *AuthHandler) EmailSignInQR(c echo.Context) error {
	provider := c.QueryParam("provider")
	accountRef := c.QueryParam("account_ref")
	if provider == "" || accountRef == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("provider and account_ref are required")
	}

	output, err := h.uc.BeginEmailSignIn(c.Request().Context(), &usecase.BeginEmailSignInInput{
		Provider:   provider,
		AccountRef: accountRef,
		WithQR:     true,
	})
	if err != nil {
		return err
	}
	if len(output.QRCode) == 0 {
		return domainerrors.ErrNotFound.WrapMessage("qr hand-off is not configured")
	}

	return c.Blob(http.StatusOK, "image/png", output.QRCode)
}

// BeginOAuth opens a redirect flow. The PKCE verifier travels back to the
// client both as an HttpOnly cookie (browser flows) and in the body (native
// clients that complete the flow with an explicit signature).
func (h *AuthHandler) BeginOAuth(c echo.Context) error {
	output, err := h.uc.BeginOAuth(c.Request().Context(), &usecase.BeginOAuthInput{
		Provider:    c.Param("provider"),
		RedirectURI: c.QueryParam("redirect_uri"),
	})
	if err != nil {
		return err
	}

	h.setVerifierCookie(c, output.Signature)

	if c.QueryParam("redirect") == "true" {
		return c.Redirect(http.StatusTemporaryRedirect, output.AuthURL)
	}

	return response.Success(c, http.StatusOK, beginOAuthResponse{
		AuthURL:   output.AuthURL,
		State:     output.State,
		Signature: output.Signature,
	})
}

// OAuthCallback finishes a redirect flow with what the provider sent back.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return domainerrors.ErrAuthorization.WrapMessage("provider rejected the sign-in: " + errParam)
	}

	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("state and code are required")
	}

	signature := c.QueryParam("signature")
	if cookie, err := c.Cookie(verifierCookieName); err == nil && cookie.Value != "" {
		signature = cookie.Value
	}

	result, err := h.uc.CompleteOAuth(c.Request().Context(), &usecase.CompleteOAuthInput{
		Provider:    c.Param("provider"),
		State:       state,
		Code:        code,
		Signature:   signature,
		RedirectURI: c.QueryParam("redirect_uri"),
	})
	if err != nil {
		return err
	}

	h.clearVerifierCookie(c)

	return response.Success(c, http.StatusOK, newSignInResponse(result))
}

type idTokenSignInRequest struct {
	Provider string `json:"provider" validate:"required"`
	IDToken  string `json:"id_token" validate:"required"`
}

// SignInWithIDToken verifies a client-obtained ID token and opens a session.
func (h *AuthHandler) SignInWithIDToken(c echo.Context) error {
	var req idTokenSignInRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.uc.SignInWithIDToken(c.Request().Context(), &usecase.IDTokenSignInInput{
		Provider: req.Provider,
		IDToken:  req.IDToken,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newSignInResponse(result))
}

type credentialsSignInRequest struct {
	Provider   string `json:"provider" validate:"required"`
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
	Name       string `json:"name"`
}

// SignInWithCredentials verifies an identifier/secret pair, registering the
// identity on first use.
func (h *AuthHandler) SignInWithCredentials(c echo.Context) error {
	var req credentialsSignInRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.uc.SignInWithCredentials(c.Request().Context(), &usecase.CredentialsSignInInput{
		Provider:   req.Provider,
		Identifier: req.Identifier,
		Secret:     req.Secret,
		Name:       req.Name,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newSignInResponse(result))
}

func (h *AuthHandler) setVerifierCookie(c echo.Context, signature string) {
	c.SetCookie(&http.Cookie{
		Name:     verifierCookieName,
		Value:    signature,
		Path:     "/auth/oauth",
		MaxAge:   int(h.verifierCookieTTL().Seconds()),
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearVerifierCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     verifierCookieName,
		Value:    "",
		Path:     "/auth/oauth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) verifierCookieTTL() time.Duration {
	if h.cfg.Codes != nil && h.cfg.Codes.VerifierTTL > 0 {
		return h.cfg.Codes.VerifierTTL
	}

	return defaultVerifierCookieTTL
}
