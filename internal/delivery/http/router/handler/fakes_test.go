package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"authcore/internal/delivery/http/validator"
	"authcore/internal/domain/entity"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type fakeSignIn struct {
	beginOutput *usecase.BeginEmailSignInOutput
	beginErr    error
	beginInput  *usecase.BeginEmailSignInInput

	completeResult *usecase.SignInResult
	completeErr    error
	completeInput  *usecase.CompleteEmailSignInInput

	oauthOutput *usecase.BeginOAuthOutput
	oauthErr    error
	oauthBegin  *usecase.BeginOAuthInput

	oauthResult   *usecase.SignInResult
	oauthEndErr   error
	oauthComplete *usecase.CompleteOAuthInput

	idTokenResult *usecase.SignInResult
	idTokenErr    error

	credentialsResult *usecase.SignInResult
	credentialsErr    error
	credentialsInput  *usecase.CredentialsSignInInput

	signOutErr error
	signedOut  uuid.UUID
}

func (f *fakeSignIn) BeginEmailSignIn(_ context.Context, input *usecase.BeginEmailSignInInput) (*usecase.BeginEmailSignInOutput, error) {
	f.beginInput = input

	return f.beginOutput, f.beginErr
}

func (f *fakeSignIn) CompleteEmailSignIn(_ context.Context, input *usecase.CompleteEmailSignInInput) (*usecase.SignInResult, error) {
	f.completeInput = input

	return f.completeResult, f.completeErr
}

func (f *fakeSignIn) BeginOAuth(_ context.Context, input *usecase.BeginOAuthInput) (*usecase.BeginOAuthOutput, error) {
	f.oauthBegin = input

	return f.oauthOutput, f.oauthErr
}

func (f *fakeSignIn) CompleteOAuth(_ context.Context, input *usecase.CompleteOAuthInput) (*usecase.SignInResult, error) {
	f.oauthComplete = input

	return f.oauthResult, f.oauthEndErr
}

func (f *fakeSignIn) SignInWithIDToken(_ context.Context, _ *usecase.IDTokenSignInInput) (*usecase.SignInResult, error) {
	return f.idTokenResult, f.idTokenErr
}

func (f *fakeSignIn) SignInWithCredentials(_ context.Context, input *usecase.CredentialsSignInInput) (*usecase.SignInResult, error) {
	f.credentialsInput = input

	return f.credentialsResult, f.credentialsErr
}

func (f *fakeSignIn) SignOut(_ context.Context, sessionID uuid.UUID) error {
	f.signedOut = sessionID

	return f.signOutErr
}

type fakeSessions struct {
	createTokens *usecase.SessionTokens
	createErr    error

	refreshTokens    *usecase.SessionTokens
	refreshErr       error
	presentedRefresh string

	invalidateErr error
	invalidated   uuid.UUID

	invalidateUserErr error
	invalidatedUser   uuid.UUID

	sessions []*entity.Session
	listErr  error

	claims      *service.Claims
	validateErr error
}

func (f *fakeSessions) CreateSession(_ context.Context, _ uuid.UUID) (*usecase.SessionTokens, error) {
	return f.createTokens, f.createErr
}

func (f *fakeSessions) Refresh(_ context.Context, refreshToken string) (*usecase.SessionTokens, error) {
	f.presentedRefresh = refreshToken

	return f.refreshTokens, f.refreshErr
}

func (f *fakeSessions) InvalidateSession(_ context.Context, sessionID uuid.UUID) error {
	f.invalidated = sessionID

	return f.invalidateErr
}

func (f *fakeSessions) InvalidateUserSessions(_ context.Context, userID uuid.UUID) error {
	f.invalidatedUser = userID

	return f.invalidateUserErr
}

func (f *fakeSessions) ListSessions(_ context.Context, _ uuid.UUID) ([]*entity.Session, error) {
	return f.sessions, f.listErr
}

func (f *fakeSessions) ValidateAccess(_ context.Context, _ string) (*service.Claims, error) {
	return f.claims, f.validateErr
}

type fakeAuditQueries struct {
	events []*entity.AuditEvent
	err    error
	limit  int
}

func (f *fakeAuditQueries) RecordEvent(_ context.Context, _ *service.AuthEvent) error {
	return nil
}

func (f *fakeAuditQueries) ListUserEvents(_ context.Context, _ uuid.UUID, limit int) ([]*entity.AuditEvent, error) {
	f.limit = limit

	return f.events, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestContext builds an echo context the way the router sets one up,
// validator included.
func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validator.New()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	return e.NewContext(req, rec), rec
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}

	t.Fatalf("cookie %s not set", name)

	return nil
}

func sampleSignInResult() *usecase.SignInResult {
	return &usecase.SignInResult{
		UserID:    uuid.New(),
		IsNewUser: true,
		Session: &usecase.SessionTokens{
			SessionID:        uuid.New(),
			AccessToken:      "access-token",
			RefreshToken:     "refresh-token",
			SessionExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
		},
	}
}
