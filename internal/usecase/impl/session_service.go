package impl

import (
	"context"
	"log/slog"
	"time"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"
	"authcore/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultSessionDuration = 720 * time.Hour

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager    repository.TransactionManager
	tokenService service.TokenService
	publisher    service.EventPublisher
	metrics      service.MetricsRecorder
	logger       *slog.Logger

	sessionDuration   time.Duration
	maxActiveSessions int
	revokeOnReuse     bool

	now func() time.Time
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	TokenService service.TokenService
	Publisher    service.EventPublisher
	Metrics      service.MetricsRecorder
	Config       *config.Config
	Logger       *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	sessionDuration := defaultSessionDuration
	maxActiveSessions := 0
	revokeOnReuse := true
	if params.Config != nil && params.Config.Sessions != nil {
		if params.Config.Sessions.SessionDuration > 0 {
			sessionDuration = params.Config.Sessions.SessionDuration
		}
		maxActiveSessions = params.Config.Sessions.MaxActiveSessions
		if params.Config.Sessions.RevokeOnReuse != nil {
			revokeOnReuse = *params.Config.Sessions.RevokeOnReuse
		}
	}

	return &sessionService{
		txManager:         params.TxManager,
		tokenService:      params.TokenService,
		publisher:         params.Publisher,
		metrics:           params.Metrics,
		logger:            params.Logger,
		sessionDuration:   sessionDuration,
		maxActiveSessions: maxActiveSessions,
		revokeOnReuse:     revokeOnReuse,
		now:               time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateSession opens a session and mints its first access/refresh pair.
// When the per-user cap is reached the oldest sessions are evicted first.
func (srv *sessionService) CreateSession(ctx context.Context, userID uuid.UUID) (*usecase.SessionTokens, error) {
	rawRefresh, refreshHash, err := srv.tokenService.NewRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint refresh token")
	}

	now := srv.now()
	session := &entity.Session{
		UserID:    userID,
		ExpiresAt: now.Add(srv.sessionDuration),
	}
	refreshToken := &entity.RefreshToken{
		UserID:    userID,
		TokenHash: refreshHash,
		ExpiresAt: now.Add(srv.tokenService.GetRefreshTokenDuration()),
	}

	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		if _, err := repos.NewUserRepository().FindByID(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound.WrapMessage("cannot open session for unknown user")
			}

			return errors.Wrap(err, "failed to load user")
		}

		if err := srv.evictForCap(ctx, repos, userID); err != nil {
			return err
		}

		if err := repos.NewSessionRepository().Create(ctx, session); err != nil {
			return errors.Wrap(err, "failed to create session")
		}

		refreshToken.SessionID = session.ID
		if err := repos.NewRefreshTokenRepository().Create(ctx, refreshToken); err != nil {
			return errors.Wrap(err, "failed to create refresh token")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute session create transaction",
			slog.Any("userID", userID),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to execute session create transaction")
	}

	accessToken, err := srv.tokenService.GenerateAccessToken(userID, session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign access token")
	}

	srv.metrics.SessionCreated(ctx)
	srv.publishEvent(ctx, &service.AuthEvent{
		Kind:       service.EventSessionCreated,
		UserID:     userID.String(),
		SessionID:  session.ID.String(),
		OccurredAt: srv.now(),
	})

	srv.log(ctx).Debug("Session created",
		slog.Any("userID", userID),
		slog.Any("sessionID", session.ID),
	)

	return &usecase.SessionTokens{
		SessionID:        session.ID,
		AccessToken:      accessToken,
		RefreshToken:     rawRefresh,
		SessionExpiresAt: session.ExpiresAt,
	}, nil
}

// evictForCap drops expired sessions it encounters and then evicts the
// oldest live ones until the configured cap has room for one more.
func (srv *sessionService) evictForCap(ctx context.Context, repos repository.RepositoryFactory, userID uuid.UUID) error {
	if srv.maxActiveSessions <= 0 {
		return nil
	}

	sessionRepo := repos.NewSessionRepository()
	refreshRepo := repos.NewRefreshTokenRepository()

	sessions, err := sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to list sessions for eviction")
	}

	now := srv.now()
	live := make([]*entity.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Expired(now) {
			if err := srv.dropSession(ctx, sessionRepo, refreshRepo, s.ID); err != nil {
				return err
			}

			continue
		}
		live = append(live, s)
	}

	for len(live) >= srv.maxActiveSessions {
		oldest := live[0]
		if err := srv.dropSession(ctx, sessionRepo, refreshRepo, oldest.ID); err != nil {
			return err
		}
		live = live[1:]

		srv.log(ctx).Info("Evicted oldest session at cap",
			slog.Any("userID", userID),
			slog.Any("sessionID", oldest.ID),
		)
	}

	return nil
}

func (srv *sessionService) dropSession(ctx context.Context, sessionRepo repository.SessionRepository, refreshRepo repository.RefreshTokenRepository, sessionID uuid.UUID) error {
	if err := refreshRepo.DeleteBySessionID(ctx, sessionID); err != nil {
		return errors.Wrap(err, "failed to delete session refresh tokens")
	}
	if err := sessionRepo.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return errors.Wrap(err, "failed to delete session")
	}

	return nil
}

// refreshOutcome is what one rotation transaction concluded. Rejections
// commit so their cleanup (expired-row deletion, reuse revocation) sticks.
type refreshOutcome struct {
	status    string
	userID    uuid.UUID
	sessionID uuid.UUID
	revoked   bool
	expiresAt time.Time
}

const (
	refreshOK      = "ok"
	refreshInvalid = "invalid"
	refreshReuse   = "reuse"
)

// Refresh rotates a refresh token. The rotation is a compare-and-set: of two
// concurrent presentations of the same token exactly one rotates, and the
// other is treated as reuse. Reuse of an already-rotated token is theft
// evidence and, by default, revokes the whole session.
func (srv *sessionService) Refresh(ctx context.Context, refreshToken string) (*usecase.SessionTokens, error) {
	if refreshToken == "" {
		return nil, domainerrors.ErrRefreshTokenInvalid.WrapMessage("refresh token is empty")
	}

	tokenHash := srv.tokenService.HashToken(refreshToken)

	var (
		outcome refreshOutcome
		rawNext string
	)
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		refreshRepo := repos.NewRefreshTokenRepository()
		sessionRepo := repos.NewSessionRepository()

		current, err := refreshRepo.FindByTokenHash(ctx, tokenHash)
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			outcome.status = refreshInvalid

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to look up refresh token")
		}

		outcome.userID = current.UserID
		outcome.sessionID = current.SessionID

		if current.Rotated {
			return srv.handleReuse(ctx, sessionRepo, refreshRepo, current, &outcome)
		}

		now := srv.now()
		if current.Expired(now) {
			if err := refreshRepo.DeleteBySessionID(ctx, current.SessionID); err != nil {
				return errors.Wrap(err, "failed to delete expired refresh tokens")
			}
			outcome.status = refreshInvalid

			return nil
		}

		session, err := sessionRepo.FindByID(ctx, current.SessionID)
		if errors.Is(err, repository.ErrSessionNotFound) {
			outcome.status = refreshInvalid

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to load session")
		}
		if session.Expired(now) {
			if err := srv.dropSession(ctx, sessionRepo, refreshRepo, session.ID); err != nil {
				return err
			}
			outcome.status = refreshInvalid

			return nil
		}

		if err := refreshRepo.MarkRotated(ctx, current.ID); err != nil {
			if errors.Is(err, repository.ErrRefreshTokenRotated) || errors.Is(err, repository.ErrRefreshTokenNotFound) {
				// Lost the rotation race; by the time we looked the token
				// was already spent.
				return srv.handleReuse(ctx, sessionRepo, refreshRepo, current, &outcome)
			}

			return errors.Wrap(err, "failed to rotate refresh token")
		}

		raw, hash, err := srv.tokenService.NewRefreshToken()
		if err != nil {
			return errors.Wrap(err, "failed to mint replacement refresh token")
		}
		rawNext = raw

		next := &entity.RefreshToken{
			SessionID: current.SessionID,
			UserID:    current.UserID,
			TokenHash: hash,
			ExpiresAt: now.Add(srv.tokenService.GetRefreshTokenDuration()),
		}
		if err := refreshRepo.Create(ctx, next); err != nil {
			return errors.Wrap(err, "failed to store replacement refresh token")
		}

		outcome.status = refreshOK
		outcome.expiresAt = session.ExpiresAt

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute refresh transaction", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute refresh transaction")
	}

	switch outcome.status {
	case refreshInvalid:
		return nil, domainerrors.ErrRefreshTokenInvalid.WrapMessage("refresh token unknown, expired, or orphaned")
	case refreshReuse:
		srv.metrics.RefreshReuseDetected(ctx)
		srv.publishEvent(ctx, &service.AuthEvent{
			Kind:       service.EventRefreshReuse,
			UserID:     outcome.userID.String(),
			SessionID:  outcome.sessionID.String(),
			Detail:     reuseDetail(outcome.revoked),
			OccurredAt: srv.now(),
		})
		srv.log(ctx).Warn("Refresh token reuse detected",
			slog.Any("userID", outcome.userID),
			slog.Any("sessionID", outcome.sessionID),
			slog.Bool("sessionRevoked", outcome.revoked),
		)

		return nil, domainerrors.ErrRefreshTokenReuse.WrapMessage("refresh token was already rotated")
	}

	accessToken, err := srv.tokenService.GenerateAccessToken(outcome.userID, outcome.sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign access token")
	}

	srv.log(ctx).Debug("Refresh token rotated",
		slog.Any("userID", outcome.userID),
		slog.Any("sessionID", outcome.sessionID),
	)

	return &usecase.SessionTokens{
		SessionID:        outcome.sessionID,
		AccessToken:      accessToken,
		RefreshToken:     rawNext,
		SessionExpiresAt: outcome.expiresAt,
	}, nil
}

// handleReuse records a reuse outcome and, when configured, revokes the
// compromised session inside the same transaction.
func (srv *sessionService) handleReuse(ctx context.Context, sessionRepo repository.SessionRepository, refreshRepo repository.RefreshTokenRepository, current *entity.RefreshToken, outcome *refreshOutcome) error {
	outcome.status = refreshReuse

	if !srv.revokeOnReuse {
		return nil
	}

	if err := srv.dropSession(ctx, sessionRepo, refreshRepo, current.SessionID); err != nil {
		return err
	}
	outcome.revoked = true

	return nil
}

func reuseDetail(revoked bool) string {
	if revoked {
		return "session revoked"
	}

	return "session kept"
}

// InvalidateSession ends one session and its refresh token chain.
func (srv *sessionService) InvalidateSession(ctx context.Context, sessionID uuid.UUID) error {
	var found bool
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		sessionRepo := repos.NewSessionRepository()

		if _, err := sessionRepo.FindByID(ctx, sessionID); err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return nil
			}

			return errors.Wrap(err, "failed to load session")
		}
		found = true

		return srv.dropSession(ctx, sessionRepo, repos.NewRefreshTokenRepository(), sessionID)
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute session invalidate transaction",
			slog.Any("sessionID", sessionID),
			slog.Any("error", err),
		)

		return errors.Wrap(err, "failed to execute session invalidate transaction")
	}

	if !found {
		return domainerrors.ErrSessionNotFound.WrapMessage("session does not exist")
	}

	srv.publishEvent(ctx, &service.AuthEvent{
		Kind:       service.EventSessionRevoked,
		SessionID:  sessionID.String(),
		OccurredAt: srv.now(),
	})

	return nil
}

// InvalidateUserSessions ends every session a user has, across devices.
func (srv *sessionService) InvalidateUserSessions(ctx context.Context, userID uuid.UUID) error {
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		if err := repos.NewRefreshTokenRepository().DeleteByUserID(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete user refresh tokens")
		}
		if err := repos.NewSessionRepository().DeleteByUserID(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete user sessions")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute user sessions invalidate transaction",
			slog.Any("userID", userID),
			slog.Any("error", err),
		)

		return errors.Wrap(err, "failed to execute user sessions invalidate transaction")
	}

	srv.publishEvent(ctx, &service.AuthEvent{
		Kind:       service.EventSessionRevoked,
		UserID:     userID.String(),
		Detail:     "all sessions",
		OccurredAt: srv.now(),
	})

	return nil
}

// ListSessions returns a user's sessions, oldest first, dropping expired
// rows it happens to observe.
func (srv *sessionService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	var live []*entity.Session
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		sessionRepo := repos.NewSessionRepository()

		sessions, err := sessionRepo.FindByUserID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to list sessions")
		}

		now := srv.now()
		live = make([]*entity.Session, 0, len(sessions))
		for _, s := range sessions {
			if s.Expired(now) {
				if err := srv.dropSession(ctx, sessionRepo, repos.NewRefreshTokenRepository(), s.ID); err != nil {
					return err
				}

				continue
			}
			live = append(live, s)
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute session list transaction")
	}

	return live, nil
}

// ValidateAccess checks an access token's signature and confirms the session
// it names still exists, giving revocation immediate effect server-side.
func (srv *sessionService) ValidateAccess(ctx context.Context, accessToken string) (*service.Claims, error) {
	claims, err := srv.tokenService.ValidateToken(accessToken)
	if err != nil {
		return nil, domainerrors.ErrAuthorization.WrapMessage("access token rejected")
	}

	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		session, err := repos.NewSessionRepository().FindByID(ctx, claims.SessionID)
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domainerrors.ErrSessionNotFound.WrapMessage("session no longer exists")
		}
		if err != nil {
			return errors.Wrap(err, "failed to load session")
		}
		if session.Expired(srv.now()) {
			return domainerrors.ErrSessionNotFound.WrapMessage("session expired")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return claims, nil
}

// publishEvent emits an audit event, logging and swallowing failures.
func (srv *sessionService) publishEvent(ctx context.Context, event *service.AuthEvent) {
	if event.RequestID == "" {
		event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)
	}
	if err := srv.publisher.PublishAuthEvent(ctx, event); err != nil {
		srv.log(ctx).Warn("Failed to publish audit event",
			slog.String("kind", event.Kind),
			slog.Any("error", err),
		)
	}
}
