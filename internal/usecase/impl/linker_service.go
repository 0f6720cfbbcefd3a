package impl

import (
	"context"
	"log/slog"
	"time"

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

// linkerService implements the LinkerUsecase interface.
type linkerService struct {
	txManager          repository.TransactionManager
	trust              usecase.TrustUsecase
	publisher          service.EventPublisher
	metrics            service.MetricsRecorder
	createOrUpdateUser usecase.CreateOrUpdateUserFunc
	afterUser          usecase.AfterUserFunc
	logger             *slog.Logger
	now                func() time.Time
}

// linkResolution is what one linking transaction concluded.
type linkResolution struct {
	userID         uuid.UUID
	accountID      uuid.UUID
	isNewUser      bool
	existingUserID *uuid.UUID
}

// LinkerServiceParams holds dependencies for linkerService, injected by Fx.
type LinkerServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Trust     usecase.TrustUsecase
	Publisher service.EventPublisher
	Metrics   service.MetricsRecorder
	Logger    *slog.Logger

	// CreateOrUpdateUser, when provided, fully replaces the default user
	// resolution. AfterUser, when provided, runs after the identity commits.
	CreateOrUpdateUser usecase.CreateOrUpdateUserFunc `optional:"true"`
	AfterUser          usecase.AfterUserFunc          `optional:"true"`
}

// NewLinkerService is the constructor for linkerService. It receives all dependencies as interfaces.
func NewLinkerService(params LinkerServiceParams) usecase.LinkerUsecase {
	return &linkerService{
		txManager:          params.TxManager,
		trust:              params.Trust,
		publisher:          params.Publisher,
		metrics:            params.Metrics,
		createOrUpdateUser: params.CreateOrUpdateUser,
		afterUser:          params.AfterUser,
		logger:             params.Logger,
		now:                time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *linkerService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// LinkAccount maps one incoming provider identity onto a user. The lookup and
// any creation run in a single serializable transaction so concurrent
// sign-ins for the same trusted email cannot both create a user; losing a
// same-provider insert race is recovered by re-running the transaction, which
// then finds the winner's account.
func (srv *linkerService) LinkAccount(ctx context.Context, input *usecase.LinkAccountInput) (*usecase.LinkAccountOutput, error) {
	if input.Provider == "" || input.ProviderAccountID == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("provider and provider account ID are required")
	}

	srv.log(ctx).Info("Linking account",
		slog.String("provider", input.Provider),
		slog.String("method", input.Method.String()),
	)

	var resolved linkResolution

	runOnce := func() error {
		resolved = linkResolution{}

		return srv.txManager.ExecuteSerializable(ctx, func(repos repository.RepositoryFactory) error {
			return srv.resolveLink(ctx, repos, input, &resolved)
		})
	}

	err := runOnce()
	if errors.Is(err, repository.ErrAccountDuplicate) {
		// Another sign-in inserted the same (provider, providerAccountID)
		// between our lookup and our insert. Re-running finds their account.
		srv.log(ctx).Debug("Account insert raced, retrying lookup",
			slog.String("provider", input.Provider),
		)
		err = runOnce()
	}
	if err != nil {
		srv.log(ctx).Error("Failed to execute account linking transaction",
			slog.String("provider", input.Provider),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to execute account linking transaction")
	}

	out := &usecase.LinkAccountOutput{
		UserID:    resolved.userID,
		AccountID: resolved.accountID,
		IsNewUser: resolved.isNewUser,
	}

	// The identity is committed; the hook gets its own transaction and its
	// failure is reported without undoing anything above.
	if srv.afterUser != nil {
		hookErr := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
			return srv.afterUser(ctx, &usecase.AfterUserInput{
				UserID:         resolved.userID,
				ExistingUserID: resolved.existingUserID,
				IsNewUser:      resolved.isNewUser,
				Repos:          repos,
			})
		})
		if hookErr != nil {
			srv.log(ctx).Warn("Post-link hook failed after identity commit",
				slog.Any("userID", resolved.userID),
				slog.Any("error", hookErr),
			)
			out.HookErr = domainerrors.NewHookError(hookErr)
		}
	}

	srv.publishLinkEvents(ctx, input, &resolved)
	srv.metrics.LinkRecorded(ctx, input.Provider, resolved.isNewUser)

	srv.log(ctx).Debug("Account linked",
		slog.Any("userID", resolved.userID),
		slog.Any("accountID", resolved.accountID),
		slog.Bool("isNewUser", resolved.isNewUser),
	)

	return out, nil
}

// resolveLink is the transaction body: returning-account short circuit, trust
// classification, dedup against verified identities, then creation.
func (srv *linkerService) resolveLink(ctx context.Context, repos repository.RepositoryFactory, input *usecase.LinkAccountInput, out *linkResolution) error {
	accountRepo := repos.NewAccountRepository()
	userRepo := repos.NewUserRepository()

	existing, err := accountRepo.FindByProvider(ctx, input.Provider, input.ProviderAccountID)
	if err == nil {
		return srv.resolveReturningAccount(ctx, repos, input, existing, out)
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return errors.Wrap(err, "failed to look up account")
	}

	trusted, err := srv.trust.IsTrusted(input.Provider, input.Method)
	if err != nil {
		return err
	}

	match, err := srv.findSingleVerifiedMatch(ctx, userRepo, &input.Profile, trusted)
	if err != nil {
		return err
	}
	if match != nil {
		out.existingUserID = &match.ID
	}

	userID, isNew, err := srv.resolveUser(ctx, repos, input, trusted, match)
	if err != nil {
		return err
	}

	account := &entity.Account{
		UserID:            userID,
		Provider:          input.Provider,
		ProviderAccountID: input.ProviderAccountID,
		Secret:            input.Secret,
	}
	if err := accountRepo.Create(ctx, account); err != nil {
		return errors.Wrap(err, "failed to create account")
	}

	out.userID = userID
	out.accountID = account.ID
	out.isNewUser = isNew

	return nil
}

// resolveReturningAccount handles the short circuit for a known account:
// identity is fixed, profile fields may still be merged.
func (srv *linkerService) resolveReturningAccount(ctx context.Context, repos repository.RepositoryFactory, input *usecase.LinkAccountInput, account *entity.Account, out *linkResolution) error {
	userRepo := repos.NewUserRepository()

	user, err := userRepo.FindByID(ctx, account.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to load user for returning account")
	}

	if srv.mergeProfile(user, &input.Profile) {
		if err := userRepo.Update(ctx, user); err != nil {
			return errors.Wrap(err, "failed to merge profile for returning account")
		}
	}

	if input.Secret != "" && input.Secret != account.Secret {
		if err := repos.NewAccountRepository().UpdateSecret(ctx, account.ID, input.Secret); err != nil {
			return errors.Wrap(err, "failed to update account secret")
		}
	}

	out.userID = account.UserID
	out.accountID = account.ID
	out.isNewUser = false
	out.existingUserID = &account.UserID

	return nil
}

// findSingleVerifiedMatch runs the dedup query for trusted sign-ins. More
// than one match means the single-user-per-verified-identity invariant is
// already broken; that is surfaced, never guessed around.
func (srv *linkerService) findSingleVerifiedMatch(ctx context.Context, userRepo repository.UserRepository, profile *usecase.Profile, trusted bool) (*entity.User, error) {
	if !trusted {
		return nil, nil
	}

	var (
		matches []*entity.User
		err     error
	)
	switch {
	case profile.Email != "":
		matches, err = userRepo.FindByVerifiedEmail(ctx, profile.Email)
	case profile.Phone != "" && profile.PhoneVerified:
		matches, err = userRepo.FindByVerifiedPhone(ctx, profile.Phone)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query verified identities")
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, domainerrors.ErrAmbiguousLink.WrapMessage("more than one user holds this verified identity")
	}
}

// resolveUser picks or creates the owning user, either via the configured
// callback or the default trust-based policy.
func (srv *linkerService) resolveUser(ctx context.Context, repos repository.RepositoryFactory, input *usecase.LinkAccountInput, trusted bool, match *entity.User) (uuid.UUID, bool, error) {
	if srv.createOrUpdateUser != nil {
		var existingID *uuid.UUID
		if match != nil {
			existingID = &match.ID
		}

		userID, err := srv.createOrUpdateUser(ctx, &usecase.CreateOrUpdateUserInput{
			ExistingUserID: existingID,
			Profile:        input.Profile,
			Provider:       input.Provider,
			Method:         input.Method,
			Trusted:        trusted,
			Repos:          repos,
		})
		if err != nil {
			return uuid.Nil, false, err
		}

		isNew := match == nil || userID != match.ID

		return userID, isNew, nil
	}

	if trusted && match != nil {
		if srv.mergeProfile(match, &input.Profile) {
			if err := repos.NewUserRepository().Update(ctx, match); err != nil {
				return uuid.Nil, false, errors.Wrap(err, "failed to merge profile into matched user")
			}
		}

		return match.ID, false, nil
	}

	user := srv.buildNewUser(input, trusted)
	if err := repos.NewUserRepository().Create(ctx, user); err != nil {
		return uuid.Nil, false, errors.Wrap(err, "failed to create user")
	}

	return user.ID, true, nil
}

// buildNewUser seeds a user from the profile. Trusted claims arrive
// pre-verified, so their timestamps are set now; untrusted claims are stored
// unverified.
func (srv *linkerService) buildNewUser(input *usecase.LinkAccountInput, trusted bool) *entity.User {
	now := srv.now()
	user := &entity.User{
		Name:      input.Profile.Name,
		Email:     input.Profile.Email,
		Phone:     input.Profile.Phone,
		AvatarURL: input.Profile.AvatarURL,
	}

	if user.Email != "" && (trusted || input.Profile.EmailVerified) {
		user.EmailVerified = &now
	}
	if user.Phone != "" && (trusted && input.Profile.PhoneVerified) {
		user.PhoneVerified = &now
	}

	return user
}

// mergeProfile fills empty profile fields from the incoming claims without
// ever overwriting existing values. Reports whether anything changed.
func (srv *linkerService) mergeProfile(user *entity.User, profile *usecase.Profile) bool {
	changed := false

	if user.Name == "" && profile.Name != "" {
		user.Name = profile.Name
		changed = true
	}
	if user.AvatarURL == "" && profile.AvatarURL != "" {
		user.AvatarURL = profile.AvatarURL
		changed = true
	}

	return changed
}

// publishLinkEvents emits audit events after the identity has committed.
// Publishing failures are logged and swallowed; the sign-in already happened.
func (srv *linkerService) publishLinkEvents(ctx context.Context, input *usecase.LinkAccountInput, resolved *linkResolution) {
	requestID := input.RequestID
	if requestID == "" {
		requestID = deliverycontext.GetRequestIDFromContext(ctx)
	}

	events := make([]*service.AuthEvent, 0, 2)
	if resolved.isNewUser {
		events = append(events, &service.AuthEvent{
			RequestID:  requestID,
			Kind:       service.EventUserCreated,
			UserID:     resolved.userID.String(),
			Provider:   input.Provider,
			Method:     input.Method.String(),
			OccurredAt: srv.now(),
		})
	}
	events = append(events, &service.AuthEvent{
		RequestID:  requestID,
		Kind:       service.EventAccountLinked,
		UserID:     resolved.userID.String(),
		Provider:   input.Provider,
		Method:     input.Method.String(),
		OccurredAt: srv.now(),
	})

	for _, event := range events {
		if err := srv.publisher.PublishAuthEvent(ctx, event); err != nil {
			srv.log(ctx).Warn("Failed to publish audit event",
				slog.String("kind", event.Kind),
				slog.Any("error", err),
			)
		}
	}
}
