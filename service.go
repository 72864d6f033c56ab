package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// PendingAccount is a freshly registered account awaiting email
// verification. Login is rejected until the emailed link is followed.
type PendingAccount struct {
	Account *Account
	Profile *Profile
}

// Service is the high level facade over the account lifecycle: signup,
// verification, login, password reset, role management.
type Service struct {
	repo         RepositoryManager
	mailer       Mailer
	cfg          Config
	lifecycle    Lifecycle
	verification *TokenGenerator
	reset        *TokenGenerator
	tokenService TokenService
	activity     ActivitySink
	logger       Logger
	now          func() time.Time

	register      *RegisterAccountHandler
	verify        *VerifyEmailHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	reconcile     *ReconcileExternalIdentityHandler
}

// NewService wires the command handlers, token generators, and lifecycle
// behind a single entry point.
func NewService(repo RepositoryManager, mailer Mailer, cfg Config) *Service {
	s := &Service{
		repo:     repo,
		mailer:   mailer,
		cfg:      cfg,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}

	s.rebuild()

	return s
}

// WithLogger overrides the logger used by the service and its handlers.
func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
		s.rebuild()
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting account events.
func (s *Service) WithActivitySink(sink ActivitySink) *Service {
	s.activity = normalizeActivitySink(sink)
	s.rebuild()
	return s
}

// WithClock injects a custom clock, useful for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.now = clock
		s.rebuild()
	}
	return s
}

// rebuild recreates the generators and handlers from current settings.
func (s *Service) rebuild() {
	secret := []byte(s.cfg.GetSigningKey())

	s.verification = NewVerificationTokenGenerator(secret, WithTokenClock(s.now))
	s.reset = NewResetTokenGenerator(secret, WithTokenClock(s.now))

	s.tokenService = NewTokenService(
		secret,
		s.cfg.GetTokenExpiration(),
		s.cfg.GetIssuer(),
		s.cfg.GetAudience(),
		s.logger,
	)

	s.lifecycle = NewAccountLifecycle(s.repo,
		WithLifecycleClock(s.now),
		WithLifecycleActivitySink(s.activity),
		WithLifecycleLogger(s.logger),
	)

	s.register = NewRegisterAccountHandler(s.repo, s.verification, s.mailer, s.cfg).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithClock(s.now)

	s.verify = NewVerifyEmailHandler(s.repo, s.lifecycle, s.verification).
		WithLogger(s.logger)

	s.resetInit = NewInitializePasswordResetHandler(s.repo, s.reset, s.mailer, s.cfg).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithClock(s.now)

	s.resetFinalize = NewFinalizePasswordResetHandler(s.repo, s.reset).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithClock(s.now)

	s.reconcile = NewReconcileExternalIdentityHandler(s.repo).
		WithActivitySink(s.activity).
		WithLogger(s.logger)
}

// TokenService returns the session token service used by this Service.
func (s *Service) TokenService() TokenService {
	return s.tokenService
}

// Lifecycle returns the account lifecycle used by this Service.
func (s *Service) Lifecycle() Lifecycle {
	return s.lifecycle
}

// Register creates a pending account and emails a verification link. On a
// mail delivery failure the account is still persisted, so the pending
// record is returned alongside the error.
func (s *Service) Register(ctx context.Context, email, password string) (*PendingAccount, error) {
	var pending *PendingAccount

	err := s.register.Execute(ctx, RegisterAccountMessage{
		Email:    email,
		Password: password,
		OnResponse: func(resp *RegisterAccountResponse) {
			pending = &PendingAccount{
				Account: resp.Account,
				Profile: resp.Profile,
			}
		},
	})

	if err != nil {
		return pending, err
	}

	return pending, nil
}

// VerifyEmail consumes an emailed verification link. Following the same
// link twice reports OutcomeAlreadyVerified without repeating side effects.
func (s *Service) VerifyEmail(ctx context.Context, uid, token string) (VerifyOutcome, error) {
	var outcome VerifyOutcome

	err := s.retryOnConflict(func() error {
		return s.verify.Execute(ctx, VerifyEmailMessage{
			UID:   uid,
			Token: token,
			OnResponse: func(resp *VerifyEmailResponse) {
				outcome = resp.Outcome
			},
		})
	})

	if err != nil {
		return "", err
	}

	return outcome, nil
}

// Authenticate checks the credentials and lifecycle gates for a login
// attempt, returning the account on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitLoginFailure(ctx, "", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for login")
	}

	if account.Profile != nil && !account.Profile.EmailVerified {
		s.emitLoginFailure(ctx, account.ID.String(), "email not verified")
		return nil, ErrEmailNotVerified
	}

	if !account.IsActive {
		s.emitLoginFailure(ctx, account.ID.String(), "account not active")
		return nil, ErrAccountNotActive
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		s.emitLoginFailure(ctx, account.ID.String(), "password mismatch")
		return nil, ErrInvalidCredentials
	}

	s.emitActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: account.ID.String(), Type: "user"},
		AccountID: account.ID.String(),
	})

	return account, nil
}

// Login authenticates and mints a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}

	token, err := s.tokenService.Generate(NewIdentity(account))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate session token")
	}

	return token, nil
}

// RequestPasswordReset starts the reset flow. The response never reveals
// whether the email matched an account; failures after the presence check
// are logged and swallowed for the same reason.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	err := s.resetInit.Execute(ctx, InitializePasswordResetMessage{
		Email: email,
	})

	if err != nil {
		s.logger.Error("password reset initialization failed: %v", err)
	}

	return nil
}

// ConfirmPasswordReset consumes an emailed reset link and applies the new
// password. The token is single use.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	return s.retryOnConflict(func() error {
		return s.resetFinalize.Execute(ctx, FinalizePasswordResetMessage{
			UID:      uid,
			Token:    token,
			Password: newPassword,
		})
	})
}

// ReconcileExternalIdentity finds or provisions an account for an email
// asserted by an external identity provider.
func (s *Service) ReconcileExternalIdentity(ctx context.Context, email, provider string) (*Account, error) {
	var account *Account

	err := s.reconcile.Execute(ctx, ReconcileExternalIdentityMessage{
		Email:    email,
		Provider: provider,
		OnResponse: func(resp *ReconcileExternalIdentityResponse) {
			account = resp.Account
		},
	})

	if err != nil {
		return nil, err
	}

	return account, nil
}

// PromoteToAdmin grants the admin role to the account behind the email.
func (s *Service) PromoteToAdmin(ctx context.Context, email string) error {
	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return NewAccountNotFoundError(NormalizeEmail(email))
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for promotion")
	}

	if account.Profile != nil && account.Profile.IsAdmin() {
		return nil
	}

	if err := s.repo.Profiles().UpdateRole(ctx, account.ID, RoleAdmin); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account role")
	}

	s.emitActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountPromoted,
		Actor:     ActorRef{Type: "system"},
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"role": RoleAdmin,
		},
	})

	return nil
}

// SessionFromToken validates a raw session token and returns its claims.
func (s *Service) SessionFromToken(raw string) (*JWTClaims, error) {
	return s.tokenService.Validate(raw)
}

// retryOnConflict runs fn and retries it exactly once when the storage
// layer reports a concurrent-update conflict.
func (s *Service) retryOnConflict(fn func() error) error {
	err := fn()
	if err != nil && IsStorageConflict(err) {
		s.logger.Warn("storage conflict detected, retrying once: %v", err)
		return fn()
	}
	return err
}

func (s *Service) emitLoginFailure(ctx context.Context, accountID, reason string) {
	s.emitActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		AccountID: accountID,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}

func (s *Service) emitActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
