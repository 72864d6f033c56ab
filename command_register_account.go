package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email address."`
	Password   string `json:"password" example:"some_secret_word" doc:"Plaintext password."`
	UseHashid  bool
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account *Account
	Profile *Profile
	Success bool
}

type RegisterAccountHandler struct {
	repo     RepositoryManager
	tokens   *TokenGenerator
	mailer   Mailer
	cfg      Config
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager, tokens *TokenGenerator, mailer Mailer, cfg Config) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock, useful for tests.
func (h *RegisterAccountHandler) WithClock(clock func() time.Time) *RegisterAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidateEmailAddress(event.Email); err != nil {
		return err
	}

	if err := ValidatePasswordStrength(event.Password); err != nil {
		return err
	}

	exists, err := h.repo.Accounts().ExistsByEmail(ctx, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
	}

	if exists {
		return NewEmailAlreadyExistsError(NormalizeEmail(event.Email))
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Email:        event.Email,
		PasswordHash: hash,
		IsActive:     false,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(NormalizeEmail(event.Email)); err == nil {
			account.ID = id
		}
	}

	profile := &Profile{
		Role:          RoleUser,
		EmailVerified: false,
	}

	var token string
	issuedAt := h.now()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		profile.AccountID = account.ID
		if profile, err = h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account profile")
		}

		token = h.tokens.MakeToken(account)
		if err := h.repo.Profiles().StoreVerificationTokenTx(ctx, tx, account.ID, token, issuedAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store verification token")
		}

		profile.VerificationToken = &token
		profile.VerificationIssuedAt = &issuedAt

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	account.Profile = profile

	h.recordActivity(ctx, account)

	resp := &RegisterAccountResponse{
		Account: account,
		Profile: profile,
		Success: true,
	}

	link := VerificationLink(h.cfg.GetBaseURL(), EncodeUID(account.ID), token)
	if err := h.mailer.Send(ctx, account.Email, verificationEmailSubject, verificationEmailBody(link)); err != nil {
		h.logger.Error("verification email delivery failed for %s: %v", account.Email, err)
		// The account is persisted at this point, so the caller still
		// gets the pending record alongside the delivery error.
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return NewMailDeliveryError(map[string]any{
			"email": account.Email,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "user",
		},
		AccountID:  account.ID.String(),
		ToStatus:   StatusPendingVerification,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}
