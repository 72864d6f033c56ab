package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email address."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

type InitializePasswordResetResponse struct {
	// Success is true whether or not the email matched an account; the
	// response is indistinguishable either way.
	Success bool
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *TokenGenerator
	mailer   Mailer
	cfg      Config
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *TokenGenerator, mailer Mailer, cfg Config) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock, useful for tests.
func (h *InitializePasswordResetHandler) WithClock(clock func() time.Time) *InitializePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Success: true}

	respond := func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		// An unknown email is part of the expected flow, not an
		// application error; the caller sees the same success either way.
		if repository.IsRecordNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			respond()
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	token := h.tokens.MakeToken(account)
	issuedAt := h.now()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Profiles().StoreResetTokenTx(ctx, tx, account.ID, token, issuedAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store password reset token")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	h.recordActivity(ctx, account)

	// Delivery failures are logged but never surfaced: a distinguishable
	// error here would reveal whether the address has an account.
	link := PasswordResetLink(h.cfg.GetBaseURL(), EncodeUID(account.ID), token)
	if err := h.mailer.Send(ctx, account.Email, passwordResetEmailSubject, passwordResetEmailBody(link)); err != nil {
		h.logger.Error("password reset email delivery failed for %s: %v", account.Email, err)
	}

	respond()
	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "user",
		},
		AccountID:  account.ID.String(),
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
