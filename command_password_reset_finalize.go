package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	UID      string `json:"uid" example:"OTc4N2NiYTYt" doc:"Opaque account identifier from the emailed link."`
	Token    string `json:"token" example:"swl2ab-4f3c21aa09b1d3e7" doc:"Timed password reset token."`
	Password string `json:"password" example:"some_secret_word" doc:"New plaintext password."`
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *TokenGenerator
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *TokenGenerator) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock, useful for tests.
func (h *FinalizePasswordResetHandler) WithClock(clock func() time.Time) *FinalizePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// Weak passwords are reported before any token checks so the user can
	// retry with the same link.
	if err := ValidatePasswordStrength(event.Password); err != nil {
		return err
	}

	id, err := DecodeUID(event.UID)
	if err != nil {
		h.logger.Debug("password reset with malformed uid: %v", err)
		return ErrInvalidOrExpiredToken
	}

	account, err := h.repo.Accounts().GetWithProfile(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	if account.Profile == nil {
		return goerrors.New("account is missing its profile record", goerrors.CategoryInternal)
	}

	if !account.Profile.HasOutstandingReset() {
		return ErrInvalidOrExpiredToken
	}

	// Requesting a new link overwrites the stored token, so older links
	// stop working even while their signatures are still valid.
	if *account.Profile.ResetToken != event.Token {
		return ErrInvalidOrExpiredToken
	}

	if !h.tokens.CheckToken(account, event.Token) {
		return ErrInvalidOrExpiredToken
	}

	// The stored issuance timestamp bounds the link independently of the
	// timestamp embedded in the token, against the same clock and window.
	if h.now().Sub(*account.Profile.ResetIssuedAt) > h.tokens.MaxAge() {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// The guarded consume makes the token single use: a concurrent
		// finalize or a replay loses the race and matches zero rows.
		consumed, err := h.repo.Profiles().ConsumeResetTokenTx(ctx, tx, account.ID, event.Token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume password reset token")
		}

		if !consumed {
			return ErrInvalidOrExpiredToken
		}

		if err := h.repo.Accounts().ResetPasswordTx(ctx, tx, account.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	account.PasswordHash = passwordHash
	account.Profile.ResetToken = nil
	account.Profile.ResetIssuedAt = nil

	h.recordActivity(ctx, account)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetCompleted,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "user",
		},
		AccountID:  account.ID.String(),
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
