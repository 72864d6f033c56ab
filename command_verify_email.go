package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type VerifyEmailMessage struct {
	UID        string `json:"uid" example:"OTc4N2NiYTYt" doc:"Opaque account identifier from the emailed link."`
	Token      string `json:"token" example:"swl2ab-4f3c21aa09b1d3e7" doc:"Timed verification token."`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

type VerifyEmailResponse struct {
	Outcome VerifyOutcome
	Account *Account
	Success bool
}

type VerifyEmailHandler struct {
	repo      RepositoryManager
	lifecycle Lifecycle
	tokens    *TokenGenerator
	logger    Logger
}

// NewVerifyEmailHandler creates a handler with sane defaults.
func NewVerifyEmailHandler(repo RepositoryManager, lifecycle Lifecycle, tokens *TokenGenerator) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:      repo,
		lifecycle: lifecycle,
		tokens:    tokens,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// Every failure mode below collapses into the same generic error so
	// the link leaks nothing about which accounts exist.
	id, err := DecodeUID(event.UID)
	if err != nil {
		h.logger.Debug("email verification with malformed uid: %v", err)
		return ErrInvalidOrExpiredToken
	}

	account, err := h.repo.Accounts().GetWithProfile(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification")
	}

	if account.Profile == nil {
		return goerrors.New("account is missing its profile record", goerrors.CategoryInternal)
	}

	if account.Profile.EmailVerified {
		if event.OnResponse != nil {
			event.OnResponse(&VerifyEmailResponse{
				Outcome: OutcomeAlreadyVerified,
				Account: account,
				Success: true,
			})
		}
		return nil
	}

	if !h.tokens.CheckToken(account, event.Token) {
		return ErrInvalidOrExpiredToken
	}

	outcome, err := h.lifecycle.Activate(ctx, ActorRef{ID: account.ID.String(), Type: "user"}, account, account.Profile,
		WithTransitionReason("email verification link"),
	)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{
			Outcome: outcome,
			Account: account,
			Success: true,
		})
	}

	return nil
}
