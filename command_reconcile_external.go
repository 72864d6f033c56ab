package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ReconcileExternalIdentityMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Email asserted by the external identity provider."`
	Provider   string `json:"provider" example:"google" doc:"Identity provider name."`
	OnResponse func(resp *ReconcileExternalIdentityResponse)
}

func (r ReconcileExternalIdentityMessage) Type() string { return "account.reconcile_external" }

type ReconcileExternalIdentityResponse struct {
	Account *Account
	Created bool
	Success bool
}

// ReconcileExternalIdentityHandler provisions or links a local account for
// an identity asserted by an external provider. The provider has already
// verified the email, so provisioned accounts skip the pending state.
type ReconcileExternalIdentityHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewReconcileExternalIdentityHandler creates a handler with sane defaults.
func NewReconcileExternalIdentityHandler(repo RepositoryManager) *ReconcileExternalIdentityHandler {
	return &ReconcileExternalIdentityHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit reconciliation events.
func (h *ReconcileExternalIdentityHandler) WithActivitySink(sink ActivitySink) *ReconcileExternalIdentityHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ReconcileExternalIdentityHandler) WithLogger(logger Logger) *ReconcileExternalIdentityHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ReconcileExternalIdentityHandler) Execute(ctx context.Context, event ReconcileExternalIdentityMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during external identity reconciliation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ReconcileExternalIdentityHandler) execute(ctx context.Context, event ReconcileExternalIdentityMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidateEmailAddress(event.Email); err != nil {
		return err
	}

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err == nil {
		if event.OnResponse != nil {
			event.OnResponse(&ReconcileExternalIdentityResponse{
				Account: account,
				Created: false,
				Success: true,
			})
		}
		return nil
	}

	if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for reconciliation")
	}

	// No local password exists for provider-backed accounts; a random
	// hash keeps the password column unmatched until the user runs a
	// reset through the normal flow.
	account = &Account{
		Email:        event.Email,
		PasswordHash: RandomPasswordHash(),
		IsActive:     true,
	}

	profile := &Profile{
		Role:          RoleUser,
		EmailVerified: true,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create reconciled account")
		}

		profile.AccountID = account.ID
		if profile, err = h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create reconciled profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "external identity reconciliation failed")
	}

	account.Profile = profile

	h.recordActivity(ctx, account, event.Provider)

	if event.OnResponse != nil {
		event.OnResponse(&ReconcileExternalIdentityResponse{
			Account: account,
			Created: true,
			Success: true,
		})
	}

	return nil
}

func (h *ReconcileExternalIdentityHandler) recordActivity(ctx context.Context, account *Account, provider string) {
	event := ActivityEvent{
		EventType: ActivityEventExternalReconciled,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "user",
		},
		AccountID: account.ID.String(),
		ToStatus:  StatusActive,
		Metadata: map[string]any{
			"provider": provider,
		},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during reconciliation: %v", err)
	}
}
