package accounts

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const textCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"

// NewInvalidTransitionError is returned when a requested status change is
// not allowed.
func NewInvalidTransitionError(metadata map[string]any) *goerrors.Error {
	return goerrors.New("invalid account state transition", goerrors.CategoryValidation).
		WithTextCode(textCodeInvalidTransition).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(metadata)
}

// AccountStatus is the verification axis of the lifecycle.
type AccountStatus string

const (
	// StatusPendingVerification is the state between registration and
	// email verification; login is rejected while here
	StatusPendingVerification AccountStatus = "pending_verification"
	// StatusActive is terminal on this axis
	StatusActive AccountStatus = "active"
)

// ResetState is the independent password-reset sub-state.
type ResetState string

const (
	ResetStateNone    ResetState = "none"
	ResetStatePending ResetState = "pending"
)

// VerifyOutcome distinguishes a fresh verification from the idempotent
// no-op on an already-verified profile; the latter is informational, not
// an error.
type VerifyOutcome string

const (
	OutcomeVerified        VerifyOutcome = "verified"
	OutcomeAlreadyVerified VerifyOutcome = "already_verified"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Account *Account
	Profile *Profile
	From    AccountStatus
	To      AccountStatus
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// LifecycleOption customizes lifecycle construction.
type LifecycleOption func(*accountLifecycle)

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock func() time.Time) LifecycleOption {
	return func(lc *accountLifecycle) {
		if clock != nil {
			lc.now = clock
		}
	}
}

// WithLifecycleActivitySink sets the ActivitySink used to publish lifecycle events.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(lc *accountLifecycle) {
		lc.activitySink = normalizeActivitySink(sink)
	}
}

// WithLifecycleHookErrorHandler overrides how hook failures are propagated.
// Provide a handler to convert hook errors into domain-specific responses,
// otherwise the default handler panics with guidance for developers.
func WithLifecycleHookErrorHandler(handler HookErrorHandler) LifecycleOption {
	return func(lc *accountLifecycle) {
		if handler != nil {
			lc.hookErrorHandler = handler
		}
	}
}

// WithLifecycleLogger overrides the logger used for sink failures.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(lc *accountLifecycle) {
		if logger != nil {
			lc.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// Lifecycle defines the legal account state transitions.
type Lifecycle interface {
	// Activate performs the verify-email transition. It is idempotent:
	// an already-verified profile yields OutcomeAlreadyVerified without
	// repeating any side effects.
	Activate(ctx context.Context, actor ActorRef, account *Account, profile *Profile, opts ...TransitionOption) (VerifyOutcome, error)
	CurrentStatus(account *Account, profile *Profile) AccountStatus
	ResetState(profile *Profile) ResetState
}

// NewAccountLifecycle returns the default implementation backed by the
// provided repositories.
func NewAccountLifecycle(repo RepositoryManager, opts ...LifecycleOption) Lifecycle {
	lc := &accountLifecycle{
		repo: repo,
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			StatusPendingVerification: {
				StatusActive: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(lc)
		}
	}

	return lc
}

type accountLifecycle struct {
	repo             RepositoryManager
	transitions      map[AccountStatus]map[AccountStatus]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (lc *accountLifecycle) Activate(ctx context.Context, actor ActorRef, account *Account, profile *Profile, opts ...TransitionOption) (VerifyOutcome, error) {
	if account == nil || profile == nil {
		return "", NewInvalidTransitionError(map[string]any{
			"reason": "account or profile is nil",
		})
	}

	if profile.EmailVerified {
		return OutcomeAlreadyVerified, nil
	}

	from := lc.CurrentStatus(account, profile)
	if !lc.canTransition(from, StatusActive) {
		return "", NewInvalidTransitionError(map[string]any{
			"from": from,
			"to":   StatusActive,
		})
	}

	options := lc.buildTransitionOptions(opts...)

	ctxData := TransitionContext{
		Actor:   actor,
		Account: account,
		Profile: profile,
		From:    from,
		To:      StatusActive,
		Meta:    options.cloneMetadata(),
	}

	if err := lc.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return "", err
	}

	verified := false
	err := lc.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		marked, err := lc.repo.Profiles().MarkVerifiedTx(ctx, tx, account.ID)
		if err != nil {
			return err
		}

		// A concurrent request already consumed the transition; the
		// guarded update makes the second click an observable no-op.
		if !marked {
			return nil
		}

		if err := lc.repo.Accounts().ActivateTx(ctx, tx, account.ID); err != nil {
			return err
		}

		verified = true
		return nil
	})

	if err != nil {
		return "", err
	}

	if !verified {
		lc.applyVerified(account, profile)
		return OutcomeAlreadyVerified, nil
	}

	lc.applyVerified(account, profile)

	if err := lc.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return "", err
	}

	lc.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountVerified,
		Actor:      actor,
		AccountID:  account.ID.String(),
		FromStatus: from,
		ToStatus:   StatusActive,
		Metadata:   lc.transitionMetadata(ctxData.Meta),
	})

	return OutcomeVerified, nil
}

// CurrentStatus derives the verification-axis status from persisted flags.
func (lc *accountLifecycle) CurrentStatus(account *Account, profile *Profile) AccountStatus {
	if account == nil {
		return ""
	}

	if account.IsActive && profile != nil && profile.EmailVerified {
		return StatusActive
	}

	return StatusPendingVerification
}

// ResetState derives the password-reset sub-state from the outstanding token.
func (lc *accountLifecycle) ResetState(profile *Profile) ResetState {
	if profile.HasOutstandingReset() {
		return ResetStatePending
	}
	return ResetStateNone
}

func (lc *accountLifecycle) applyVerified(account *Account, profile *Profile) {
	account.IsActive = true
	profile.EmailVerified = true
	profile.VerificationToken = nil
	profile.VerificationIssuedAt = nil
}

func (lc *accountLifecycle) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if lc.hookErrorHandler == nil {
				return err
			}
			return lc.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (lc *accountLifecycle) canTransition(from, to AccountStatus) bool {
	if allowed, ok := lc.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (lc *accountLifecycle) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"go-accounts: %s transition hook failed: %v\nAccountID: %s from=%s to=%s reason=%s\nProvide accounts.WithLifecycleHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Account.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (lc *accountLifecycle) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = lc.now()
	}

	sink := normalizeActivitySink(lc.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		lc.logger.Warn("lifecycle activity sink error: %v", err)
	}
}

func (lc *accountLifecycle) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
