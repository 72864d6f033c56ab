package accounts_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	accounts "github.com/selfserve/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newPendingAccountFixture() (*accounts.Account, *accounts.Profile) {
	id := uuid.New()
	issuedAt := time.Now()

	account := &accounts.Account{
		ID:       id,
		Email:    "pepe.rone@example.com",
		IsActive: false,
	}

	profile := &accounts.Profile{
		ID:                   uuid.New(),
		AccountID:            id,
		Role:                 accounts.RoleUser,
		EmailVerified:        false,
		VerificationToken:    strPtr("some-token"),
		VerificationIssuedAt: timePtr(issuedAt),
	}

	account.Profile = profile

	return account, profile
}

func TestActivateTransitionsPendingAccount(t *testing.T) {
	repo := NewMockRepositoryManager()
	sink := &captureSink{}

	account, profile := newPendingAccountFixture()

	repo.profiles.On("MarkVerifiedTx", mock.Anything, mock.Anything, account.ID).Return(true, nil).Once()
	repo.accounts.On("ActivateTx", mock.Anything, mock.Anything, account.ID).Return(nil).Once()

	lc := accounts.NewAccountLifecycle(repo, accounts.WithLifecycleActivitySink(sink))

	outcome, err := lc.Activate(context.Background(), accounts.ActorRef{Type: "user"}, account, profile)
	assert.NoError(t, err)
	assert.Equal(t, accounts.OutcomeVerified, outcome)

	assert.True(t, account.IsActive)
	assert.True(t, profile.EmailVerified)
	assert.Nil(t, profile.VerificationToken)
	assert.Nil(t, profile.VerificationIssuedAt)

	types := sink.Types()
	assert.Contains(t, types, accounts.ActivityEventAccountVerified)

	repo.profiles.AssertExpectations(t)
	repo.accounts.AssertExpectations(t)
}

func TestActivateAlreadyVerifiedIsNoOp(t *testing.T) {
	repo := NewMockRepositoryManager()
	sink := &captureSink{}

	account, profile := newPendingAccountFixture()
	profile.EmailVerified = true

	lc := accounts.NewAccountLifecycle(repo, accounts.WithLifecycleActivitySink(sink))

	outcome, err := lc.Activate(context.Background(), accounts.ActorRef{Type: "user"}, account, profile)
	assert.NoError(t, err)
	assert.Equal(t, accounts.OutcomeAlreadyVerified, outcome)

	// No persistence calls and no events on the repeat path.
	assert.Empty(t, sink.Events())
	repo.profiles.AssertNotCalled(t, "MarkVerifiedTx", mock.Anything, mock.Anything, mock.Anything)
	repo.accounts.AssertNotCalled(t, "ActivateTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateLosesRaceToConcurrentClick(t *testing.T) {
	repo := NewMockRepositoryManager()
	sink := &captureSink{}

	account, profile := newPendingAccountFixture()

	// Another request consumed the guarded update first.
	repo.profiles.On("MarkVerifiedTx", mock.Anything, mock.Anything, account.ID).Return(false, nil).Once()

	lc := accounts.NewAccountLifecycle(repo, accounts.WithLifecycleActivitySink(sink))

	outcome, err := lc.Activate(context.Background(), accounts.ActorRef{Type: "user"}, account, profile)
	assert.NoError(t, err)
	assert.Equal(t, accounts.OutcomeAlreadyVerified, outcome)

	assert.Empty(t, sink.Events())
	repo.accounts.AssertNotCalled(t, "ActivateTx", mock.Anything, mock.Anything, mock.Anything)
	repo.profiles.AssertExpectations(t)
}

func TestActivateNilRecords(t *testing.T) {
	repo := NewMockRepositoryManager()
	lc := accounts.NewAccountLifecycle(repo)

	_, err := lc.Activate(context.Background(), accounts.ActorRef{}, nil, nil)
	assert.Error(t, err)

	var richErr *goerrors.Error
	assert.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestActivateRunsHooks(t *testing.T) {
	repo := NewMockRepositoryManager()

	account, profile := newPendingAccountFixture()

	repo.profiles.On("MarkVerifiedTx", mock.Anything, mock.Anything, account.ID).Return(true, nil).Once()
	repo.accounts.On("ActivateTx", mock.Anything, mock.Anything, account.ID).Return(nil).Once()

	lc := accounts.NewAccountLifecycle(repo)

	var beforeCalled, afterCalled bool

	_, err := lc.Activate(context.Background(), accounts.ActorRef{Type: "user"}, account, profile,
		accounts.WithTransitionReason("testing hooks"),
		accounts.WithBeforeTransitionHook(func(_ context.Context, tc accounts.TransitionContext) error {
			beforeCalled = true
			assert.Equal(t, accounts.StatusPendingVerification, tc.From)
			assert.Equal(t, accounts.StatusActive, tc.To)
			assert.Equal(t, "testing hooks", tc.Meta.Reason)
			return nil
		}),
		accounts.WithAfterTransitionHook(func(_ context.Context, tc accounts.TransitionContext) error {
			afterCalled = true
			return nil
		}),
	)

	assert.NoError(t, err)
	assert.True(t, beforeCalled)
	assert.True(t, afterCalled)
}

func TestActivateHookErrorUsesHandler(t *testing.T) {
	repo := NewMockRepositoryManager()

	account, profile := newPendingAccountFixture()

	hookErr := goerrors.New("side effect failed", goerrors.CategoryOperation)

	lc := accounts.NewAccountLifecycle(repo,
		accounts.WithLifecycleHookErrorHandler(func(_ context.Context, phase accounts.TransitionHookPhase, err error, _ accounts.TransitionContext) error {
			assert.Equal(t, accounts.HookPhaseBefore, phase)
			return err
		}),
	)

	_, err := lc.Activate(context.Background(), accounts.ActorRef{Type: "user"}, account, profile,
		accounts.WithBeforeTransitionHook(func(context.Context, accounts.TransitionContext) error {
			return hookErr
		}),
	)

	assert.Error(t, err)
	repo.profiles.AssertNotCalled(t, "MarkVerifiedTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestCurrentStatus(t *testing.T) {
	lc := accounts.NewAccountLifecycle(NewMockRepositoryManager())

	account, profile := newPendingAccountFixture()
	assert.Equal(t, accounts.StatusPendingVerification, lc.CurrentStatus(account, profile))

	account.IsActive = true
	profile.EmailVerified = true
	assert.Equal(t, accounts.StatusActive, lc.CurrentStatus(account, profile))

	assert.Equal(t, accounts.AccountStatus(""), lc.CurrentStatus(nil, nil))
}

func TestResetState(t *testing.T) {
	lc := accounts.NewAccountLifecycle(NewMockRepositoryManager())

	profile := &accounts.Profile{}
	assert.Equal(t, accounts.ResetStateNone, lc.ResetState(profile))

	profile.ResetToken = strPtr("reset-token")
	assert.Equal(t, accounts.ResetStatePending, lc.ResetState(profile))
}
