package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	accounts "github.com/selfserve/go-accounts"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts implements accounts.Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*accounts.Account, error) {
	args := m.Called(ctx, tx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccounts) GetWithProfile(ctx context.Context, id uuid.UUID) (*accounts.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccounts) GetWithProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*accounts.Account, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccounts) Register(ctx context.Context, record *accounts.Account) (*accounts.Account, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, record *accounts.Account) (*accounts.Account, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccounts) Activate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccounts) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockAccounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockProfiles implements accounts.Profiles
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) Create(ctx context.Context, record *accounts.Profile) (*accounts.Profile, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Profile), args.Error(1)
}

func (m *MockProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.Profile) (*accounts.Profile, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Profile), args.Error(1)
}

func (m *MockProfiles) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*accounts.Profile, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Profile), args.Error(1)
}

func (m *MockProfiles) StoreVerificationTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string, issuedAt time.Time) error {
	args := m.Called(ctx, tx, accountID, token, issuedAt)
	return args.Error(0)
}

func (m *MockProfiles) StoreResetTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string, issuedAt time.Time) error {
	args := m.Called(ctx, tx, accountID, token, issuedAt)
	return args.Error(0)
}

func (m *MockProfiles) MarkVerifiedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfiles) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string) (bool, error) {
	args := m.Called(ctx, tx, accountID, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfiles) UpdateRole(ctx context.Context, accountID uuid.UUID, role accounts.Role) error {
	args := m.Called(ctx, accountID, role)
	return args.Error(0)
}

func (m *MockProfiles) UpdateRoleTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, role accounts.Role) error {
	args := m.Called(ctx, tx, accountID, role)
	return args.Error(0)
}

// MockRepositoryManager implements accounts.RepositoryManager. RunInTx
// invokes the callback with a zero transaction so handler logic runs
// against the repo mocks.
type MockRepositoryManager struct {
	accounts *MockAccounts
	profiles *MockProfiles
	// TxErr, when set, is returned from RunInTx without invoking fn
	TxErr error
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		accounts: &MockAccounts{},
		profiles: &MockProfiles{},
	}
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() accounts.Accounts {
	return m.accounts
}

func (m *MockRepositoryManager) Profiles() accounts.Profiles {
	return m.profiles
}

// MockMailer implements accounts.Mailer and records sent messages.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// captureSink collects activity events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *captureSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) Events() []accounts.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureSink) Types() []accounts.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []accounts.ActivityEventType
	for _, e := range c.events {
		types = append(types, e.EventType)
	}
	return types
}

// testConfig implements accounts.Config
type testConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
	baseURL         string
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey:      "test-signing-key",
		tokenExpiration: 24,
		issuer:          "go-accounts-test",
		audience:        []string{"test"},
		baseURL:         "https://example.com",
	}
}

func (c testConfig) GetSigningKey() string   { return c.signingKey }
func (c testConfig) GetTokenExpiration() int { return c.tokenExpiration }
func (c testConfig) GetIssuer() string       { return c.issuer }
func (c testConfig) GetAudience() []string   { return c.audience }
func (c testConfig) GetBaseURL() string      { return c.baseURL }

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
