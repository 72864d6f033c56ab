package accounts_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	accounts "github.com/selfserve/go-accounts"
	"github.com/stretchr/testify/assert"
)

var tokenTestSecret = []byte("token-test-secret")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTokenTestAccount() *accounts.Account {
	return &accounts.Account{
		ID:           uuid.New(),
		Email:        "pepe.rone@example.com",
		PasswordHash: "$2a$14$fakehashfortokentests",
	}
}

func TestVerificationTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))

	account := newTokenTestAccount()
	token := gen.MakeToken(account)

	assert.NotEmpty(t, token)
	assert.NotContains(t, token, "/")
	assert.True(t, gen.CheckToken(account, token))
}

func TestTokenExpiryWindow(t *testing.T) {
	minted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		checkAt time.Time
		valid   bool
	}{
		{
			name:    "just minted",
			checkAt: minted,
			valid:   true,
		},
		{
			name:    "one minute before the deadline",
			checkAt: minted.Add(24*time.Hour - time.Minute),
			valid:   true,
		},
		{
			name:    "exactly at the deadline",
			checkAt: minted.Add(24 * time.Hour),
			valid:   true,
		},
		{
			name:    "one second past the deadline",
			checkAt: minted.Add(24*time.Hour + time.Second),
			valid:   false,
		},
		{
			name:    "check clock behind mint time",
			checkAt: minted.Add(-time.Minute),
			valid:   false,
		},
	}

	account := newTokenTestAccount()

	mintGen := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(minted)))
	token := mintGen.MakeToken(account)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGen := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(tt.checkAt)))
			assert.Equal(t, tt.valid, checkGen.CheckToken(account, token))
		})
	}
}

func TestVerificationTokenInvalidatedByEmailChange(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))

	account := newTokenTestAccount()
	token := gen.MakeToken(account)
	assert.True(t, gen.CheckToken(account, token))

	account.Email = "changed@example.com"
	assert.False(t, gen.CheckToken(account, token))
}

func TestResetTokenInvalidatedByPasswordChange(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := accounts.NewResetTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))

	account := newTokenTestAccount()
	token := gen.MakeToken(account)
	assert.True(t, gen.CheckToken(account, token))

	// Consuming a reset changes the stored hash, which must orphan any
	// token minted against the old one.
	account.PasswordHash = "$2a$14$differenthashentirely"
	assert.False(t, gen.CheckToken(account, token))
}

func TestTokenPurposeSeparation(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	verification := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))
	reset := accounts.NewResetTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))

	account := newTokenTestAccount()

	vt := verification.MakeToken(account)
	rt := reset.MakeToken(account)

	assert.False(t, reset.CheckToken(account, vt))
	assert.False(t, verification.CheckToken(account, rt))
}

func TestTokenRejectsDifferentAccount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))

	account := newTokenTestAccount()
	other := newTokenTestAccount()

	token := gen.MakeToken(account)
	assert.False(t, gen.CheckToken(other, token))
}

func TestCheckTokenMalformedInput(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := accounts.NewVerificationTokenGenerator(tokenTestSecret, accounts.WithTokenClock(fixedClock(now)))
	account := newTokenTestAccount()

	valid := gen.MakeToken(account)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", strings.ReplaceAll(valid, "-", "")},
		{"bad timestamp encoding", "!!!!-" + strings.SplitN(valid, "-", 2)[1]},
		{"tampered signature", valid[:len(valid)-1] + "x"},
		{"signature only", "-" + strings.SplitN(valid, "-", 2)[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, gen.CheckToken(account, tt.token))
		})
	}

	assert.False(t, gen.CheckToken(nil, valid))
}

func TestWithTokenMaxAge(t *testing.T) {
	minted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	gen := accounts.NewVerificationTokenGenerator(tokenTestSecret,
		accounts.WithTokenClock(fixedClock(minted)),
		accounts.WithTokenMaxAge(time.Hour),
	)

	account := newTokenTestAccount()
	token := gen.MakeToken(account)

	later := accounts.NewVerificationTokenGenerator(tokenTestSecret,
		accounts.WithTokenClock(fixedClock(minted.Add(2*time.Hour))),
		accounts.WithTokenMaxAge(time.Hour),
	)

	assert.False(t, later.CheckToken(account, token))
}
