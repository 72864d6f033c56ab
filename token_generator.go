package accounts

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// TokenPurpose keys the HMAC derivation so tokens minted for one purpose
// never validate for another, even with the same secret.
type TokenPurpose string

const (
	// PurposeEmailVerification binds tokens to the account's email
	PurposeEmailVerification TokenPurpose = "accounts.email_verification"
	// PurposePasswordReset binds tokens to the account's password hash
	PurposePasswordReset TokenPurpose = "accounts.password_reset"
)

// DefaultTokenMaxAge is the validity window for emailed links
const DefaultTokenMaxAge = 24 * time.Hour

// number of HMAC output bytes kept in the token signature
const tokenSignatureBytes = 16

// HashInputFunc builds the state-bound portion of the signature payload.
// It must mix the account id, the issuance timestamp, and one mutable
// account field so any prior token becomes invalid the instant that field
// changes, without a revocation list.
type HashInputFunc func(account *Account, timestamp int64) string

// TokenGenerator produces and validates single-use, time-limited tokens
// bound to an account and a purpose.
type TokenGenerator struct {
	secret    []byte
	purpose   TokenPurpose
	maxAge    time.Duration
	hashInput HashInputFunc
	now       func() time.Time
}

// TokenGeneratorOption customizes generator behavior.
type TokenGeneratorOption func(*TokenGenerator)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenGeneratorOption {
	return func(g *TokenGenerator) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithTokenMaxAge overrides the validity window.
func WithTokenMaxAge(maxAge time.Duration) TokenGeneratorOption {
	return func(g *TokenGenerator) {
		if maxAge > 0 {
			g.maxAge = maxAge
		}
	}
}

// NewVerificationTokenGenerator returns a generator for email verification
// links. Changing the account's email invalidates outstanding tokens.
func NewVerificationTokenGenerator(secret []byte, opts ...TokenGeneratorOption) *TokenGenerator {
	return newTokenGenerator(secret, PurposeEmailVerification, func(account *Account, timestamp int64) string {
		return account.ID.String() + strconv.FormatInt(timestamp, 10) + NormalizeEmail(account.Email)
	}, opts...)
}

// NewResetTokenGenerator returns a generator for password reset links.
// Changing the account's password invalidates outstanding tokens.
func NewResetTokenGenerator(secret []byte, opts ...TokenGeneratorOption) *TokenGenerator {
	return newTokenGenerator(secret, PurposePasswordReset, func(account *Account, timestamp int64) string {
		return account.ID.String() + strconv.FormatInt(timestamp, 10) + account.PasswordHash
	}, opts...)
}

func newTokenGenerator(secret []byte, purpose TokenPurpose, input HashInputFunc, opts ...TokenGeneratorOption) *TokenGenerator {
	g := &TokenGenerator{
		secret:    secret,
		purpose:   purpose,
		maxAge:    DefaultTokenMaxAge,
		hashInput: input,
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Purpose returns the purpose this generator was built for.
func (g *TokenGenerator) Purpose() TokenPurpose {
	return g.purpose
}

// MaxAge returns the validity window applied to minted tokens.
func (g *TokenGenerator) MaxAge() time.Duration {
	return g.maxAge
}

// MakeToken mints a token binding the current timestamp and a signature
// over the account's current state. The output is URL-safe and contains
// no '/' so it can be used as a path segment.
func (g *TokenGenerator) MakeToken(account *Account) string {
	timestamp := g.now().Unix()
	return strconv.FormatInt(timestamp, 36) + "-" + g.sign(account, timestamp)
}

// CheckToken reports whether token is well formed, within the validity
// window, and carries a signature matching the account's current state.
// Because the signature covers a mutable field, a token minted before
// that field changed will fail here.
func (g *TokenGenerator) CheckToken(account *Account, token string) bool {
	if account == nil || token == "" {
		return false
	}

	encoded, signature, found := strings.Cut(token, "-")
	if !found {
		return false
	}

	timestamp, err := strconv.ParseInt(encoded, 36, 64)
	if err != nil {
		return false
	}

	expected := g.sign(account, timestamp)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return false
	}

	age := g.now().Sub(time.Unix(timestamp, 0))
	if age < 0 || age > g.maxAge {
		return false
	}

	return true
}

func (g *TokenGenerator) sign(account *Account, timestamp int64) string {
	mac := hmac.New(sha256.New, g.derivedKey())
	mac.Write([]byte(g.hashInput(account, timestamp)))
	return hex.EncodeToString(mac.Sum(nil)[:tokenSignatureBytes])
}

// derivedKey mixes the purpose salt into the signing key so verification
// and reset tokens are never interchangeable.
func (g *TokenGenerator) derivedKey() []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(g.purpose))
	return mac.Sum(nil)
}
