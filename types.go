package accounts

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// Config holds accounts options; the host application implements this
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetBaseURL() string
}

// Mailer is the outbound email capability, fire-and-forget from the
// perspective of this core
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewIdentity adapts an account (and its profile) into an Identity
func NewIdentity(account *Account) Identity {
	role := RoleUser
	if account.Profile != nil && account.Profile.Role != "" {
		role = account.Profile.Role
	}

	return accountIdentity{
		id:    account.ID.String(),
		email: account.Email,
		role:  role,
	}
}

type accountIdentity struct {
	id    string
	email string
	role  string
}

func (a accountIdentity) ID() string {
	return a.id
}

func (a accountIdentity) Email() string {
	return a.email
}

func (a accountIdentity) Role() string {
	return a.role
}

var _ Identity = accountIdentity{}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
