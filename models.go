package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the account's role
type Role = string

const (
	// RoleUser is a regular account (i.e. view, edit own data)
	RoleUser Role = "user"
	// RoleAdmin is an admin account (i.e. full access)
	RoleAdmin Role = "admin"
)

// Account is the identity record holding the login credential
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active" json:"is_active"`
	Profile       *Profile   `bun:"rel:has-one,join:id=account_id" json:"profile,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Profile holds lifecycle and role state, one-to-one with Account.
// It is created in the same transaction as its Account and never
// exists without one.
type Profile struct {
	bun.BaseModel        `bun:"table:account_profiles,alias:prf"`
	ID                   uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID            uuid.UUID  `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	Account              *Account   `bun:"rel:belongs-to,join:account_id=id" json:"-"`
	Role                 Role       `bun:"role,notnull" json:"role,omitempty"`
	EmailVerified        bool       `bun:"email_verified" json:"email_verified"`
	VerificationToken    *string    `bun:"verification_token,nullzero" json:"-"`
	VerificationIssuedAt *time.Time `bun:"verification_issued_at,nullzero" json:"-"`
	ResetToken           *string    `bun:"reset_token,nullzero" json:"-"`
	ResetIssuedAt        *time.Time `bun:"reset_issued_at,nullzero" json:"-"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsAdmin checks if the profile carries the admin role
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// HasOutstandingVerification reports whether a verification request is pending
func (p *Profile) HasOutstandingVerification() bool {
	return p != nil && p.VerificationToken != nil
}

// HasOutstandingReset reports whether a password reset request is pending
func (p *Profile) HasOutstandingReset() bool {
	return p != nil && p.ResetToken != nil
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// constraint behave case-insensitively
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
