package accounts

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims carries the session claims minted after a successful login.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid"`
	UserRole string `json:"role"`
}

// UserID returns the account identifier the token was minted for.
func (c *JWTClaims) UserID() string {
	return c.UID
}

// Role returns the global role recorded at mint time.
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// IsAdmin reports whether the claims carry the admin role.
func (c *JWTClaims) IsAdmin() bool {
	return Role(c.UserRole) == RoleAdmin
}

// HasRole reports whether the claims carry exactly the given role.
func (c *JWTClaims) HasRole(role Role) bool {
	return Role(c.UserRole) == role
}

// IsAtLeast reports whether the claims meet the minimum required role.
func (c *JWTClaims) IsAtLeast(minRole Role) bool {
	return RoleIsAtLeast(Role(c.UserRole), minRole)
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
