package accounts_test

import (
	"testing"

	accounts "github.com/selfserve/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestRoleIsAtLeast(t *testing.T) {
	tests := []struct {
		name    string
		role    accounts.Role
		minRole accounts.Role
		want    bool
	}{
		{"user meets user", accounts.RoleUser, accounts.RoleUser, true},
		{"admin meets user", accounts.RoleAdmin, accounts.RoleUser, true},
		{"admin meets admin", accounts.RoleAdmin, accounts.RoleAdmin, true},
		{"user does not meet admin", accounts.RoleUser, accounts.RoleAdmin, false},
		{"unknown role never qualifies", accounts.Role("owner"), accounts.RoleUser, false},
		{"unknown minimum never matches", accounts.RoleUser, accounts.Role("owner"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accounts.RoleIsAtLeast(tt.role, tt.minRole))
		})
	}
}

func TestParseRole(t *testing.T) {
	role, ok := accounts.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleAdmin, role)

	_, ok = accounts.ParseRole("superuser")
	assert.False(t, ok)
}

func TestGetAllRoles(t *testing.T) {
	roles := accounts.GetAllRoles()
	assert.Equal(t, []accounts.Role{accounts.RoleUser, accounts.RoleAdmin}, roles)
}

func TestRequiresRole(t *testing.T) {
	needsAdmin := accounts.RequiresRole(accounts.RoleAdmin)

	assert.True(t, needsAdmin(&accounts.Profile{Role: accounts.RoleAdmin}))
	assert.False(t, needsAdmin(&accounts.Profile{Role: accounts.RoleUser}))
	assert.False(t, needsAdmin(nil))
}

func TestRequiresVerifiedEmail(t *testing.T) {
	assert.True(t, accounts.RequiresVerifiedEmail(&accounts.Profile{EmailVerified: true}))
	assert.False(t, accounts.RequiresVerifiedEmail(&accounts.Profile{}))
	assert.False(t, accounts.RequiresVerifiedEmail(nil))
}

func TestIsAdminAndHasRole(t *testing.T) {
	admin := &accounts.Profile{Role: accounts.RoleAdmin}
	user := &accounts.Profile{Role: accounts.RoleUser}

	assert.True(t, accounts.IsAdmin(admin))
	assert.False(t, accounts.IsAdmin(user))

	assert.True(t, accounts.HasRole(user, accounts.RoleUser))
	assert.False(t, accounts.HasRole(user, accounts.RoleAdmin))
	assert.False(t, accounts.HasRole(nil, accounts.RoleUser))
}
