package accounts

// IsValid checks if the role is one of the predefined valid roles
func isValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleIsAtLeast checks if role meets the minimum required level
func RoleIsAtLeast(r, minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleUser:  0,
		RoleAdmin: 1,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, isValidRole(role)
}

// PolicyPredicate is a side-effect-free guard over a profile. The web
// layer composes these per route; what response to produce on denial is
// the caller's responsibility.
type PolicyPredicate func(profile *Profile) bool

// IsAdmin reports whether the profile carries the admin role.
func IsAdmin(profile *Profile) bool {
	return profile.IsAdmin()
}

// HasRole reports whether the profile carries exactly the given role.
func HasRole(profile *Profile, role Role) bool {
	return profile != nil && profile.Role == role
}

// RequiresRole builds a predicate demanding at least the given role.
func RequiresRole(role Role) PolicyPredicate {
	return func(profile *Profile) bool {
		if profile == nil {
			return false
		}
		return RoleIsAtLeast(profile.Role, role)
	}
}

// RequiresVerifiedEmail reports whether the profile's email is verified.
func RequiresVerifiedEmail(profile *Profile) bool {
	return profile != nil && profile.EmailVerified
}
