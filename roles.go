package auth

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleGuest, RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

var roleHierarchy = map[UserRole]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// RoleIsAtLeast checks if a role meets the minimum required level.
func RoleIsAtLeast(r, minRole UserRole) bool {
	level, ok := roleHierarchy[r]
	if !ok {
		return false
	}
	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}
	return level >= min
}

// ValidRoleSet reports whether the set is non-empty and every member is a
// known role. Accounts never carry an empty role set.
func ValidRoleSet(roles []string) bool {
	if len(roles) == 0 {
		return false
	}
	for _, r := range roles {
		if !IsValidRole(UserRole(r)) {
			return false
		}
	}
	return true
}

// HighestRole returns the strongest role in the set, RoleGuest when the set
// holds nothing recognizable.
func HighestRole(roles []string) UserRole {
	best := RoleGuest
	for _, r := range roles {
		role := UserRole(r)
		if RoleIsAtLeast(role, best) {
			best = role
		}
	}
	return best
}
