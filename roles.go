package auth

import "strings"

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleBusinessOwner, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAdminRole reports roles that get the admin view tree
func IsAdminRole(r UserRole) bool {
	return r == RoleSuperAdmin
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleBusinessOwner,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into a UserRole
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.TrimSpace(strings.ToLower(roleStr)))
	return role, IsValidRole(role)
}
