package enums

import (
	"fmt"
	"strings"
)

// Role is a realm role issued by the identity provider.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleViewer  Role = "viewer"
)

var validRoles = []Role{
	RoleAdmin,
	RoleManager,
	RoleStaff,
	RoleViewer,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role, ignoring case.
func ParseRole(value string) (Role, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// ParseRoles keeps the known roles of a comma-separated list and drops the
// rest; identity providers issue many roles the api does not care about.
func ParseRoles(value string) []Role {
	var roles []Role
	for _, raw := range strings.Split(value, ",") {
		if role, err := ParseRole(raw); err == nil {
			roles = append(roles, role)
		}
	}
	return roles
}

// JoinRoles renders roles as a comma-separated list.
func JoinRoles(roles []Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}
