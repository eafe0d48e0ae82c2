package enums

import "fmt"

// UserRole is an authority-side role granted to a user. Licensee contacts
// carry no role; their access flows from licensee association.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleAuditor  UserRole = "auditor"
	UserRoleReviewer UserRole = "reviewer"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleAuditor,
	UserRoleReviewer,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
