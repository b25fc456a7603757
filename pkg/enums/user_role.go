package enums

import "fmt"

// UserRole is carried in the access token and gates write endpoints.
type UserRole string

const (
	UserRoleAdmin          UserRole = "admin"
	UserRoleProjectManager UserRole = "project_manager"
	UserRoleStorekeeper    UserRole = "storekeeper"
	UserRoleSiteEngineer   UserRole = "site_engineer"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleProjectManager,
	UserRoleStorekeeper,
	UserRoleSiteEngineer,
}

func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// In reports whether r is one of roles.
func (r UserRole) In(roles ...UserRole) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
