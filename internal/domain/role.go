package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of workspace roles
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin" // tenant administrator
	RoleSM         Role = "sm"
	RoleDealer     Role = "dealer"
	RoleOperation  Role = "operation"
)

// AllRoles lists every role in display order
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleSM, RoleDealer, RoleOperation}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSM, RoleDealer, RoleOperation:
		return true
	default:
		return false
	}
}

// ParseRole converts a string into a Role, rejecting unknown values
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}
