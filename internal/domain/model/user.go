package model

import "strings"

type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
)

// ParseRole normalizes a role claim; unknown roles are returned as-is.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Principal is the authenticated caller as established by the auth layer.
type Principal struct {
	UserID   string
	Role     Role
	TenantID string
}

func (p Principal) IsSuperAdmin() bool { return p.Role == RoleSuperAdmin }

// UserSummary is the public projection of a user joined into listings.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
