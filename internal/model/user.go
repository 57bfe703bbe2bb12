package model

import (
	"strings"
	"time"
)

// Role is the access role carried by a user and by its access tokens.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEmployee   Role = "EMPLOYEE"
)

// ParseRole normalizes s into a Role and reports whether it is known.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee:
		return r, true
	}
	return "", false
}

// IsAdmin reports whether r may administer rooms and users.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// User mirrors the `users` table.  PasswordHash never leaves the service
// layer; it is excluded from JSON.
type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// RolePolicy decides whether an actor holding actorRole may change a user
// currently holding targetRole to newRole.
type RolePolicy func(actorRole, targetRole, newRole Role) bool

// DefaultRolePolicy is the stock hierarchy: a super admin may change
// anyone to anything; an admin may only move employees between
// non-admin roles; employees may change nobody.
func DefaultRolePolicy(actorRole, targetRole, newRole Role) bool {
	switch actorRole {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return targetRole == RoleEmployee && newRole == RoleEmployee
	}
	return false
}
