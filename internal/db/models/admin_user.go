package models

import "time"

// Admin roles. Superadmin is required for destructive tenant operations
// (project deletion, suspension) and for managing other admins.
const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// AdminUser represents an administrator account on the admin plane.
type AdminUser struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	OIDCSub      *string   `db:"oidc_sub" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RoleSatisfies reports whether an actor holding role may act on a route
// that requires required. Superadmin satisfies everything.
func RoleSatisfies(role, required string) bool {
	if role == RoleSuperadmin {
		return true
	}
	return role == required
}
