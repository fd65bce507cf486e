// Package auth - identity.go defines the resolved identity attached to a request
// after credential validation, and the authorization context handlers read from.
package auth

import "github.com/corebase/corebase/internal/db/models"

// Identity kinds
const (
	IdentityAdmin  = "admin"
	IdentityAPIKey = "api_key"
)

// Identity is the authenticated principal behind a request.
type Identity struct {
	Kind string

	// Admin session fields
	UserID string
	Email  string
	Role   string

	// API key fields
	KeyID     string
	ProjectID int64
}

// IsAdmin reports whether the identity is an admin session
func (i *Identity) IsAdmin() bool {
	return i.Kind == IdentityAdmin
}

// AuthContext is the full authorization result for a project-scoped request:
// the resolved project, the validated identity, and the effective permissions.
type AuthContext struct {
	Project     *models.Project
	Identity    Identity
	Permissions []string
}

// Can reports whether the context grants a capability
func (a *AuthContext) Can(required Permission) bool {
	if a.Identity.IsAdmin() {
		return true
	}
	return HasPermission(a.Permissions, required)
}
