// Package auth - errors.go defines the sentinel errors returned by credential
// validation. Handlers map these onto HTTP status codes; the distinctions matter
// because a revoked key and an unknown key produce different audit outcomes.
package auth

import "errors"

var (
	// ErrCredentialMissing indicates no credential was presented on a route that requires one
	ErrCredentialMissing = errors.New("credential missing")

	// ErrCredentialInvalid indicates the presented credential matched nothing
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrCredentialExpired indicates a session token past its expiry
	ErrCredentialExpired = errors.New("credential expired")

	// ErrCredentialRevoked indicates an API key that existed but has been revoked
	ErrCredentialRevoked = errors.New("credential revoked")

	// ErrCrossTenantKeyUse indicates a valid key presented against a different project
	ErrCrossTenantKeyUse = errors.New("credential belongs to a different project")

	// ErrInsufficientRole indicates an authenticated admin lacking the required role
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrInsufficientPermissions indicates a valid key lacking a required capability
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)
