// Package auth - permissions.go defines the permission constants carried by project
// API keys and provides HasPermission, HasAnyPermission, and HasAllPermissions helpers.
package auth

import (
	"errors"
	"fmt"
)

// Permission represents a capability an API key may carry
type Permission string

const (
	// Data plane permissions
	PermDataRead  Permission = "data:read"
	PermDataWrite Permission = "data:write"

	// Storage permissions
	PermStorageRead  Permission = "storage:read"
	PermStorageWrite Permission = "storage:write"

	// Function invocation
	PermFunctionsInvoke Permission = "functions:invoke"

	// Project-level administration (CORS policy, key management)
	PermProjectManage Permission = "project:manage"

	// Admin permission (wildcard - all permissions)
	PermAdmin Permission = "admin"
)

// AllPermissions returns all valid permissions
func AllPermissions() []Permission {
	return []Permission{
		PermDataRead,
		PermDataWrite,
		PermStorageRead,
		PermStorageWrite,
		PermFunctionsInvoke,
		PermProjectManage,
		PermAdmin,
	}
}

// ValidPermissions returns a map of valid permission strings
func ValidPermissions() map[string]bool {
	valid := make(map[string]bool)
	for _, p := range AllPermissions() {
		valid[string(p)] = true
	}
	return valid
}

// ValidatePermissions checks if all provided permissions are valid
func ValidatePermissions(perms []string) error {
	valid := ValidPermissions()
	for _, p := range perms {
		if !valid[p] {
			return fmt.Errorf("invalid permission: %s", p)
		}
	}
	return nil
}

// HasPermission checks if a key's permission set grants a required capability.
// Supports the admin wildcard, and write permissions imply the matching read.
func HasPermission(keyPerms []string, required Permission) bool {
	requiredStr := string(required)

	for _, p := range keyPerms {
		if p == requiredStr {
			return true
		}

		if p == string(PermAdmin) {
			return true
		}

		if required == PermDataRead && p == string(PermDataWrite) {
			return true
		}
		if required == PermStorageRead && p == string(PermStorageWrite) {
			return true
		}
	}

	return false
}

// HasAnyPermission checks if at least one of the required capabilities is granted
func HasAnyPermission(keyPerms []string, required []Permission) bool {
	for _, r := range required {
		if HasPermission(keyPerms, r) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if all of the required capabilities are granted
func HasAllPermissions(keyPerms []string, required []Permission) bool {
	for _, r := range required {
		if !HasPermission(keyPerms, r) {
			return false
		}
	}
	return true
}

// GetDefaultPermissions returns default permissions for a new API key
func GetDefaultPermissions() []string {
	return []string{
		string(PermDataRead),
		string(PermStorageRead),
	}
}

// ValidatePermissionString validates a single permission string
func ValidatePermissionString(p string) error {
	if !ValidPermissions()[p] {
		return errors.New("invalid permission")
	}
	return nil
}
