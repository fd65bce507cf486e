// Package middleware provides Gin HTTP middleware for authentication, authorization,
// CORS policy enforcement, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Project → CORS → Auth → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Project resolution runs before CORS because the CORS decision is per-project;
// CORS runs before auth so browser responses carry the allow-origin headers even
// when the credential is rejected. Auth populates the authorization context the
// handlers and the audit trail read from.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/corebase/corebase/internal/auth"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/telemetry"
)

// Context keys set by the auth middleware.
const (
	// AuthContextKey holds the *auth.AuthContext for the request
	AuthContextKey = "auth_context"
)

// GetAuthContext returns the authorization context set by RequireAdmin or
// RequireProjectAuth, or nil when the request is unauthenticated.
func GetAuthContext(c *gin.Context) *auth.AuthContext {
	v, ok := c.Get(AuthContextKey)
	if !ok {
		return nil
	}
	ac, _ := v.(*auth.AuthContext)
	return ac
}

// RequireAdmin validates an admin session JWT and enforces a minimum role.
// The admin plane only accepts session tokens; project API keys are rejected
// here so a leaked key never grants admin access.
func RequireAdmin(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := validateAdminSession(c)
		if !ok {
			return
		}

		if !models.RoleSatisfies(claims.Role, requiredRole) {
			telemetry.AuthFailuresTotal.WithLabelValues("insufficient_role").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": auth.ErrInsufficientRole.Error(),
			})
			return
		}

		setAdminContext(c, claims)
		c.Next()
	}
}

// RequireProjectAuth authorizes a request against the project already resolved
// into the context. It accepts either an admin session JWT or an API key
// belonging to that project. A valid key for a different project is a 403,
// distinct from the 401 an invalid credential produces.
func RequireProjectAuth(apiKeyRepo *repositories.APIKeyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		project := GetProject(c)
		if project == nil {
			// Route wiring error: the project middleware must run first.
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "project context missing",
			})
			return
		}

		token, err := auth.ExtractAPIKeyFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			telemetry.AuthFailuresTotal.WithLabelValues("credential_missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": auth.ErrCredentialMissing.Error(),
			})
			return
		}

		// Admin sessions pass on any project. JWT validation is attempted
		// first because it is stateless; key validation always costs a DB
		// read plus a bcrypt comparison.
		if claims, jwtErr := auth.ValidateJWT(token); jwtErr == nil {
			setAdminContextForProject(c, claims, project)
			c.Next()
			return
		}

		key, ok := validateProjectKey(c, apiKeyRepo, token, project)
		if !ok {
			return
		}

		// Last-used tracking is best-effort and must not add a write to the
		// request path; the timeout bounds the goroutine if the DB is down.
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiKeyRepo.UpdateLastUsed(ctx, id)
		}(key.ID)

		telemetry.APIKeyValidationsTotal.WithLabelValues("ok").Inc()
		c.Set(AuthContextKey, &auth.AuthContext{
			Project: project,
			Identity: auth.Identity{
				Kind:      auth.IdentityAPIKey,
				KeyID:     key.ID,
				ProjectID: key.ProjectID,
			},
			Permissions: key.Permissions,
		})
		c.Next()
	}
}

// RequirePermission enforces a capability on an already-authorized request.
// Admin sessions hold every capability.
func RequirePermission(required auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac := GetAuthContext(c)
		if ac == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": auth.ErrCredentialMissing.Error(),
			})
			return
		}
		if !ac.Can(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": auth.ErrInsufficientPermissions.Error(),
			})
			return
		}
		c.Next()
	}
}

// validateAdminSession extracts and validates the session JWT, writing the
// error response itself. Returns ok=false when the request was aborted.
func validateAdminSession(c *gin.Context) (*auth.Claims, bool) {
	token, err := auth.ExtractAPIKeyFromHeader(c.GetHeader("Authorization"))
	if err != nil {
		telemetry.AuthFailuresTotal.WithLabelValues("credential_missing").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": auth.ErrCredentialMissing.Error(),
		})
		return nil, false
	}

	claims, err := auth.ValidateJWT(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			telemetry.AuthFailuresTotal.WithLabelValues("credential_expired").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": auth.ErrCredentialExpired.Error(),
			})
			return nil, false
		}
		telemetry.AuthFailuresTotal.WithLabelValues("credential_invalid").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": auth.ErrCredentialInvalid.Error(),
		})
		return nil, false
	}

	return claims, true
}

// validateProjectKey finds the key by its display prefix and verifies it
// against the stored bcrypt hash. Revoked keys are reported as revoked, not
// unknown, and a key for another project aborts with 403.
func validateProjectKey(c *gin.Context, apiKeyRepo *repositories.APIKeyRepository, token string, project *models.Project) (*models.APIKey, bool) {
	// The prefix narrows the candidate set via an indexed query so bcrypt
	// runs on a handful of rows, not the whole table. Revoked keys are
	// included so a revoked key can be told apart from an unknown one.
	candidates, err := apiKeyRepo.GetByPrefix(c.Request.Context(), auth.DisplayPrefix(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "authentication failed",
		})
		return nil, false
	}

	var key *models.APIKey
	for _, candidate := range candidates {
		if auth.ValidateAPIKey(token, candidate.KeyHash) {
			key = candidate
			break
		}
	}

	if key == nil {
		telemetry.APIKeyValidationsTotal.WithLabelValues("not_found").Inc()
		telemetry.AuthFailuresTotal.WithLabelValues("credential_invalid").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": auth.ErrCredentialInvalid.Error(),
		})
		return nil, false
	}

	if key.IsRevoked() {
		telemetry.APIKeyValidationsTotal.WithLabelValues("revoked").Inc()
		telemetry.AuthFailuresTotal.WithLabelValues("credential_revoked").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": auth.ErrCredentialRevoked.Error(),
		})
		return nil, false
	}

	if key.ProjectID != project.ID {
		telemetry.AuthFailuresTotal.WithLabelValues("cross_tenant_key").Inc()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": auth.ErrCrossTenantKeyUse.Error(),
		})
		return nil, false
	}

	return key, true
}

func setAdminContext(c *gin.Context, claims *auth.Claims) {
	c.Set(AuthContextKey, &auth.AuthContext{
		Identity: auth.Identity{
			Kind:   auth.IdentityAdmin,
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		},
	})
}

func setAdminContextForProject(c *gin.Context, claims *auth.Claims, project *models.Project) {
	c.Set(AuthContextKey, &auth.AuthContext{
		Project: project,
		Identity: auth.Identity{
			Kind:   auth.IdentityAdmin,
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		},
	})
}
