// Package data implements the project-scoped data plane surface. The
// interesting work happens in the middleware chain (project resolution,
// CORS, credential validation); handlers here only expose the outcome.
package data

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/auth"
	"github.com/corebase/corebase/internal/middleware"
)

// GatewayHandlers handles project-scoped data plane endpoints
type GatewayHandlers struct{}

// NewGatewayHandlers creates a new GatewayHandlers instance
func NewGatewayHandlers() *GatewayHandlers {
	return &GatewayHandlers{}
}

// @Summary      Who am I
// @Description  Return the authenticated identity and its effective
// @Description  permissions for this project.
// @Tags         Data
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Router       /v1/projects/{project}/whoami [get]
func (h *GatewayHandlers) WhoAmI(c *gin.Context) {
	ac := middleware.GetAuthContext(c)
	if ac == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	resp := gin.H{
		"identity_kind": ac.Identity.Kind,
		"permissions":   ac.Permissions,
	}
	if ac.Project != nil {
		resp["project"] = gin.H{
			"id":   ac.Project.ID,
			"slug": ac.Project.Slug,
		}
	}
	switch ac.Identity.Kind {
	case auth.IdentityAdmin:
		resp["user_id"] = ac.Identity.UserID
		resp["email"] = ac.Identity.Email
	case auth.IdentityAPIKey:
		resp["key_id"] = ac.Identity.KeyID
	}

	c.JSON(http.StatusOK, resp)
}
