// project.go binds the project referenced in the URL into the request context.
// Routes accept both numeric IDs and slugs in the same path segment; inactive
// and missing projects are indistinguishable to callers.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/tenant"
)

// ProjectContextKey holds the *models.Project for the request
const ProjectContextKey = "project"

// GetProject returns the project resolved by ResolveProject, or nil.
func GetProject(c *gin.Context) *models.Project {
	v, ok := c.Get(ProjectContextKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Project)
	return p
}

// ResolveProject resolves the :project path parameter and stores the result
// in the context. Unknown and suspended projects both produce a plain 404.
func ResolveProject(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := resolver.Resolve(c.Request.Context(), c.Param("project"))
		if err != nil {
			if errors.Is(err, tenant.ErrProjectNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
					"error": "project not found",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "failed to resolve project",
			})
			return
		}

		c.Set(ProjectContextKey, project)
		c.Next()
	}
}
