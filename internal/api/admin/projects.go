// projects.go implements HTTP handlers for tenant lifecycle management:
// creation, updates, suspension, reactivation, and deletion.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/middleware"
	"github.com/corebase/corebase/internal/tenant"
)

// slugPattern matches lowercase DNS-label style slugs. A purely numeric slug
// is additionally rejected so it can never shadow a project ID in URLs.
var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ProjectHandlers handles project management endpoints
type ProjectHandlers struct {
	projects *repositories.ProjectRepository
	resolver *tenant.Resolver
	logger   *slog.Logger
}

// NewProjectHandlers creates a new ProjectHandlers instance
func NewProjectHandlers(projects *repositories.ProjectRepository, resolver *tenant.Resolver, logger *slog.Logger) *ProjectHandlers {
	return &ProjectHandlers{projects: projects, resolver: resolver, logger: logger}
}

type createProjectRequest struct {
	Slug        string `json:"slug" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Slug        *string `json:"slug"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func validateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return errors.New("slug must be a lowercase DNS-style label")
	}
	if regexp.MustCompile(`^[0-9]+$`).MatchString(slug) {
		return errors.New("slug must not be purely numeric")
	}
	return nil
}

// @Summary      List projects
// @Description  Return all projects regardless of lifecycle status.
// @Tags         Projects
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects [get]
func (h *ProjectHandlers) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// @Summary      Create project
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Project
// @Failure      400  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}  "slug already in use"
// @Router       /api/v1/admin/projects [post]
func (h *ProjectHandlers) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug and name are required"})
		return
	}
	if err := validateSlug(req.Slug); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.projects.GetBySlug(c.Request.Context(), req.Slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check slug"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
		return
	}

	project := &models.Project{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.ProjectStatusActive,
	}
	if ac := middleware.GetAuthContext(c); ac != nil {
		project.OwnerID = &ac.Identity.UserID
	}

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create project"})
		return
	}

	h.logger.Info("project created", "project_id", project.ID, "slug", project.Slug)
	c.JSON(http.StatusCreated, project)
}

// @Summary      Get project
// @Description  Resolve a project by numeric ID or slug. Suspended projects
// @Description  are visible on the admin plane.
// @Tags         Projects
// @Produce      json
// @Success      200  {object}  models.Project
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project} [get]
func (h *ProjectHandlers) Get(c *gin.Context) {
	project, ok := h.resolveAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// @Summary      Update project
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.Project
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project} [put]
func (h *ProjectHandlers) Update(c *gin.Context) {
	project, ok := h.resolveAdmin(c)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Slug != nil && *req.Slug != project.Slug {
		if err := validateSlug(*req.Slug); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		existing, err := h.projects.GetBySlug(c.Request.Context(), *req.Slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check slug"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
			return
		}
		project.Slug = *req.Slug
	}
	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}

	if err := h.projects.Update(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// @Summary      Suspend project
// @Description  Suspended projects stop resolving for API-key traffic but
// @Description  keep all their data. Requires the superadmin role.
// @Tags         Projects
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/suspend [post]
func (h *ProjectHandlers) Suspend(c *gin.Context) {
	h.setStatus(c, models.ProjectStatusSuspended)
}

// @Summary      Reactivate project
// @Tags         Projects
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/reactivate [post]
func (h *ProjectHandlers) Reactivate(c *gin.Context) {
	h.setStatus(c, models.ProjectStatusActive)
}

// @Summary      Delete project
// @Description  Permanently removes a project and all dependent rows.
// @Description  Requires the superadmin role.
// @Tags         Projects
// @Success      204  {object}  string
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project} [delete]
func (h *ProjectHandlers) Delete(c *gin.Context) {
	project, ok := h.resolveAdmin(c)
	if !ok {
		return
	}

	if err := h.projects.Delete(c.Request.Context(), project.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete project"})
		return
	}

	h.logger.Info("project deleted", "project_id", project.ID, "slug", project.Slug)
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandlers) setStatus(c *gin.Context, status string) {
	project, ok := h.resolveAdmin(c)
	if !ok {
		return
	}

	if err := h.projects.UpdateStatus(c.Request.Context(), project.ID, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	h.logger.Info("project status changed", "project_id", project.ID, "status", status)
	project.Status = status
	c.JSON(http.StatusOK, gin.H{"id": project.ID, "slug": project.Slug, "status": status})
}

// resolveAdmin resolves the :project path parameter for admin handlers,
// writing the 404 itself so callers can just bail out.
func (h *ProjectHandlers) resolveAdmin(c *gin.Context) (*models.Project, bool) {
	project, err := h.resolver.ResolveAdmin(c.Request.Context(), c.Param("project"))
	if err != nil {
		if errors.Is(err, tenant.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve project"})
		}
		return nil, false
	}
	return project, true
}
