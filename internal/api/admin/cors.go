// cors.go implements HTTP handlers for managing per-project CORS policies
// and the global default policy. Every write invalidates the decision cache
// so the data plane picks up changes immediately.
package admin

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/cors"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
)

// CORSHandlers handles CORS policy management endpoints
type CORSHandlers struct {
	policies *repositories.CORSPolicyRepository
	store    *cors.Store
	projects *ProjectHandlers
	logger   *slog.Logger
}

// NewCORSHandlers creates a new CORSHandlers instance
func NewCORSHandlers(policies *repositories.CORSPolicyRepository, store *cors.Store, projects *ProjectHandlers, logger *slog.Logger) *CORSHandlers {
	return &CORSHandlers{policies: policies, store: store, projects: projects, logger: logger}
}

type corsPolicyRequest struct {
	AllowedOrigins   []string `json:"allowed_origins" binding:"required"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// validate rejects combinations the data plane would refuse to serve and
// origin patterns that can never match.
func (r *corsPolicyRequest) validate() (string, bool) {
	if len(r.AllowedOrigins) == 0 {
		return "allowed_origins must not be empty", false
	}
	for _, origin := range r.AllowedOrigins {
		if origin == "*" {
			if r.AllowCredentials {
				return "wildcard origin cannot be combined with allow_credentials", false
			}
			continue
		}
		if err := validateOriginPattern(origin); err != "" {
			return err, false
		}
	}
	if r.MaxAge < 0 {
		return "max_age must not be negative", false
	}
	return "", true
}

// validateOriginPattern checks that an entry is either an absolute origin or
// one of the two supported wildcard forms (any-port, subdomain).
func validateOriginPattern(pattern string) string {
	scheme, rest, found := strings.Cut(pattern, "://")
	if !found || scheme == "" || rest == "" {
		return "origin " + pattern + " must include a scheme"
	}
	if strings.HasSuffix(rest, ":*") {
		rest = strings.TrimSuffix(rest, ":*")
	}
	rest = strings.TrimPrefix(rest, "*.")
	if rest == "" || strings.Contains(rest, "*") {
		return "origin " + pattern + " has an unsupported wildcard form"
	}
	if _, err := url.Parse(scheme + "://" + rest); err != nil {
		return "origin " + pattern + " is not a valid origin"
	}
	return ""
}

func (r *corsPolicyRequest) toModel(projectID *int64) *models.CORSPolicy {
	return &models.CORSPolicy{
		ProjectID:        projectID,
		AllowedOrigins:   models.StringList(r.AllowedOrigins),
		AllowedMethods:   models.StringList(r.AllowedMethods),
		AllowedHeaders:   models.StringList(r.AllowedHeaders),
		AllowCredentials: r.AllowCredentials,
		MaxAge:           r.MaxAge,
	}
}

// @Summary      Get project CORS policy
// @Description  Return the project's stored policy. 404 means the project has
// @Description  no policy of its own and inherits the global default.
// @Tags         CORS
// @Produce      json
// @Success      200  {object}  models.CORSPolicy
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/cors [get]
func (h *CORSHandlers) GetProjectPolicy(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	policy, err := h.policies.GetByProjectID(c.Request.Context(), project.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load policy"})
		return
	}
	if policy == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project has no CORS policy; the global default applies"})
		return
	}
	c.JSON(http.StatusOK, policy)
}

// @Summary      Set project CORS policy
// @Tags         CORS
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.CORSPolicy
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/cors [put]
func (h *CORSHandlers) PutProjectPolicy(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	var req corsPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "allowed_origins is required"})
		return
	}
	if msg, ok := req.validate(); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	policy := req.toModel(&project.ID)
	if err := h.policies.Upsert(c.Request.Context(), policy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save policy"})
		return
	}
	h.store.Invalidate(project.ID)

	h.logger.Info("project CORS policy updated", "project_id", project.ID)
	c.JSON(http.StatusOK, policy)
}

// @Summary      Delete project CORS policy
// @Description  The project falls back to the global default policy.
// @Tags         CORS
// @Success      204  {object}  string
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/cors [delete]
func (h *CORSHandlers) DeleteProjectPolicy(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	if err := h.policies.DeleteByProjectID(c.Request.Context(), project.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete policy"})
		return
	}
	h.store.Invalidate(project.ID)

	h.logger.Info("project CORS policy deleted", "project_id", project.ID)
	c.Status(http.StatusNoContent)
}

// @Summary      Get global CORS policy
// @Description  Return the stored global default row. 404 means resolution
// @Description  falls back to the process configuration.
// @Tags         CORS
// @Produce      json
// @Success      200  {object}  models.CORSPolicy
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/cors [get]
func (h *CORSHandlers) GetGlobalPolicy(c *gin.Context) {
	policy, err := h.policies.GetGlobal(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load policy"})
		return
	}
	if policy == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no global CORS policy; configuration defaults apply"})
		return
	}
	c.JSON(http.StatusOK, policy)
}

// @Summary      Set global CORS policy
// @Tags         CORS
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.CORSPolicy
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/v1/admin/cors [put]
func (h *CORSHandlers) PutGlobalPolicy(c *gin.Context) {
	var req corsPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "allowed_origins is required"})
		return
	}
	if msg, ok := req.validate(); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	policy := req.toModel(nil)
	if err := h.policies.Upsert(c.Request.Context(), policy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save policy"})
		return
	}
	h.store.InvalidateGlobal()

	h.logger.Info("global CORS policy updated")
	c.JSON(http.StatusOK, policy)
}

// @Summary      Delete global CORS policy
// @Description  Resolution falls back to the process configuration.
// @Tags         CORS
// @Success      204  {object}  string
// @Router       /api/v1/admin/cors [delete]
func (h *CORSHandlers) DeleteGlobalPolicy(c *gin.Context) {
	if err := h.policies.DeleteGlobal(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete policy"})
		return
	}
	h.store.InvalidateGlobal()

	h.logger.Info("global CORS policy deleted")
	c.Status(http.StatusNoContent)
}
