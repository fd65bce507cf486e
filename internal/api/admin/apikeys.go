// apikeys.go implements HTTP handlers for project API key management.
// The plaintext secret appears exactly once, in the creation response;
// listings only ever show the masked prefix.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/auth"
	"github.com/corebase/corebase/internal/config"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/middleware"
)

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	keys     *repositories.APIKeyRepository
	projects *ProjectHandlers
	cfg      *config.Config
	logger   *slog.Logger
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(keys *repositories.APIKeyRepository, projects *ProjectHandlers, cfg *config.Config, logger *slog.Logger) *APIKeyHandlers {
	return &APIKeyHandlers{keys: keys, projects: projects, cfg: cfg, logger: logger}
}

type createAPIKeyRequest struct {
	Name        string   `json:"name" binding:"required"`
	Permissions []string `json:"permissions"`
}

type updateAPIKeyRequest struct {
	Name        *string  `json:"name"`
	Permissions []string `json:"permissions"`
}

// apiKeyResponse is the listing form of a key. The secret is absent; Key
// holds the masked prefix placeholder.
type apiKeyResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Key         string     `json:"key"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func toAPIKeyResponse(k *models.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:          k.ID,
		Name:        k.Name,
		Key:         k.MaskedKey(),
		Permissions: k.Permissions,
		CreatedAt:   k.CreatedAt,
		LastUsedAt:  k.LastUsedAt,
		RevokedAt:   k.RevokedAt,
	}
}

// @Summary      Create API key
// @Description  Generate a key for the project. The response carries the
// @Description  plaintext secret; it is not stored and cannot be retrieved
// @Description  again.
// @Tags         APIKeys
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "key: plaintext secret, shown once"
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/keys [post]
func (h *APIKeyHandlers) Create(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = auth.GetDefaultPermissions()
	}
	if err := auth.ValidatePermissions(permissions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plaintext, hash, displayPrefix, err := auth.GenerateAPIKey(h.cfg.Auth.APIKeys.Prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate key"})
		return
	}

	key := &models.APIKey{
		ProjectID:   project.ID,
		Name:        req.Name,
		KeyHash:     hash,
		KeyPrefix:   displayPrefix,
		Permissions: models.StringList(permissions),
	}
	if ac := middleware.GetAuthContext(c); ac != nil {
		key.CreatedBy = &ac.Identity.UserID
	}

	if err := h.keys.Create(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save key"})
		return
	}

	h.logger.Info("api key created", "project_id", project.ID, "key_id", key.ID, "name", key.Name)
	c.JSON(http.StatusCreated, gin.H{
		"id":          key.ID,
		"name":        key.Name,
		"key":         plaintext,
		"permissions": key.Permissions,
		"created_at":  key.CreatedAt,
	})
}

// @Summary      List API keys
// @Description  All keys for the project, revoked ones included. Secrets are
// @Description  masked.
// @Tags         APIKeys
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/keys [get]
func (h *APIKeyHandlers) List(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	keys, err := h.keys.ListByProject(c.Request.Context(), project.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}

	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// @Summary      Update API key
// @Description  Rename a key or replace its permission set. The secret never
// @Description  changes; rotate by creating a new key and revoking the old.
// @Tags         APIKeys
// @Accept       json
// @Produce      json
// @Success      200  {object}  apiKeyResponse
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/keys/{id} [put]
func (h *APIKeyHandlers) Update(c *gin.Context) {
	key, ok := h.lookupKey(c)
	if !ok {
		return
	}

	var req updateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.Permissions != nil {
		if err := auth.ValidatePermissions(req.Permissions); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		key.Permissions = models.StringList(req.Permissions)
	}

	if err := h.keys.Update(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update key"})
		return
	}
	c.JSON(http.StatusOK, toAPIKeyResponse(key))
}

// @Summary      Revoke API key
// @Description  Soft-revokes the key. The row is kept; requests presenting
// @Description  the key are rejected as revoked from the next request on.
// @Tags         APIKeys
// @Produce      json
// @Success      200  {object}  apiKeyResponse
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}  "already revoked"
// @Router       /api/v1/admin/projects/{project}/keys/{id} [delete]
func (h *APIKeyHandlers) Revoke(c *gin.Context) {
	key, ok := h.lookupKey(c)
	if !ok {
		return
	}
	if key.IsRevoked() {
		c.JSON(http.StatusConflict, gin.H{"error": "key is already revoked"})
		return
	}

	if err := h.keys.Revoke(c.Request.Context(), key.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke key"})
		return
	}

	h.logger.Info("api key revoked", "project_id", key.ProjectID, "key_id", key.ID)
	now := time.Now()
	key.RevokedAt = &now
	c.JSON(http.StatusOK, toAPIKeyResponse(key))
}

// lookupKey resolves the project and the :id key within it, writing 404s
// itself. A key belonging to another project is reported as not found.
func (h *APIKeyHandlers) lookupKey(c *gin.Context) (*models.APIKey, bool) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return nil, false
	}

	key, err := h.keys.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load key"})
		return nil, false
	}
	if key == nil || key.ProjectID != project.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return nil, false
	}
	return key, true
}
