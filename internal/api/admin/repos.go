// repos.go implements HTTP handlers for linking GitHub repositories to
// projects and driving the OAuth authorization broker: starting the flow,
// completing the callback, probing access, and inspecting authorization state.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/middleware"
	"github.com/corebase/corebase/internal/oauth"
)

// RepoHandlers handles repository linking and authorization endpoints
type RepoHandlers struct {
	repos    *repositories.GitHubRepository
	broker   *oauth.Broker
	projects *ProjectHandlers
	logger   *slog.Logger
}

// NewRepoHandlers creates a new RepoHandlers instance
func NewRepoHandlers(repos *repositories.GitHubRepository, broker *oauth.Broker, projects *ProjectHandlers, logger *slog.Logger) *RepoHandlers {
	return &RepoHandlers{repos: repos, broker: broker, projects: projects, logger: logger}
}

type linkRepositoryRequest struct {
	Owner         string `json:"owner" binding:"required"`
	Name          string `json:"name" binding:"required"`
	DefaultBranch string `json:"default_branch"`
}

// @Summary      Link repository
// @Description  Attach a GitHub repository to the project. Linking records
// @Description  the coordinates only; authorization happens separately.
// @Tags         Repositories
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Repository
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos [post]
func (h *RepoHandlers) Link(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	var req linkRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner and name are required"})
		return
	}
	if req.DefaultBranch == "" {
		req.DefaultBranch = "main"
	}

	repo := &models.Repository{
		ProjectID:     project.ID,
		Owner:         req.Owner,
		Name:          req.Name,
		DefaultBranch: req.DefaultBranch,
	}
	if err := h.repos.CreateRepository(c.Request.Context(), repo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link repository"})
		return
	}

	h.logger.Info("repository linked", "project_id", project.ID, "repository", repo.FullName())
	c.JSON(http.StatusCreated, repo)
}

// @Summary      List repositories
// @Tags         Repositories
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos [get]
func (h *RepoHandlers) List(c *gin.Context) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return
	}

	repos, err := h.repos.ListRepositoriesByProject(c.Request.Context(), project.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list repositories"})
		return
	}
	if repos == nil {
		repos = []*models.Repository{}
	}
	c.JSON(http.StatusOK, gin.H{"repositories": repos})
}

// @Summary      Unlink repository
// @Description  Removes the link and any stored authorization with it.
// @Tags         Repositories
// @Success      204  {object}  string
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos/{id} [delete]
func (h *RepoHandlers) Unlink(c *gin.Context) {
	repo, ok := h.lookupRepo(c)
	if !ok {
		return
	}

	if err := h.repos.DeleteRepository(c.Request.Context(), repo.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlink repository"})
		return
	}

	h.logger.Info("repository unlinked", "repository_id", repo.ID, "repository", repo.FullName())
	c.Status(http.StatusNoContent)
}

// @Summary      Start repository authorization
// @Description  Issues a single-use state and returns the GitHub redirect URL
// @Description  the browser should open.
// @Tags         Repositories
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "authorize_url"
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos/{id}/authorize [post]
func (h *RepoHandlers) Authorize(c *gin.Context) {
	repo, ok := h.lookupRepo(c)
	if !ok {
		return
	}

	userID := ""
	if ac := middleware.GetAuthContext(c); ac != nil {
		userID = ac.Identity.UserID
	}

	authURL, err := h.broker.Authorize(c.Request.Context(), repo.ID, userID)
	if err != nil {
		if errors.Is(err, oauth.ErrRepositoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start authorization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorize_url": authURL})
}

// @Summary      OAuth callback
// @Description  Completes the GitHub flow. The state is single-use; a replay
// @Description  or an expired state fails with 400. On success the response
// @Description  is a small HTML page that closes the popup window.
// @Tags         Repositories
// @Produce      html
// @Success      200  {object}  string
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/v1/oauth/github/callback [get]
func (h *RepoHandlers) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required"})
		return
	}

	repo, err := h.broker.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrStateInvalidOrExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "authorization state is invalid or expired"})
		case errors.Is(err, oauth.ErrExchangeFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "code exchange with GitHub failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete authorization"})
		}
		return
	}

	h.logger.Info("repository authorized", "repository_id", repo.ID, "repository", repo.FullName())
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(callbackSuccessPage))
}

// callbackSuccessPage closes the OAuth popup and nudges the opener to
// refresh. Kept self-contained: no external assets, nothing dynamic.
const callbackSuccessPage = `<!DOCTYPE html>
<html>
	<head><title>Authorization complete</title></head>
	<body>
		<p>Repository authorized. You can close this window.</p>
		<script>
			if (window.opener) { window.opener.postMessage("oauth-complete", "*"); }
			window.close();
		</script>
	</body>
</html>`

type updateTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// @Summary      Update repository token
// @Description  Stores a manually supplied access token (a PAT) for the
// @Description  repository, replacing any OAuth-sourced authorization. The
// @Description  token is probed before it is stored and never appears in any
// @Description  response or log.
// @Tags         Repositories
// @Accept       json
// @Produce      json
// @Success      200  {object}  oauth.AccessStatus
// @Failure      400  {object}  map[string]interface{}  "token rejected by GitHub"
// @Failure      404  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos/{id}/token [put]
func (h *RepoHandlers) UpdateToken(c *gin.Context) {
	repo, ok := h.lookupRepo(c)
	if !ok {
		return
	}

	var req updateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	userID := ""
	if ac := middleware.GetAuthContext(c); ac != nil {
		userID = ac.Identity.UserID
	}

	status, err := h.broker.SetToken(c.Request.Context(), repo.ID, req.Token, userID)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrUnauthorized):
			c.JSON(http.StatusBadRequest, gin.H{"error": "token was rejected by GitHub"})
		case errors.Is(err, oauth.ErrUpstreamProbeFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach GitHub to verify the token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		}
		return
	}

	h.logger.Info("repository token updated", "repository_id", repo.ID, "repository", repo.FullName())
	c.JSON(http.StatusOK, status)
}

// @Summary      Test repository access
// @Description  Probes GitHub with the stored authorization (or the fallback
// @Description  token). A definitive rejection reports authorized: false; a
// @Description  probe that cannot reach a verdict is a 502.
// @Tags         Repositories
// @Produce      json
// @Success      200  {object}  oauth.AccessStatus
// @Failure      404  {object}  map[string]interface{}  "no authorization to test"
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos/{id}/test-access [post]
func (h *RepoHandlers) TestAccess(c *gin.Context) {
	repo, ok := h.lookupRepo(c)
	if !ok {
		return
	}

	status, err := h.broker.TestAccess(c.Request.Context(), repo.ID)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrUnauthorized):
			c.JSON(http.StatusOK, oauth.AccessStatus{Authorized: false})
		case errors.Is(err, oauth.ErrNoAuthorization):
			c.JSON(http.StatusNotFound, gin.H{"error": "repository has no authorization and no fallback token is configured"})
		case errors.Is(err, oauth.ErrUpstreamProbeFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach GitHub to test access"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to test access"})
		}
		return
	}

	c.JSON(http.StatusOK, status)
}

// @Summary      Authorization status
// @Description  Reports whether the repository has a stored authorization,
// @Description  without probing GitHub. Token material is never returned.
// @Tags         Repositories
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos/{id}/authorization [get]
func (h *RepoHandlers) AuthorizationStatus(c *gin.Context) {
	repo, ok := h.lookupRepo(c)
	if !ok {
		return
	}

	authz, err := h.repos.GetAuthorization(c.Request.Context(), repo.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load authorization"})
		return
	}
	if authz == nil {
		c.JSON(http.StatusOK, gin.H{"authorized": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized":    true,
		"authorized_by": authz.AuthorizedBy,
		"authorized_at": authz.AuthorizedAt,
		"scopes":        authz.TokenScopes,
	})
}

// @Summary      Revoke repository authorization
// @Description  Deletes the stored token. Future probes fall back to the
// @Description  process-wide token if one is configured.
// @Tags         Repositories
// @Success      204  {object}  string
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/admin/projects/{project}/repos/{id}/authorization [delete]
func (h *RepoHandlers) RevokeAuthorization(c *gin.Context) {
	repo, ok := h.lookupRepo(c)
	if !ok {
		return
	}

	if err := h.repos.DeleteAuthorization(c.Request.Context(), repo.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke authorization"})
		return
	}

	h.logger.Info("repository authorization revoked", "repository_id", repo.ID)
	c.Status(http.StatusNoContent)
}

// lookupRepo resolves the project and the :id repository within it. A
// repository belonging to another project is reported as not found.
func (h *RepoHandlers) lookupRepo(c *gin.Context) (*models.Repository, bool) {
	project, ok := h.projects.resolveAdmin(c)
	if !ok {
		return nil, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return nil, false
	}

	repo, err := h.repos.GetRepository(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load repository"})
		return nil, false
	}
	if repo == nil || repo.ProjectID != project.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return nil, false
	}
	return repo, true
}
