package admin

import (
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/db/repositories"
)

func apiKeyColumns() []string {
	return []string{"id", "project_id", "name", "key_hash", "key_prefix", "permissions",
		"created_by", "created_at", "last_used_at", "revoked_at"}
}

func apiKeyRow(id string, projectID int64, revokedAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(apiKeyColumns()).
		AddRow(id, projectID, "ci key", "$2a$10$fakefakefakefakefakefake", "cb_0123456",
			`["data:read"]`, nil, time.Now(), nil, revokedAt)
}

func setupAPIKeyRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	projectRepo := repositories.NewProjectRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)
	projectHandlers := NewProjectHandlers(projectRepo, newResolver(projectRepo), slog.Default())
	h := NewAPIKeyHandlers(keyRepo, projectHandlers, testConfig(), slog.Default())

	r := gin.New()
	r.POST("/admin/projects/:project/keys", h.Create)
	r.GET("/admin/projects/:project/keys", h.List)
	r.PUT("/admin/projects/:project/keys/:id", h.Update)
	r.DELETE("/admin/projects/:project/keys/:id", h.Revoke)
	return r, mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestAPIKeys_CreateReturnsPlaintextOnce(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	expectProjectBySlug(mock, 1, "acme")
	mock.ExpectExec("INSERT INTO api_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(r, http.MethodPost, "/admin/projects/acme/keys", gin.H{"name": "ci key"})
	wantStatus(t, w, http.StatusCreated)

	body := decodeBody(t, w)
	plaintext, _ := body["key"].(string)
	if !strings.HasPrefix(plaintext, "cb_") {
		t.Errorf("key = %q, want cb_ prefix", plaintext)
	}
	// The plaintext is long-form; the masked prefix shown later is 10 chars.
	if len(plaintext) < 20 {
		t.Errorf("key %q looks truncated", plaintext)
	}
}

func TestAPIKeys_CreateRejectsUnknownPermission(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	expectProjectBySlug(mock, 1, "acme")

	w := doJSON(r, http.MethodPost, "/admin/projects/acme/keys", gin.H{
		"name":        "bad",
		"permissions": []string{"data:read", "root:everything"},
	})
	wantStatus(t, w, http.StatusBadRequest)
}

func TestAPIKeys_CreateUnknownProject(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	mock.ExpectQuery("SELECT \\* FROM projects WHERE slug").
		WillReturnRows(sqlmock.NewRows(projectColumns()))

	w := doJSON(r, http.MethodPost, "/admin/projects/ghost/keys", gin.H{"name": "ci key"})
	wantStatus(t, w, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestAPIKeys_ListMasksSecrets(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	expectProjectBySlug(mock, 1, "acme")
	mock.ExpectQuery("SELECT \\* FROM api_keys WHERE project_id").
		WillReturnRows(apiKeyRow("k-1", 1, nil))

	w := doJSON(r, http.MethodGet, "/admin/projects/acme/keys", nil)
	wantStatus(t, w, http.StatusOK)

	raw := w.Body.String()
	if strings.Contains(raw, "key_hash") || strings.Contains(raw, "$2a$") {
		t.Errorf("listing leaks hash material: %s", raw)
	}
	if !strings.Contains(raw, "cb_0123456") {
		t.Errorf("listing missing masked prefix: %s", raw)
	}
}

// ---------------------------------------------------------------------------
// Update / Revoke
// ---------------------------------------------------------------------------

func TestAPIKeys_UpdatePermissions(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	expectProjectBySlug(mock, 1, "acme")
	mock.ExpectQuery("SELECT \\* FROM api_keys WHERE id").
		WillReturnRows(apiKeyRow("k-1", 1, nil))
	mock.ExpectExec("UPDATE api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPut, "/admin/projects/acme/keys/k-1", gin.H{
		"permissions": []string{"data:read", "data:write"},
	})
	wantStatus(t, w, http.StatusOK)
}

func TestAPIKeys_RevokeOK(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	expectProjectBySlug(mock, 1, "acme")
	mock.ExpectQuery("SELECT \\* FROM api_keys WHERE id").
		WillReturnRows(apiKeyRow("k-1", 1, nil))
	mock.ExpectExec("UPDATE api_keys SET revoked_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodDelete, "/admin/projects/acme/keys/k-1", nil)
	wantStatus(t, w, http.StatusOK)
	if body := decodeBody(t, w); body["revoked_at"] == nil {
		t.Error("response missing revoked_at")
	}
}

func TestAPIKeys_RevokeTwiceConflicts(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	revoked := time.Now().Add(-time.Hour)
	expectProjectBySlug(mock, 1, "acme")
	mock.ExpectQuery("SELECT \\* FROM api_keys WHERE id").
		WillReturnRows(apiKeyRow("k-1", 1, &revoked))

	w := doJSON(r, http.MethodDelete, "/admin/projects/acme/keys/k-1", nil)
	wantStatus(t, w, http.StatusConflict)
}

func TestAPIKeys_CrossProjectKeyIsNotFound(t *testing.T) {
	r, mock := setupAPIKeyRouter(t)
	expectProjectBySlug(mock, 1, "acme")
	// The key exists but belongs to project 2.
	mock.ExpectQuery("SELECT \\* FROM api_keys WHERE id").
		WillReturnRows(apiKeyRow("k-other", 2, nil))

	w := doJSON(r, http.MethodDelete, "/admin/projects/acme/keys/k-other", nil)
	wantStatus(t, w, http.StatusNotFound)
}
