package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/config"
)

func TestMain(m *testing.M) {
	os.Setenv("CB_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	os.Setenv("ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func routerTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.APIKeys.Enabled = true
	cfg.Auth.APIKeys.Prefix = "cb"
	cfg.CORS.AllowedOrigins = []string{"http://localhost:*"}
	cfg.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.CORS.AllowedHeaders = []string{"Authorization", "Content-Type"}
	cfg.CORS.MaxAge = 3600
	cfg.CORS.PolicyCacheTTL = time.Minute
	cfg.Security.RateLimiting.Enabled = false
	return cfg
}

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.MonitorPingsOption(true),
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
	)
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { db.Close() })

	router, bg := NewRouter(routerTestConfig(), db)
	t.Cleanup(bg.Shutdown)
	return router, mock
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	router, mock := newTestRouter(t)
	mock.ExpectPing()

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
}

func TestRouter_HealthDatabaseDown(t *testing.T) {
	router, mock := newTestRouter(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRouter_Version(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/version", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["api_version"] != "v1" {
		t.Errorf("api_version = %v, want v1", body["api_version"])
	}
}

func TestRouter_AdminRequiresSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/admin/projects", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRouter_AdminPreflight(t *testing.T) {
	router, mock := newTestRouter(t)

	// No global row stored; the config fallback governs the admin plane.
	mock.ExpectQuery("SELECT \\* FROM cors_policies WHERE project_id IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "allowed_origins", "allowed_methods",
			"allowed_headers", "allow_credentials", "max_age", "created_at", "updated_at"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := serve(router, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body: %s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want the exact origin echoed back", got)
	}
}

func TestRouter_DisallowedOriginGetsNoCORSHeaders(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT \\* FROM cors_policies WHERE project_id IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "allowed_origins", "allowed_methods",
			"allowed_headers", "allow_credentials", "max_age", "created_at", "updated_at"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/projects", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	w := serve(router, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for a disallowed origin, want none", got)
	}
}

func TestRouter_DataPlaneUnknownProject(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT \\* FROM projects WHERE slug").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "description", "status",
			"owner_id", "created_at", "updated_at"}))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/v1/projects/ghost/whoami", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRouter_DataPlaneRequiresCredentials(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT \\* FROM projects WHERE slug").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "description", "status",
			"owner_id", "created_at", "updated_at"}).
			AddRow(int64(1), "acme", "Acme", "", "active", nil, time.Now(), time.Now()))
	// Project-scoped CORS lookup falls through to the global chain.
	mock.ExpectQuery("SELECT \\* FROM cors_policies WHERE project_id =").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "allowed_origins", "allowed_methods",
			"allowed_headers", "allow_credentials", "max_age", "created_at", "updated_at"}))
	mock.ExpectQuery("SELECT \\* FROM cors_policies WHERE project_id IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "allowed_origins", "allowed_methods",
			"allowed_headers", "allow_credentials", "max_age", "created_at", "updated_at"}))

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/acme/whoami", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w := serve(router, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (body: %s)", w.Code, w.Body.String())
	}
	// CORS is decided before credentials, so the browser can read the 401.
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q on rejected credentials, want the origin echoed", got)
	}
}
