package admin

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/config"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/tenant"
)

// newMockDB returns a sqlx handle over sqlmock. Expectations are unordered
// because several handlers fan out reads.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.APIKeys.Prefix = "cb"
	return cfg
}

func newResolver(projects *repositories.ProjectRepository) *tenant.Resolver {
	return tenant.NewResolver(projects)
}

// projectColumns matches SELECT * FROM projects.
func projectColumns() []string {
	return []string{"id", "slug", "name", "description", "status", "owner_id", "created_at", "updated_at"}
}

func projectRow(id int64, slug, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(projectColumns()).
		AddRow(id, slug, "Acme", "", status, nil, now, now)
}

// doJSON performs a request with an optional JSON body and returns the recorder.
func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}
