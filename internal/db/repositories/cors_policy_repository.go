// cors_policy_repository.go implements CORSPolicyRepository, providing database queries
// for per-project CORS policies and the global default row (project_id IS NULL).
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/db/models"
)

// CORSPolicyRepository handles CORS policy database operations
type CORSPolicyRepository struct {
	db *sqlx.DB
}

// NewCORSPolicyRepository creates a new CORSPolicyRepository
func NewCORSPolicyRepository(db *sqlx.DB) *CORSPolicyRepository {
	return &CORSPolicyRepository{db: db}
}

// GetByProjectID retrieves the policy for one project
func (r *CORSPolicyRepository) GetByProjectID(ctx context.Context, projectID int64) (*models.CORSPolicy, error) {
	var policy models.CORSPolicy
	query := `SELECT * FROM cors_policies WHERE project_id = $1`
	err := r.db.GetContext(ctx, &policy, query, projectID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// GetGlobal retrieves the global default policy row
func (r *CORSPolicyRepository) GetGlobal(ctx context.Context) (*models.CORSPolicy, error) {
	var policy models.CORSPolicy
	query := `SELECT * FROM cors_policies WHERE project_id IS NULL`
	err := r.db.GetContext(ctx, &policy, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// Upsert creates or replaces the policy for a project. A nil ProjectID
// replaces the global default. The unique constraint on project_id and the
// partial index on the global row guarantee at most one row per target.
func (r *CORSPolicyRepository) Upsert(ctx context.Context, policy *models.CORSPolicy) error {
	now := time.Now()
	policy.UpdatedAt = now

	var query string
	if policy.ProjectID == nil {
		query = `
			INSERT INTO cors_policies (project_id, allowed_origins, allowed_methods, allowed_headers,
				allow_credentials, max_age, created_at, updated_at)
			VALUES (NULL, $1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT ((project_id IS NULL)) WHERE project_id IS NULL DO UPDATE SET
				allowed_origins = $1, allowed_methods = $2, allowed_headers = $3,
				allow_credentials = $4, max_age = $5, updated_at = $6
			RETURNING id, created_at
		`
		return r.db.QueryRowContext(ctx, query,
			policy.AllowedOrigins, policy.AllowedMethods, policy.AllowedHeaders,
			policy.AllowCredentials, policy.MaxAge, now,
		).Scan(&policy.ID, &policy.CreatedAt)
	}

	query = `
		INSERT INTO cors_policies (project_id, allowed_origins, allowed_methods, allowed_headers,
			allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (project_id) DO UPDATE SET
			allowed_origins = $2, allowed_methods = $3, allowed_headers = $4,
			allow_credentials = $5, max_age = $6, updated_at = $7
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		policy.ProjectID, policy.AllowedOrigins, policy.AllowedMethods, policy.AllowedHeaders,
		policy.AllowCredentials, policy.MaxAge, now,
	).Scan(&policy.ID, &policy.CreatedAt)
}

// DeleteByProjectID removes a project's policy so it falls back to the global default
func (r *CORSPolicyRepository) DeleteByProjectID(ctx context.Context, projectID int64) error {
	query := `DELETE FROM cors_policies WHERE project_id = $1`
	_, err := r.db.ExecContext(ctx, query, projectID)
	return err
}

// DeleteGlobal removes the global default row so resolution falls back to the
// process configuration
func (r *CORSPolicyRepository) DeleteGlobal(ctx context.Context) error {
	query := `DELETE FROM cors_policies WHERE project_id IS NULL`
	_, err := r.db.ExecContext(ctx, query)
	return err
}
