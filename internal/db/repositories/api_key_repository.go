// api_key_repository.go implements APIKeyRepository, providing database queries for API key
// lookup by prefix, creation, soft revocation, and last-used timestamp updates.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/db/models"
)

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a new API key record. Only the hash of the secret is stored.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	key.CreatedAt = time.Now()

	query := `
		INSERT INTO api_keys (id, project_id, name, key_hash, key_prefix, permissions, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		key.ID, key.ProjectID, key.Name, key.KeyHash, key.KeyPrefix,
		key.Permissions, key.CreatedBy, key.CreatedAt,
	)
	return err
}

// GetByID retrieves an API key by its UUID
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	var key models.APIKey
	query := `SELECT * FROM api_keys WHERE id = $1`
	err := r.db.GetContext(ctx, &key, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// GetByPrefix retrieves all keys sharing a plaintext prefix, revoked included.
// Validation needs the revoked rows too so a revoked key can be reported as
// revoked rather than unknown.
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, keyPrefix string) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	query := `
		SELECT * FROM api_keys
		WHERE key_prefix = $1
		ORDER BY created_at DESC
	`
	err := r.db.SelectContext(ctx, &keys, query, keyPrefix)
	return keys, err
}

// ListByProject retrieves all keys for a project, newest first
func (r *APIKeyRepository) ListByProject(ctx context.Context, projectID int64) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	query := `SELECT * FROM api_keys WHERE project_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &keys, query, projectID)
	return keys, err
}

// Update updates a key's name and permissions
func (r *APIKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	query := `UPDATE api_keys SET name = $2, permissions = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, key.ID, key.Name, key.Permissions)
	return err
}

// Revoke soft-revokes a key. The row is kept so later uses of the key can be
// distinguished from uses of a key that never existed.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id, time.Now())
	return err
}

// UpdateLastUsed updates the last_used_at timestamp for a key
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, time.Now())
	return err
}
