// github_repository.go implements GitHubRepository, providing database queries for
// project-linked GitHub repositories, their broker-managed authorizations, and the
// single-use OAuth state records.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/db/models"
)

// GitHubRepository handles database operations for the GitHub integration
type GitHubRepository struct {
	db *sqlx.DB
}

// NewGitHubRepository creates a new GitHubRepository
func NewGitHubRepository(db *sqlx.DB) *GitHubRepository {
	return &GitHubRepository{db: db}
}

// Repository management

// CreateRepository links a GitHub repository to a project
func (r *GitHubRepository) CreateRepository(ctx context.Context, repo *models.Repository) error {
	now := time.Now()
	repo.CreatedAt = now
	repo.UpdatedAt = now
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}

	query := `
		INSERT INTO repositories (project_id, owner, name, default_branch, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		repo.ProjectID, repo.Owner, repo.Name, repo.DefaultBranch, repo.CreatedAt, repo.UpdatedAt,
	).Scan(&repo.ID)
}

// GetRepository retrieves a repository by ID
func (r *GitHubRepository) GetRepository(ctx context.Context, id int64) (*models.Repository, error) {
	var repo models.Repository
	query := `SELECT * FROM repositories WHERE id = $1`
	err := r.db.GetContext(ctx, &repo, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// ListRepositoriesByProject retrieves all repositories linked to a project
func (r *GitHubRepository) ListRepositoriesByProject(ctx context.Context, projectID int64) ([]*models.Repository, error) {
	var repos []*models.Repository
	query := `SELECT * FROM repositories WHERE project_id = $1 ORDER BY owner, name`
	err := r.db.SelectContext(ctx, &repos, query, projectID)
	return repos, err
}

// DeleteRepository unlinks a repository. The authorization row cascades.
func (r *GitHubRepository) DeleteRepository(ctx context.Context, id int64) error {
	query := `DELETE FROM repositories WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Authorization management

// SaveAuthorization creates or replaces the authorization for a repository.
// The token arrives already sealed; this layer never sees plaintext.
func (r *GitHubRepository) SaveAuthorization(ctx context.Context, auth *models.RepositoryAuthorization) error {
	auth.AuthorizedAt = time.Now()
	query := `
		INSERT INTO repository_authorizations (
			repository_id, access_token_encrypted, token_scopes, token_expires_at,
			authorized_by, authorized_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (repository_id) DO UPDATE SET
			access_token_encrypted = $2, token_scopes = $3, token_expires_at = $4,
			authorized_by = $5, authorized_at = $6
	`
	_, err := r.db.ExecContext(ctx, query,
		auth.RepositoryID, auth.AccessTokenEncrypted, auth.TokenScopes,
		auth.TokenExpiresAt, auth.AuthorizedBy, auth.AuthorizedAt,
	)
	return err
}

// GetAuthorization retrieves the authorization for a repository
func (r *GitHubRepository) GetAuthorization(ctx context.Context, repositoryID int64) (*models.RepositoryAuthorization, error) {
	var auth models.RepositoryAuthorization
	query := `SELECT * FROM repository_authorizations WHERE repository_id = $1`
	err := r.db.GetContext(ctx, &auth, query, repositoryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// DeleteAuthorization drops a repository's stored token. Used when an access
// probe proves the token dead.
func (r *GitHubRepository) DeleteAuthorization(ctx context.Context, repositoryID int64) error {
	query := `DELETE FROM repository_authorizations WHERE repository_id = $1`
	_, err := r.db.ExecContext(ctx, query, repositoryID)
	return err
}

// OAuth state management

// CreateState stores a new single-use state record
func (r *GitHubRepository) CreateState(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, repository_id, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		state.State, state.RepositoryID, state.UserID, state.IssuedAt, state.ExpiresAt,
	)
	return err
}

// ConsumeState atomically deletes and returns a state record. A second call
// with the same value finds nothing, which is what makes replay fail.
func (r *GitHubRepository) ConsumeState(ctx context.Context, state string) (*models.OAuthState, error) {
	var record models.OAuthState
	query := `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, repository_id, user_id, issued_at, expires_at
	`
	err := r.db.GetContext(ctx, &record, query, state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteExpiredStates removes states past their TTL and returns how many went
func (r *GitHubRepository) DeleteExpiredStates(ctx context.Context) (int64, error) {
	query := `DELETE FROM oauth_states WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
