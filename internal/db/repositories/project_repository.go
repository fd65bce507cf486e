// project_repository.go implements ProjectRepository, providing database queries for
// tenant lookup by numeric ID or slug, creation, and lifecycle status changes.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/db/models"
)

// ProjectRepository handles project database operations
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project and fills in its generated ID
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusActive
	}

	query := `
		INSERT INTO projects (slug, name, description, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		project.Slug, project.Name, project.Description,
		project.Status, project.OwnerID, project.CreatedAt, project.UpdatedAt,
	).Scan(&project.ID)
}

// GetByID retrieves a project by its numeric ID
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	query := `SELECT * FROM projects WHERE id = $1`
	err := r.db.GetContext(ctx, &project, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetBySlug retrieves a project by its slug
func (r *ProjectRepository) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var project models.Project
	query := `SELECT * FROM projects WHERE slug = $1`
	err := r.db.GetContext(ctx, &project, query, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// List retrieves all projects, newest first
func (r *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	query := `SELECT * FROM projects ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &projects, query)
	return projects, err
}

// Update updates a project's mutable fields
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET slug = $2, name = $3, description = $4, updated_at = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.Slug, project.Name, project.Description, time.Now(),
	)
	return err
}

// UpdateStatus sets a project's lifecycle status
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	return err
}

// Delete removes a project. Dependent rows cascade at the database level.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM projects WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
