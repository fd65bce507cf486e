// admin_user_repository.go implements AdminUserRepository, providing database queries
// for administrator accounts on the admin plane.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/db/models"
)

// AdminUserRepository handles admin user database operations
type AdminUserRepository struct {
	db *sqlx.DB
}

// NewAdminUserRepository creates a new AdminUserRepository
func NewAdminUserRepository(db *sqlx.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// Create inserts a new admin user
func (r *AdminUserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleAdmin
	}

	query := `
		INSERT INTO admin_users (id, email, name, password_hash, role, oidc_sub, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		user.OIDCSub, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// GetByID retrieves an admin user by UUID
func (r *AdminUserRepository) GetByID(ctx context.Context, id string) (*models.AdminUser, error) {
	var user models.AdminUser
	query := `SELECT * FROM admin_users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves an admin user by email
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var user models.AdminUser
	query := `SELECT * FROM admin_users WHERE email = $1`
	err := r.db.GetContext(ctx, &user, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByOIDCSub retrieves an admin user by their identity provider subject
func (r *AdminUserRepository) GetByOIDCSub(ctx context.Context, sub string) (*models.AdminUser, error) {
	var user models.AdminUser
	query := `SELECT * FROM admin_users WHERE oidc_sub = $1`
	err := r.db.GetContext(ctx, &user, query, sub)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an admin user's profile fields and role
func (r *AdminUserRepository) Update(ctx context.Context, user *models.AdminUser) error {
	query := `
		UPDATE admin_users
		SET email = $2, name = $3, role = $4, oidc_sub = $5, updated_at = $6
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Role, user.OIDCSub, time.Now(),
	)
	return err
}

// UpdatePasswordHash replaces a user's password hash
func (r *AdminUserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := `UPDATE admin_users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, hash, time.Now())
	return err
}
