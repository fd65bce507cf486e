// audit_repository.go implements AuditRepository, providing database queries for writing
// and retrieving audit log entries with support for filtered, paginated queries.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	ActorID   *string
	ProjectID *int64
	Action    *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO audit_logs (actor_id, actor_kind, action, target, project_id,
			status_code, request_id, client_ip, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		entry.ActorID, entry.ActorKind, entry.Action, entry.Target, entry.ProjectID,
		entry.StatusCode, entry.RequestID, entry.ClientIP, entry.Detail, entry.CreatedAt,
	).Scan(&entry.ID)
}

// List retrieves audit logs with optional filters and pagination
func (r *AuditRepository) List(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	query := `SELECT * FROM audit_logs WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	appendFilter := func(clause string, value interface{}) {
		cond := fmt.Sprintf(clause, paramIndex)
		countQuery += cond
		query += cond
		args = append(args, value)
		paramIndex++
	}

	if filters.ActorID != nil {
		appendFilter(` AND actor_id = $%d`, *filters.ActorID)
	}
	if filters.ProjectID != nil {
		appendFilter(` AND project_id = $%d`, *filters.ProjectID)
	}
	if filters.Action != nil {
		appendFilter(` AND action = $%d`, *filters.Action)
	}
	if filters.StartDate != nil {
		appendFilter(` AND created_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		appendFilter(` AND created_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	entries := make([]*models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
