package models

import "time"

// Project status values. Anything other than active resolves as not-found
// to non-admin callers.
const (
	ProjectStatusActive    = "active"
	ProjectStatusSuspended = "suspended"
)

// Project represents a tenant. The numeric ID is immutable and is the
// canonical internal identifier; the slug is unique but may change.
type Project struct {
	ID          int64     `db:"id" json:"id"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	OwnerID     *string   `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the project resolves for non-admin callers.
func (p *Project) IsActive() bool {
	return p.Status == ProjectStatusActive
}
