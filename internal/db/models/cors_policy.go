package models

import "time"

// CORSPolicy is a per-project CORS policy row. A NULL ProjectID marks the
// global default policy that applies to projects without one of their own.
type CORSPolicy struct {
	ID               int64      `db:"id" json:"id"`
	ProjectID        *int64     `db:"project_id" json:"project_id,omitempty"`
	AllowedOrigins   StringList `db:"allowed_origins" json:"allowed_origins"`
	AllowedMethods   StringList `db:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders   StringList `db:"allowed_headers" json:"allowed_headers"`
	AllowCredentials bool       `db:"allow_credentials" json:"allow_credentials"`
	MaxAge           int        `db:"max_age" json:"max_age"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsGlobal reports whether this row is the global default policy.
func (p *CORSPolicy) IsGlobal() bool {
	return p.ProjectID == nil
}
