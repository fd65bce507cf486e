package models

import "time"

// Audit actor kinds recorded alongside each entry.
const (
	ActorKindAdmin  = "admin"
	ActorKindAPIKey = "api_key"
	ActorKindAnon   = "anonymous"
)

// AuditLog records one admin mutation or authorization failure. Detail is a
// free-form JSONB blob; secrets are never written to it.
type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	ActorKind  string    `db:"actor_kind" json:"actor_kind"`
	Action     string    `db:"action" json:"action"`
	Target     string    `db:"target" json:"target"`
	ProjectID  *int64    `db:"project_id" json:"project_id,omitempty"`
	StatusCode int       `db:"status_code" json:"status_code"`
	RequestID  string    `db:"request_id" json:"request_id"`
	ClientIP   string    `db:"client_ip" json:"client_ip"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
