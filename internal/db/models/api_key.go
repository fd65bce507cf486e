package models

import "time"

// APIKey represents a project-scoped API key. Only the bcrypt hash of the
// secret is stored; KeyPrefix holds the first characters of the plaintext so
// validation can narrow candidates with an indexed lookup, and so listings
// can show a recognisable masked form.
type APIKey struct {
	ID          string     `db:"id" json:"id"`
	ProjectID   int64      `db:"project_id" json:"project_id"`
	Name        string     `db:"name" json:"name"`
	KeyHash     string     `db:"key_hash" json:"-"`
	KeyPrefix   string     `db:"key_prefix" json:"key_prefix"`
	Permissions StringList `db:"permissions" json:"permissions"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// IsRevoked reports whether the key has been soft-revoked. Revocation is a
// marker, never a delete, so the row survives for the audit trail.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// MaskedKey returns the placeholder shown by listings after creation.
// The plaintext secret is only ever returned once, at creation time.
func (k *APIKey) MaskedKey() string {
	return k.KeyPrefix + "…"
}
