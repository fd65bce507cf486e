package models

import (
	"fmt"
	"time"
)

// Repository is a GitHub repository linked to a project. Token state lives
// in the companion RepositoryAuthorization row so replacing an authorization
// never touches the repository record itself.
type Repository struct {
	ID            int64     `db:"id" json:"id"`
	ProjectID     int64     `db:"project_id" json:"project_id"`
	Owner         string    `db:"owner" json:"owner"`
	Name          string    `db:"name" json:"name"`
	DefaultBranch string    `db:"default_branch" json:"default_branch"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns the owner/name form used by the GitHub API.
func (r *Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// RepositoryAuthorization holds the broker-managed token for one repository.
// The access token is AES-256-GCM sealed before it reaches this struct's
// persistence path; the plaintext never lands in the database.
type RepositoryAuthorization struct {
	RepositoryID         int64      `db:"repository_id" json:"repository_id"`
	AccessTokenEncrypted string     `db:"access_token_encrypted" json:"-"`
	TokenScopes          string     `db:"token_scopes" json:"token_scopes"`
	TokenExpiresAt       *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	AuthorizedBy         *string    `db:"authorized_by" json:"authorized_by,omitempty"`
	AuthorizedAt         time.Time  `db:"authorized_at" json:"authorized_at"`
}
