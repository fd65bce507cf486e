package models

import "time"

// OAuthState is a single-use record binding an authorization redirect to its
// callback. Consuming a state deletes the row, so a replayed callback finds
// nothing and fails.
type OAuthState struct {
	State        string    `db:"state" json:"-"`
	RepositoryID int64     `db:"repository_id" json:"repository_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	IssuedAt     time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}

// IsExpired reports whether the state's TTL has elapsed.
func (s *OAuthState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
