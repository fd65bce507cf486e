// Package oauth implements the repository authorization broker. It walks a
// repository through Unauthorized -> StateIssued -> CallbackReceived ->
// Authorized, storing the access token sealed with AES-256-GCM, and drops
// back to Unauthorized when an access probe proves the token dead. States are
// storage-backed, TTL-bound, and single-use, so the flow survives restarts
// and multiple process instances.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/corebase/corebase/internal/crypto"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/telemetry"
)

// StateTTL bounds how long an issued state may wait for its callback
const StateTTL = 10 * time.Minute

// Storage is the persistence surface the broker drives
type Storage interface {
	GetRepository(ctx context.Context, id int64) (*models.Repository, error)
	CreateState(ctx context.Context, state *models.OAuthState) error
	ConsumeState(ctx context.Context, state string) (*models.OAuthState, error)
	SaveAuthorization(ctx context.Context, auth *models.RepositoryAuthorization) error
	GetAuthorization(ctx context.Context, repositoryID int64) (*models.RepositoryAuthorization, error)
	DeleteAuthorization(ctx context.Context, repositoryID int64) error
}

// AccessStatus is the result of an access probe.
type AccessStatus struct {
	Authorized bool `json:"authorized"`
	// FallbackSourced marks a result obtained with the process-wide fallback
	// token rather than a repository-specific authorization. Callers surface
	// this so the user knows to authorize properly.
	FallbackSourced bool       `json:"fallback_sourced"`
	AuthorizedBy    *string    `json:"authorized_by,omitempty"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	Scopes          string     `json:"scopes,omitempty"`
}

// Broker manages per-repository GitHub authorizations.
type Broker struct {
	storage       Storage
	client        GitHubClient
	cipher        *crypto.TokenCipher
	fallbackToken string
	logger        *slog.Logger
}

// NewBroker creates a Broker. fallbackToken may be empty; when set it is used
// for repositories that have no authorization of their own.
func NewBroker(storage Storage, client GitHubClient, cipher *crypto.TokenCipher, fallbackToken string, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		storage:       storage,
		client:        client,
		cipher:        cipher,
		fallbackToken: fallbackToken,
		logger:        logger,
	}
}

// Authorize issues a single-use state for a repository and returns the
// provider redirect URL the user's browser should follow.
func (b *Broker) Authorize(ctx context.Context, repositoryID int64, userID string) (string, error) {
	repo, err := b.storage.GetRepository(ctx, repositoryID)
	if err != nil {
		return "", err
	}
	if repo == nil {
		return "", ErrRepositoryNotFound
	}

	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}

	now := time.Now()
	record := &models.OAuthState{
		State:        state,
		RepositoryID: repositoryID,
		UserID:       userID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(StateTTL),
	}
	if err := b.storage.CreateState(ctx, record); err != nil {
		return "", fmt.Errorf("oauth: persist state: %w", err)
	}

	b.logger.Info("oauth state issued",
		"repository_id", repositoryID,
		"user_id", userID,
		"expires_at", record.ExpiresAt)

	return b.client.AuthCodeURL(state), nil
}

// HandleCallback consumes the state, exchanges the code, and persists the
// sealed token on the repository's authorization record. A replayed or
// expired state fails with ErrStateInvalidOrExpired.
func (b *Broker) HandleCallback(ctx context.Context, code, state string) (*models.Repository, error) {
	record, err := b.storage.ConsumeState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("oauth: consume state: %w", err)
	}
	if record == nil || record.IsExpired() {
		telemetry.OAuthExchangesTotal.WithLabelValues("state_invalid").Inc()
		return nil, ErrStateInvalidOrExpired
	}

	repo, err := b.storage.GetRepository(ctx, record.RepositoryID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, ErrRepositoryNotFound
	}

	token, err := b.client.Exchange(ctx, code)
	if err != nil {
		telemetry.OAuthExchangesTotal.WithLabelValues("exchange_failed").Inc()
		return nil, err
	}

	sealed, err := b.cipher.Seal(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("oauth: seal token: %w", err)
	}

	auth := &models.RepositoryAuthorization{
		RepositoryID:         repo.ID,
		AccessTokenEncrypted: sealed,
		TokenScopes:          token.Scopes,
		AuthorizedBy:         &record.UserID,
	}
	if err := b.storage.SaveAuthorization(ctx, auth); err != nil {
		return nil, fmt.Errorf("oauth: persist authorization: %w", err)
	}

	telemetry.OAuthExchangesTotal.WithLabelValues("ok").Inc()
	b.logger.Info("repository authorized",
		"repository_id", repo.ID,
		"repository", repo.FullName(),
		"authorized_by", record.UserID,
		"scopes", token.Scopes)

	return repo, nil
}

// SetToken stores a manually supplied access token (a PAT) for the
// repository, in place of the OAuth flow. The token is probed first so a dead
// or mistyped token is rejected instead of persisted.
func (b *Broker) SetToken(ctx context.Context, repositoryID int64, token, userID string) (*AccessStatus, error) {
	repo, err := b.storage.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, ErrRepositoryNotFound
	}

	result, err := b.client.Probe(ctx, token, repo.Owner, repo.Name)
	if err != nil {
		if isUnauthorized(err) {
			telemetry.OAuthProbesTotal.WithLabelValues("unauthorized", "manual").Inc()
			return nil, ErrUnauthorized
		}
		telemetry.OAuthProbesTotal.WithLabelValues("upstream_error", "manual").Inc()
		return nil, err
	}

	sealed, err := b.cipher.Seal(token)
	if err != nil {
		return nil, fmt.Errorf("oauth: seal token: %w", err)
	}

	auth := &models.RepositoryAuthorization{
		RepositoryID:         repo.ID,
		AccessTokenEncrypted: sealed,
		TokenScopes:          result.Scopes,
		AuthorizedBy:         &userID,
	}
	if err := b.storage.SaveAuthorization(ctx, auth); err != nil {
		return nil, fmt.Errorf("oauth: persist authorization: %w", err)
	}

	telemetry.OAuthProbesTotal.WithLabelValues("ok", "manual").Inc()
	b.logger.Info("repository token set manually",
		"repository_id", repo.ID,
		"repository", repo.FullName(),
		"authorized_by", userID,
		"scopes", result.Scopes)

	return &AccessStatus{
		Authorized:   true,
		AuthorizedBy: &userID,
		Scopes:       result.Scopes,
	}, nil
}

// TestAccess probes the repository with its stored token, or with the
// fallback token when no authorization exists. A 401/403 verdict deletes the
// stored authorization and returns ErrUnauthorized; the fallback token is
// never deleted, only reported as rejected.
func (b *Broker) TestAccess(ctx context.Context, repositoryID int64) (*AccessStatus, error) {
	repo, err := b.storage.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, ErrRepositoryNotFound
	}

	auth, err := b.storage.GetAuthorization(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	if auth == nil {
		return b.probeWithFallback(ctx, repo)
	}

	accessToken, err := b.cipher.Open(auth.AccessTokenEncrypted)
	if err != nil {
		return nil, fmt.Errorf("oauth: unseal token: %w", err)
	}

	result, err := b.client.Probe(ctx, accessToken, repo.Owner, repo.Name)
	if err != nil {
		if isUnauthorized(err) {
			telemetry.OAuthProbesTotal.WithLabelValues("unauthorized", "repository").Inc()
			if delErr := b.storage.DeleteAuthorization(ctx, repositoryID); delErr != nil {
				b.logger.Error("failed to clear dead authorization",
					"repository_id", repositoryID, "error", delErr)
			}
			b.logger.Warn("stored token rejected, authorization cleared",
				"repository_id", repositoryID,
				"repository", repo.FullName())
			return nil, ErrUnauthorized
		}
		telemetry.OAuthProbesTotal.WithLabelValues("upstream_error", "repository").Inc()
		return nil, err
	}

	telemetry.OAuthProbesTotal.WithLabelValues("ok", "repository").Inc()
	return &AccessStatus{
		Authorized:   true,
		AuthorizedBy: auth.AuthorizedBy,
		AuthorizedAt: &auth.AuthorizedAt,
		Scopes:       result.Scopes,
	}, nil
}

func (b *Broker) probeWithFallback(ctx context.Context, repo *models.Repository) (*AccessStatus, error) {
	if b.fallbackToken == "" {
		return nil, ErrNoAuthorization
	}

	result, err := b.client.Probe(ctx, b.fallbackToken, repo.Owner, repo.Name)
	if err != nil {
		if isUnauthorized(err) {
			telemetry.OAuthProbesTotal.WithLabelValues("unauthorized", "fallback").Inc()
			return nil, ErrUnauthorized
		}
		telemetry.OAuthProbesTotal.WithLabelValues("upstream_error", "fallback").Inc()
		return nil, err
	}

	telemetry.OAuthProbesTotal.WithLabelValues("ok", "fallback").Inc()
	return &AccessStatus{
		Authorized:      true,
		FallbackSourced: true,
		Scopes:          result.Scopes,
	}, nil
}

// generateState returns a 32-byte random value, URL-safe encoded
func generateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
