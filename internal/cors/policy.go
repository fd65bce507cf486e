// Package cors - policy.go implements the policy store: a two-step lookup
// (project policy, else global policy) over the database with a short TTL
// cache that admin-plane writes invalidate immediately.
package cors

import (
	"context"
	"sync"
	"time"

	"github.com/corebase/corebase/internal/config"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/telemetry"
)

// Decision sources
const (
	SourceProject = "project"
	SourceGlobal  = "global"
)

// Default allow-methods when a policy leaves the list empty
var defaultMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// PolicyProvider is the storage surface the store reads policies through
type PolicyProvider interface {
	GetByProjectID(ctx context.Context, projectID int64) (*models.CORSPolicy, error)
	GetGlobal(ctx context.Context) (*models.CORSPolicy, error)
}

// Decision is the computed CORS outcome for one request. An empty AllowOrigin
// means the allow-origin header is omitted and the browser blocks the read;
// the request itself still proceeds for non-browser callers.
type Decision struct {
	AllowOrigin      string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
	Source           string
	Allowed          bool
}

type cacheEntry struct {
	policy  *models.CORSPolicy
	fetched time.Time
}

// cache key used for the global policy row
const globalCacheKey = int64(-1)

// Store resolves effective CORS policies with per-project fallback to the
// global row, and falls back further to the configured defaults when no
// global row exists yet.
type Store struct {
	provider PolicyProvider
	ttl      time.Duration

	mu       sync.RWMutex
	cache    map[int64]cacheEntry
	fallback config.CORSConfig
}

// NewStore creates a policy store. The fallback config supplies the effective
// global policy until an explicit global row is written.
func NewStore(provider PolicyProvider, fallback config.CORSConfig) *Store {
	ttl := fallback.PolicyCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{
		provider: provider,
		ttl:      ttl,
		cache:    make(map[int64]cacheEntry),
		fallback: fallback,
	}
}

// SetFallback replaces the configured global defaults. Used by config hot
// reload; takes effect on the next resolution.
func (s *Store) SetFallback(fallback config.CORSConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = fallback
}

// Invalidate drops the cached policy for a project so the next request
// re-reads storage. Call after any admin-plane policy write.
func (s *Store) Invalidate(projectID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, projectID)
}

// InvalidateGlobal drops the cached global policy
func (s *Store) InvalidateGlobal() {
	s.Invalidate(globalCacheKey)
}

// Resolve computes the effective decision for a request origin. projectID nil
// means no project context (admin plane); resolution then uses the global
// policy directly.
func (s *Store) Resolve(ctx context.Context, projectID *int64, requestOrigin string) (Decision, error) {
	policy, source, err := s.lookup(ctx, projectID)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		AllowMethods:     policy.AllowedMethods,
		AllowHeaders:     ExpandHeaders(policy.AllowedHeaders),
		AllowCredentials: policy.AllowCredentials,
		MaxAge:           policy.MaxAge,
		Source:           source,
	}
	if len(decision.AllowMethods) == 0 {
		decision.AllowMethods = defaultMethods
	}

	if requestOrigin != "" && MatchesAny(policy.AllowedOrigins, requestOrigin) {
		// Always echo the exact origin. With allow_credentials this is
		// mandatory; without it the echo is still the safest form.
		decision.AllowOrigin = requestOrigin
		decision.Allowed = true
		telemetry.CORSDecisionsTotal.WithLabelValues(source, "allowed").Inc()
	} else {
		telemetry.CORSDecisionsTotal.WithLabelValues(source, "denied").Inc()
	}

	return decision, nil
}

// lookup finds the governing policy: project row, else global row, else the
// configured fallback rendered as a policy.
func (s *Store) lookup(ctx context.Context, projectID *int64) (*models.CORSPolicy, string, error) {
	if projectID != nil {
		policy, err := s.cachedPolicy(ctx, *projectID, func() (*models.CORSPolicy, error) {
			return s.provider.GetByProjectID(ctx, *projectID)
		})
		if err != nil {
			return nil, "", err
		}
		if policy != nil {
			return policy, SourceProject, nil
		}
	}

	policy, err := s.cachedPolicy(ctx, globalCacheKey, func() (*models.CORSPolicy, error) {
		return s.provider.GetGlobal(ctx)
	})
	if err != nil {
		return nil, "", err
	}
	if policy != nil {
		return policy, SourceGlobal, nil
	}

	s.mu.RLock()
	fb := s.fallback
	s.mu.RUnlock()

	return &models.CORSPolicy{
		AllowedOrigins:   models.StringList(fb.AllowedOrigins),
		AllowedMethods:   models.StringList(fb.AllowedMethods),
		AllowedHeaders:   models.StringList(fb.AllowedHeaders),
		AllowCredentials: fb.AllowCredentials,
		MaxAge:           fb.MaxAge,
	}, SourceGlobal, nil
}

// cachedPolicy returns the cached row for key when fresh, otherwise fetches
// and caches it. A nil policy (no row) is cached too, so missing project
// policies don't hit storage on every request.
func (s *Store) cachedPolicy(ctx context.Context, key int64, fetch func() (*models.CORSPolicy, error)) (*models.CORSPolicy, error) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetched) < s.ttl {
		return entry.policy, nil
	}

	policy, err := fetch()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{policy: policy, fetched: time.Now()}
	s.mu.Unlock()

	return policy, nil
}
