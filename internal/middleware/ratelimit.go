// ratelimit.go enforces per-client request rate limits, returning 429 when the
// configured requests-per-minute threshold is exceeded. With Redis configured
// the limit is shared across process instances via a GCRA limiter; without it
// each instance falls back to an in-process token bucket.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/corebase/corebase/internal/config"
)

// Limiter decides whether one more request from a client key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}

// NewLimiter builds the limiter appropriate for the configuration: Redis-backed
// when an address is set, in-process otherwise.
func NewLimiter(cfg config.Config) Limiter {
	limit := cfg.Security.RateLimiting
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, limit)
	}
	return NewMemoryLimiter(limit)
}

// RedisLimiter shares a rate limit across all server instances.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a distributed limiter over the given Redis client.
func NewRedisLimiter(client *redis.Client, cfg config.RateLimitingConfig) *RedisLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  burst,
			Period: time.Minute,
		},
	}
}

// Allow consumes one token for key. A Redis failure allows the request; the
// limiter protects against abuse, it is not an availability dependency.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	res, err := l.limiter.Allow(ctx, "ratelimit:"+key, l.limit)
	if err != nil {
		return true, 0, err
	}
	return res.Allowed > 0, res.Remaining, nil
}

// memoryEntry tracks the token bucket for a single client.
type memoryEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// MemoryLimiter is a per-process token bucket limiter.
type MemoryLimiter struct {
	cfg     config.RateLimitingConfig
	mu      sync.Mutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
}

// NewMemoryLimiter creates an in-process limiter and starts its cleanup loop.
func NewMemoryLimiter(cfg config.RateLimitingConfig) *MemoryLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	l := &MemoryLimiter{
		cfg:     cfg,
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Stop stops the cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	close(l.stopCh)
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, entry := range l.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Allow consumes one token for key, refilling based on elapsed time.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, exists := l.entries[key]
	if !exists {
		l.entries[key] = &memoryEntry{
			tokens:     float64(l.cfg.Burst) - 1,
			lastUpdate: now,
		}
		return true, l.cfg.Burst - 1, nil
	}

	refill := now.Sub(entry.lastUpdate).Seconds() * float64(l.cfg.RequestsPerMinute) / 60.0
	entry.tokens = minFloat(float64(l.cfg.Burst), entry.tokens+refill)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens), nil
	}
	return false, 0, nil
}

// NewAuthLimiter builds the stricter limiter for credential endpoints. It is
// a separate instance so login attempts draw from their own bucket and the
// general budget cannot be spent down by a credential-guessing client.
func NewAuthLimiter(cfg config.Config) Limiter {
	limit := cfg.Security.RateLimiting.AuthLimit()
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, limit)
	}
	return NewMemoryLimiter(limit)
}

// RateLimit rejects requests over the limit with 429. Buckets are keyed by
// client IP: the limiter runs ahead of credential validation in every chain,
// so no identity exists yet when a request is charged.
func RateLimit(limiter Limiter, cfg config.RateLimitingConfig) gin.HandlerFunc {
	return rateLimit(limiter, cfg, "")
}

// RateLimitAuth is RateLimit with the credential-endpoint budget. Keys carry
// an "auth:" scope so the Redis bucket state never mixes with the general
// limiter's.
func RateLimitAuth(limiter Limiter, cfg config.RateLimitingConfig) gin.HandlerFunc {
	return rateLimit(limiter, cfg.AuthLimit(), "auth:")
}

func rateLimit(limiter Limiter, cfg config.RateLimitingConfig, keyScope string) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		allowed, remaining, err := limiter.Allow(c.Request.Context(), keyScope+rateLimitKey(c))
		if err != nil {
			// Limiter backend failure; let the request through.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
