// Package api wires the HTTP surface together: repositories, the CORS
// decision store, the OAuth broker, middleware chains, and route groups for
// the admin plane and the project-scoped data plane.
package api

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/corebase/corebase/internal/api/admin"
	"github.com/corebase/corebase/internal/api/data"
	"github.com/corebase/corebase/internal/audit"
	"github.com/corebase/corebase/internal/config"
	"github.com/corebase/corebase/internal/cors"
	"github.com/corebase/corebase/internal/crypto"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/jobs"
	"github.com/corebase/corebase/internal/middleware"
	"github.com/corebase/corebase/internal/oauth"
	"github.com/corebase/corebase/internal/safego"
	"github.com/corebase/corebase/internal/telemetry"
	"github.com/corebase/corebase/internal/tenant"
)

// BackgroundServices holds references to background goroutines and resources
// that must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	sweeper       *jobs.OAuthStateSweeper
	sweeperCancel context.CancelFunc
	limiter       middleware.Limiter
	authLimiter   middleware.Limiter
	auditShipper  audit.Shipper
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests drain first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sweeper != nil {
		bg.sweeper.Stop()
	}
	if bg.sweeperCancel != nil {
		bg.sweeperCancel()
	}
	if ml, ok := bg.limiter.(*middleware.MemoryLimiter); ok {
		ml.Stop()
	}
	if ml, ok := bg.authLimiter.(*middleware.MemoryLimiter); ok {
		ml.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("audit shipper close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	logger := slog.Default()

	// Repositories share one sqlx handle over the raw connection pool.
	sqlxDB := sqlx.NewDb(db, "postgres")
	projectRepo := repositories.NewProjectRepository(sqlxDB)
	corsPolicyRepo := repositories.NewCORSPolicyRepository(sqlxDB)
	apiKeyRepo := repositories.NewAPIKeyRepository(sqlxDB)
	adminUserRepo := repositories.NewAdminUserRepository(sqlxDB)
	githubRepo := repositories.NewGitHubRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(sqlxDB)

	resolver := tenant.NewResolver(projectRepo)

	// CORS decisions come from the store; config-file edits to the global
	// fallback take effect without a restart.
	corsStore := cors.NewStore(corsPolicyRepo, cfg.CORS)
	cfg.WatchGlobalCORS(func(next config.CORSConfig) {
		corsStore.SetFallback(next)
		corsStore.InvalidateGlobal()
		slog.Info("global CORS fallback reloaded from config file")
	})

	// OAuth tokens are sealed with AES-256-GCM before they touch the
	// database. The key comes from the environment only.
	cipher := mustTokenCipher()
	ghClient := oauth.NewClient(cfg.GitHub)
	broker := oauth.NewBroker(githubRepo, ghClient, cipher, cfg.GitHub.FallbackToken, logger)

	// Expired single-use OAuth states are swept in the background.
	sweeper := jobs.NewOAuthStateSweeper(githubRepo, logger, 5*time.Minute)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	safego.Go("oauth-state-sweeper", func() { sweeper.Start(sweeperCtx) })

	limiter := middleware.NewLimiter(*cfg)
	authLimiter := middleware.NewAuthLimiter(*cfg)

	// Optional external audit destinations (SIEM webhook, file).
	var auditShipper audit.Shipper
	if len(cfg.Audit.Shippers) > 0 {
		ms, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			log.Fatalf("Failed to initialize audit shippers: %v", err)
		}
		auditShipper = ms
	}

	telemetry.StartDBStatsCollector(db)

	// Global middleware. CORS is attached per-group instead: data-plane
	// routes need the project resolved before the policy lookup.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))

	// Prometheus metrics are served on a dedicated port by cmd/server, not
	// through this router, so the scrape path stays off the public ingress.
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db))
	router.GET("/version", versionHandler())

	// Handlers
	authHandlers, err := admin.NewAuthHandlers(cfg, adminUserRepo, logger)
	if err != nil {
		log.Fatalf("Failed to initialize auth handlers: %v", err)
	}
	projectHandlers := admin.NewProjectHandlers(projectRepo, resolver, logger)
	corsHandlers := admin.NewCORSHandlers(corsPolicyRepo, corsStore, projectHandlers, logger)
	apiKeyHandlers := admin.NewAPIKeyHandlers(apiKeyRepo, projectHandlers, cfg, logger)
	repoHandlers := admin.NewRepoHandlers(githubRepo, broker, projectHandlers, logger)
	auditHandlers := admin.NewAuditHandlers(auditRepo)
	gatewayHandlers := data.NewGatewayHandlers()

	rateLimited := middleware.RateLimit(limiter, cfg.Security.RateLimiting)
	// Credential endpoints get a stricter, separately-keyed bucket.
	authRateLimited := middleware.RateLimitAuth(authLimiter, cfg.Security.RateLimiting)

	// Admin plane. CORS here serves the admin console; no project is bound,
	// so the global policy chain governs.
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.CORS(corsStore, logger))
	// Preflights for any admin-plane path. OPTIONS has its own method tree,
	// so the wildcard cannot collide with the registered routes.
	apiV1.OPTIONS("/*any", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	authGroup := apiV1.Group("/auth")
	authGroup.POST("/login", authRateLimited, authHandlers.Login)
	authGroup.GET("/sso/login", authRateLimited, authHandlers.SSOLogin)
	authGroup.GET("/sso/callback", authRateLimited, authHandlers.SSOCallback)
	authGroup.POST("/refresh", authRateLimited, middleware.RequireAdmin(models.RoleAdmin), authHandlers.Refresh)
	authGroup.GET("/me", rateLimited, middleware.RequireAdmin(models.RoleAdmin), authHandlers.Me)

	// The GitHub callback is hit by a browser redirect; the state carries
	// the authorization context, so no session is required here.
	apiV1.GET("/oauth/github/callback", rateLimited, repoHandlers.Callback)

	adminGroup := apiV1.Group("/admin")
	adminGroup.Use(rateLimited)
	// Audit wraps the auth check so rejected credentials are recorded too.
	adminGroup.Use(middleware.Audit(auditRepo, cfg.Audit, auditShipper, logger))
	adminGroup.Use(middleware.RequireAdmin(models.RoleAdmin))
	{
		adminGroup.GET("/projects", projectHandlers.List)
		adminGroup.POST("/projects", projectHandlers.Create)
		adminGroup.GET("/projects/:project", projectHandlers.Get)
		adminGroup.PUT("/projects/:project", projectHandlers.Update)

		// Destructive tenant operations need the superadmin role.
		adminGroup.DELETE("/projects/:project", middleware.RequireAdmin(models.RoleSuperadmin), projectHandlers.Delete)
		adminGroup.POST("/projects/:project/suspend", middleware.RequireAdmin(models.RoleSuperadmin), projectHandlers.Suspend)
		adminGroup.POST("/projects/:project/reactivate", middleware.RequireAdmin(models.RoleSuperadmin), projectHandlers.Reactivate)

		adminGroup.GET("/cors", corsHandlers.GetGlobalPolicy)
		adminGroup.PUT("/cors", corsHandlers.PutGlobalPolicy)
		adminGroup.DELETE("/cors", corsHandlers.DeleteGlobalPolicy)
		adminGroup.GET("/projects/:project/cors", corsHandlers.GetProjectPolicy)
		adminGroup.PUT("/projects/:project/cors", corsHandlers.PutProjectPolicy)
		adminGroup.DELETE("/projects/:project/cors", corsHandlers.DeleteProjectPolicy)

		adminGroup.POST("/projects/:project/keys", apiKeyHandlers.Create)
		adminGroup.GET("/projects/:project/keys", apiKeyHandlers.List)
		adminGroup.PUT("/projects/:project/keys/:id", apiKeyHandlers.Update)
		adminGroup.DELETE("/projects/:project/keys/:id", apiKeyHandlers.Revoke)

		adminGroup.POST("/projects/:project/repos", repoHandlers.Link)
		adminGroup.GET("/projects/:project/repos", repoHandlers.List)
		adminGroup.DELETE("/projects/:project/repos/:id", repoHandlers.Unlink)
		adminGroup.POST("/projects/:project/repos/:id/authorize", repoHandlers.Authorize)
		adminGroup.PUT("/projects/:project/repos/:id/token", repoHandlers.UpdateToken)
		adminGroup.POST("/projects/:project/repos/:id/test-access", repoHandlers.TestAccess)
		adminGroup.GET("/projects/:project/repos/:id/authorization", repoHandlers.AuthorizationStatus)
		adminGroup.DELETE("/projects/:project/repos/:id/authorization", repoHandlers.RevokeAuthorization)

		adminGroup.GET("/audit", auditHandlers.List)
	}

	// Data plane. Ordering matters: the project must resolve before the
	// CORS lookup, and CORS headers go out before credential validation so
	// a rejected credential still carries them.
	dataV1 := router.Group("/v1/projects/:project")
	dataV1.Use(rateLimited)
	dataV1.Use(middleware.ResolveProject(resolver))
	dataV1.Use(middleware.CORS(corsStore, logger))
	dataV1.OPTIONS("/*any", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	authed := dataV1.Group("")
	authed.Use(middleware.RequireProjectAuth(apiKeyRepo))
	{
		authed.GET("/whoami", gatewayHandlers.WhoAmI)
	}

	bg := &BackgroundServices{
		sweeper:       sweeper,
		sweeperCancel: sweeperCancel,
		limiter:       limiter,
		authLimiter:   authLimiter,
		auditShipper:  auditShipper,
	}

	return router, bg
}

// mustTokenCipher builds the AES-256-GCM cipher from ENCRYPTION_KEY, a
// base64-encoded 32-byte key. The process refuses to start without it;
// running with plaintext tokens at rest is not an option.
func mustTokenCipher() *crypto.TokenCipher {
	encoded := os.Getenv("ENCRYPTION_KEY")
	if encoded == "" {
		log.Fatal("ENCRYPTION_KEY environment variable is required")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Fatalf("ENCRYPTION_KEY is not valid base64: %v", err)
	}
	cipher, err := crypto.NewTokenCipher(key)
	if err != nil {
		log.Fatalf("ENCRYPTION_KEY is unusable: %v", err)
	}
	return cipher
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
