// cors.go applies the effective CORS policy to every response. The policy is
// resolved per-project through the cors.Store; requests without a project
// context (the admin plane) use the global policy. Headers are written before
// the handler runs so error responses carry them too, and preflights are
// answered directly with 204.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/cors"
)

// CORSDecisionKey holds the cors.Decision computed for the request
const CORSDecisionKey = "cors_decision"

// CORS resolves and applies the effective CORS policy. Register it after
// ResolveProject on project routes and before any credential check, so a
// rejected credential still produces a response the browser will surface.
func CORS(store *cors.Store, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions &&
			c.GetHeader("Access-Control-Request-Method") != ""

		// Caches must not serve one origin's response to another.
		c.Writer.Header().Add("Vary", "Origin")

		if origin == "" {
			// Same-origin or non-browser request; nothing to decide.
			if preflight {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		var projectID *int64
		if project := GetProject(c); project != nil {
			projectID = &project.ID
		}

		decision, err := store.Resolve(c.Request.Context(), projectID, origin)
		if err != nil {
			// Fail closed: no allow headers, but the request itself proceeds
			// so non-browser callers are unaffected by a policy read failure.
			logger.Error("cors policy resolution failed", "error", err)
			if preflight {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		c.Set(CORSDecisionKey, decision)
		applyDecision(c, decision)

		if preflight {
			if decision.Allowed {
				c.Header("Access-Control-Allow-Methods", strings.Join(decision.AllowMethods, ", "))
				c.Header("Access-Control-Allow-Headers", strings.Join(decision.AllowHeaders, ", "))
				if decision.MaxAge > 0 {
					c.Header("Access-Control-Max-Age", strconv.Itoa(decision.MaxAge))
				}
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// applyDecision writes the simple-request headers. The allow-origin value is
// always the exact request origin, never a wildcard.
func applyDecision(c *gin.Context, decision cors.Decision) {
	if !decision.Allowed {
		return
	}
	c.Header("Access-Control-Allow-Origin", decision.AllowOrigin)
	if decision.AllowCredentials {
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	c.Header("Access-Control-Expose-Headers", RequestIDHeader)
}
