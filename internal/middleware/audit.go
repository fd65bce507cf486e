// audit.go records admin-plane mutations and authorization failures to the
// audit trail. Writes are asynchronous so the audit path never adds latency to
// the request, and entries never contain credentials.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/audit"
	"github.com/corebase/corebase/internal/auth"
	"github.com/corebase/corebase/internal/config"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/safego"
)

// Audit records the request outcome after the handler chain completes. By
// default only write operations and failed requests are persisted; the audit
// config can widen that to reads. A non-nil shipper additionally forwards each
// entry to its external destinations.
func Audit(auditRepo *repositories.AuditRepository, auditCfg config.AuditConfig, shipper audit.Shipper, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		c.Next()

		if !auditCfg.Enabled || c.Request.Method == "OPTIONS" {
			return
		}

		isRead := c.Request.Method == "GET" || c.Request.Method == "HEAD"
		isFailed := c.Writer.Status() >= 400

		if isFailed && !auditCfg.LogFailedRequests {
			return
		}
		// Failed reads are still recorded: a rejected credential on a GET
		// route is an auth failure, not a read.
		if isRead && !isFailed && !auditCfg.LogReadOperations {
			return
		}

		entry := buildEntry(c)

		// Fire-and-forget: a lost audit row is preferable to a blocked
		// response. The timeout bounds the goroutine if the DB stalls.
		safego.Go("audit-write", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := auditRepo.Create(ctx, entry); err != nil {
				logger.Error("audit write failed", "action", entry.Action, "error", err)
			}
			if shipper != nil {
				if err := shipper.Ship(ctx, entry); err != nil {
					logger.Error("audit ship failed", "action", entry.Action, "error", err)
				}
			}
		})
	}
}

func buildEntry(c *gin.Context) *models.AuditLog {
	entry := &models.AuditLog{
		ActorKind:  models.ActorKindAnon,
		Action:     c.Request.Method + " " + routeTemplate(c),
		Target:     c.Request.URL.Path,
		StatusCode: c.Writer.Status(),
		ClientIP:   c.ClientIP(),
		CreatedAt:  time.Now(),
	}

	if id, ok := c.Get(RequestIDKey); ok {
		entry.RequestID, _ = id.(string)
	}
	if project := GetProject(c); project != nil {
		entry.ProjectID = &project.ID
	}
	if ac := GetAuthContext(c); ac != nil {
		switch ac.Identity.Kind {
		case auth.IdentityAdmin:
			entry.ActorKind = models.ActorKindAdmin
			entry.ActorID = ac.Identity.UserID
		case auth.IdentityAPIKey:
			entry.ActorKind = models.ActorKindAPIKey
			entry.ActorID = ac.Identity.KeyID
		}
	}

	return entry
}

// routeTemplate returns the matched route pattern rather than the raw URL so
// audit actions aggregate by endpoint, not by parameter value.
func routeTemplate(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
