// metrics.go records request-level Prometheus metrics for every request that
// passes through the router.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/telemetry"
)

// Metrics records http_requests_total and http_request_duration_seconds for
// each request. The path label uses the matched route template (e.g.
// /v1/projects/:project/keys) rather than the raw URL; requests matching no
// route use "<no-route>" so unhandled paths cannot inflate label cardinality.
//
// Register after gin.Recovery() so panics still produce a labelled 500.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
