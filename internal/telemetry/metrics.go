// Package telemetry provides application-level observability for Corebase.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<CB_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text
// exposition format and is intended to be scraped every 15–60 seconds.  It is
// NOT served by the Gin router, so tenant CORS and auth rules never apply to it.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Authorization failure counters by error kind
//   - CORS decision counters (allowed / denied / fallback-to-global)
//   - OAuth exchange and access-probe counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/p/:project/auth/whoami)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as project slugs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authorization metrics.
//
// AuthFailuresTotal is labelled by the error kind the request authorizer
// produced (project_not_found, credential_missing, credential_invalid,
// credential_expired, credential_revoked, cross_tenant_key, insufficient_role).
// A spike in cross_tenant_key is a strong signal of key leakage between
// tenants and is worth alerting on at any non-zero rate.
var (
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of failed request authorizations, by error kind.",
		},
		[]string{"kind"},
	)

	APIKeyValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_key_validations_total",
			Help: "Total number of API key validation attempts, by outcome (ok, not_found, revoked).",
		},
		[]string{"outcome"},
	)
)

// CORS metrics.
//
// CORSDecisionsTotal is labelled by source (project, global) and outcome
// (allowed, denied). "denied" means no origin pattern matched and the
// response carried no allow-origin header; the request itself still ran.
var CORSDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cors_decisions_total",
		Help: "Total number of CORS policy evaluations, by policy source and outcome.",
	},
	[]string{"source", "outcome"},
)

// OAuth broker metrics.
//
// OAuthExchangesTotal counts authorization-code exchanges by outcome
// (ok, state_invalid, exchange_failed). OAuthProbesTotal counts repository
// access probes by outcome (ok, unauthorized, upstream_error) and token
// source (repository, fallback) so fallback-token usage is visible.
var (
	OAuthExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_exchanges_total",
			Help: "Total number of OAuth authorization-code exchanges, by outcome.",
		},
		[]string{"outcome"},
	)

	OAuthProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_probes_total",
			Help: "Total number of repository access probes, by outcome and token source.",
		},
		[]string{"outcome", "source"},
	)

	OAuthStatesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oauth_states_swept_total",
			Help: "Total number of expired OAuth state records removed by the background sweeper.",
		},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections
// currently held by the sql.DB connection pool.  It is sampled every 30
// seconds by StartDBStatsCollector rather than per-request to avoid the
// overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
