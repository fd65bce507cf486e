package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/corebase/corebase/internal/telemetry"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := vec.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func newMetricsRouter() *gin.Engine {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/v1/projects/:project/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	r := newMetricsRouter()

	before := counterValue(t, telemetry.HTTPRequestsTotal, "GET", "/v1/projects/:project/ping", "200")

	for _, path := range []string{"/v1/projects/1/ping", "/v1/projects/acme/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}

	after := counterValue(t, telemetry.HTTPRequestsTotal, "GET", "/v1/projects/:project/ping", "200")
	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2 (both paths share the template label)", after-before)
	}
}

func TestMetrics_UnmatchedRouteUsesPlaceholder(t *testing.T) {
	r := newMetricsRouter()

	before := counterValue(t, telemetry.HTTPRequestsTotal, "GET", "<no-route>", "404")

	req := httptest.NewRequest(http.MethodGet, "/definitely/not/a/route", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	after := counterValue(t, telemetry.HTTPRequestsTotal, "GET", "<no-route>", "404")
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}
