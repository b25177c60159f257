package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	httpH "github.com/dpnam2112/codemate-backend/internal/http/handlers"
	"github.com/dpnam2112/codemate-backend/internal/observability"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{
		Metrics:       observability.NewMetrics(prometheus.NewRegistry()),
		HealthHandler: httpH.NewHealthHandler(),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "codemate_http_request_duration_seconds") {
		t.Fatalf("metrics = %d, body missing http histogram", rec.Code)
	}
}

func TestRouterSkipsUnconfiguredRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
