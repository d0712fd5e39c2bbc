package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pixelflow/component"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/", h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rr.Code, body
}

func checker(states ...component.HealthStatus) HealthChecker {
	return func(context.Context) []component.Health {
		out := make([]component.Health, len(states))
		for i, s := range states {
			out[i] = component.Health{Name: string(s), Status: s}
		}
		return out
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checker", nil, http.StatusOK, "healthy"},
		{"all healthy", checker(component.StatusHealthy), http.StatusOK, "healthy"},
		{"degraded", checker(component.StatusHealthy, component.StatusDegraded), http.StatusOK, "degraded"},
		{"unhealthy", checker(component.StatusDegraded, component.StatusUnhealthy), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, Health("pixelflow", tt.checker))
			if code != tt.wantCode || body["status"] != tt.wantStatus {
				t.Errorf("got %d %v, want %d %s", code, body["status"], tt.wantCode, tt.wantStatus)
			}
			if body["service"] != "pixelflow" {
				t.Errorf("unexpected service %v", body["service"])
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	if code, body := serve(t, Readiness("pixelflow", checker(component.StatusDegraded))); code != http.StatusOK || body["status"] != "ready" {
		t.Errorf("degraded components are still ready, got %d %v", code, body)
	}
	if code, body := serve(t, Readiness("pixelflow", checker(component.StatusUnhealthy))); code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Errorf("unexpected %d %v", code, body)
	}
}

func TestLivenessVersionMetrics(t *testing.T) {
	if code, body := serve(t, Liveness("pixelflow")); code != http.StatusOK || body["status"] != "alive" || body["uptime"] == nil {
		t.Errorf("unexpected liveness %d %v", code, body)
	}
	if _, body := serve(t, Version("pixelflow")); body["version"] == "" || body["uptime"] == nil {
		t.Errorf("unexpected version body %v", body)
	}

	_, body := serve(t, Metrics(nil))
	if body["goroutines"] == nil || body["memory"] == nil {
		t.Errorf("unexpected metrics body %v", body)
	}
	if _, ok := body["service"]; ok {
		t.Error("service stats should be absent without a StatsFunc")
	}

	_, body = serve(t, Metrics(func(context.Context) map[string]any { return map[string]any{"runs": 2} }))
	service, ok := body["service"].(map[string]any)
	if !ok || service["runs"] != float64(2) {
		t.Errorf("unexpected service stats %v", body["service"])
	}
}
