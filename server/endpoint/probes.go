package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pixelflow/component"
	"github.com/kbukum/pixelflow/version"
)

// HealthChecker returns the health of the running components.
type HealthChecker func(ctx context.Context) []component.Health

func probeBody(service string, status any) gin.H {
	return gin.H{
		"status":    status,
		"service":   service,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

func check(ctx context.Context, checker HealthChecker) ([]component.Health, component.HealthStatus) {
	if checker == nil {
		return nil, component.StatusHealthy
	}
	components := checker(ctx)
	status := component.StatusHealthy
	for _, ch := range components {
		if ch.Status == component.StatusUnhealthy {
			return components, component.StatusUnhealthy
		}
		if ch.Status == component.StatusDegraded {
			status = component.StatusDegraded
		}
	}
	return components, status
}

// Health lists every component's status. Unhealthy wins over degraded and
// answers 503.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		components, status := check(c.Request.Context(), checker)
		body := probeBody(serviceName, status)
		body["components"] = components

		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, body)
	}
}

// Readiness answers 503 while any component is unhealthy. Degraded
// components still accept runs.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, status := check(c.Request.Context(), checker); status == component.StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, probeBody(serviceName, "not_ready"))
			return
		}
		c.JSON(http.StatusOK, probeBody(serviceName, "ready"))
	}
}

// Liveness only proves the process serves HTTP.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := probeBody(serviceName, "alive")
		body["uptime"] = uptime()
		c.JSON(http.StatusOK, body)
	}
}

// Version reports build information and uptime.
func Version(serviceName string) gin.HandlerFunc {
	type body struct {
		version.Info
		Service string `json:"service"`
		Uptime  string `json:"uptime"`
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, body{
			Info:    *version.GetVersionInfo(),
			Service: serviceName,
			Uptime:  uptime(),
		})
	}
}

var started = time.Now()

func uptime() string { return time.Since(started).Round(time.Second).String() }
