package endpoint

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsFunc reports service counters such as active runs or cache usage.
type StatsFunc func(ctx context.Context) map[string]any

// Metrics reports process memory and goroutines plus whatever stats
// returns under "service". OTLP export is the primary metrics path; this
// endpoint is for quick inspection.
func Metrics(stats StatsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		const mb = 1 << 20
		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"heap_mb":  m.HeapAlloc / mb,
				"sys_mb":   m.Sys / mb,
				"gc_runs":  m.NumGC,
				"gc_pause": time.Duration(m.PauseTotalNs).String(),
			},
		}
		if stats != nil {
			body["service"] = stats(c.Request.Context())
		}
		c.JSON(http.StatusOK, body)
	}
}
