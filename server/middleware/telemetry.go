package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/observability"
)

// Telemetry wraps each request in a span, puts the trace id on the request
// context for logging and records request metrics by route. A nil m skips
// the metrics.
func Telemetry(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanHTTPRequest)
		defer span.End()

		if id := observability.TraceID(ctx); id != "" {
			ctx = logger.ContextWithTraceID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observability.Annotate(ctx,
			attribute.String(observability.AttrHTTPRoute, route),
			attribute.Int(observability.AttrHTTPStatus, status))
		if m != nil {
			m.RecordRequest(ctx, c.Request.Method, route, status, time.Since(start))
		}
	}
}
