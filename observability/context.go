package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Run status values shared by metrics, spans and run results.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunScope tracks one graph run across a span and the run metrics.
type RunScope struct {
	RunID     string
	StartTime time.Time
	Metrics   *Metrics

	span trace.Span
}

// NewRunScope creates a run scope. If metrics is nil, metric recording is skipped.
func NewRunScope(runID string, metrics *Metrics) *RunScope {
	return &RunScope{
		RunID:   runID,
		Metrics: metrics,
	}
}

// runScopeKey is the context key for RunScope.
type runScopeKey struct{}

// RunScopeFromContext retrieves the RunScope from context, or nil.
func RunScopeFromContext(ctx context.Context) *RunScope {
	if rs, ok := ctx.Value(runScopeKey{}).(*RunScope); ok {
		return rs
	}
	return nil
}

// Start opens the graph.run span, stores the scope in the returned context
// and records the run start.
func (rs *RunScope) Start(ctx context.Context, nodes, connections int) context.Context {
	rs.StartTime = time.Now()
	ctx, rs.span = StartSpan(ctx, SpanGraphRun)
	rs.span.SetAttributes(
		attribute.String(AttrRunID, rs.RunID),
		attribute.Int(AttrNodeCount, nodes),
		attribute.Int(AttrConnections, connections),
	)
	if rs.Metrics != nil {
		rs.Metrics.RecordGraphRunStart(ctx)
	}
	return context.WithValue(ctx, runScopeKey{}, rs)
}

// End closes the span and records the run outcome.
func (rs *RunScope) End(ctx context.Context, status string, err error) {
	duration := rs.Duration()

	if rs.span != nil {
		if err != nil {
			rs.span.RecordError(err)
			rs.span.SetStatus(codes.Error, err.Error())
			rs.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
		}
		rs.span.SetAttributes(
			attribute.String(AttrStatus, status),
			attribute.Int64(AttrDurationMs, duration.Milliseconds()),
		)
		rs.span.End()
	}

	if rs.Metrics != nil {
		rs.Metrics.RecordGraphRunEnd(ctx, status, duration)
	}
}

// Duration returns the elapsed time since Start.
func (rs *RunScope) Duration() time.Duration {
	if rs.StartTime.IsZero() {
		return 0
	}
	return time.Since(rs.StartTime)
}
