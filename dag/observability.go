package dag

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/observability"
)

// RunFunc executes one node.
type RunFunc func(ctx context.Context, n Node, ec *ExecutionContext) error

// Middleware wraps every node execution the graph performs. It runs inside
// the node's re-entrancy guard.
type Middleware func(next RunFunc) RunFunc

// Chain wraps base so that the first middleware is outermost.
func Chain(base RunFunc, mw ...Middleware) RunFunc {
	run := base
	for i := len(mw) - 1; i >= 0; i-- {
		run = mw[i](run)
	}
	return run
}

// WithTracing opens a span named "{prefix}.{class}" around each node, or
// "node.execute" when prefix is empty.
func WithTracing(prefix string) Middleware {
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, n Node, ec *ExecutionContext) error {
			b := n.Base()
			name := observability.SpanNodeExecute
			if prefix != "" {
				name = prefix + "." + b.ClassName()
			}
			ctx, span := observability.StartSpan(ctx, name,
				attribute.String(observability.AttrNodeName, b.Name()),
				attribute.String(observability.AttrNodeID, b.ID()),
				attribute.String(observability.AttrNodeClass, b.ClassName()),
				attribute.String(observability.AttrRunID, ec.RunID()),
			)
			defer span.End()

			err := next(ctx, n, ec)
			observability.SetSpanError(ctx, err)
			return err
		}
	}
}

// WithMetrics records a run count and duration per node class and status.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(next RunFunc) RunFunc {
		if metrics == nil {
			return next
		}
		return func(ctx context.Context, n Node, ec *ExecutionContext) error {
			start := time.Now()
			err := next(ctx, n, ec)

			status := string(StatusCompleted)
			switch {
			case err != nil && ec.IsCancelled() && stderrors.Is(err, context.Canceled):
				status = string(StatusCancelled)
			case err != nil:
				status = string(StatusFailed)
				metrics.RecordError(ctx, string(errors.CodeOf(err)), logger.ComponentDAG)
			}
			metrics.RecordNodeRun(ctx, n.Base().ClassName(), status, time.Since(start))
			return err
		}
	}
}

// WithLogging logs each node execution with its duration and outcome.
func WithLogging(log *logger.Logger) Middleware {
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, n Node, ec *ExecutionContext) error {
			b := n.Base()
			start := time.Now()
			err := next(ctx, n, ec)

			fields := logger.MergeWithDuration(b.logFields(), time.Since(start))
			fields[logger.FieldRunID] = ec.RunID()
			if err != nil {
				log.Error("node failed", logger.MergeWithError(fields, err))
			} else {
				log.Debug("node completed", fields)
			}
			return err
		}
	}
}
