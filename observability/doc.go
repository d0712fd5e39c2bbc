// Package observability provides OpenTelemetry tracing and metrics for graph
// runs, node executions and the HTTP API.
//
// Setup:
//
//	tel, err := observability.Setup(ctx, cfg.Telemetry, "pixelflow", version.Version, cfg.Environment)
//	defer tel.Shutdown(ctx)
//
// Runs:
//
//	scope := observability.NewRunScope(runID, tel.Metrics)
//	ctx = scope.Start(ctx, stats.Nodes, stats.Connections)
//	defer scope.End(ctx, observability.StatusCompleted, nil)
package observability
