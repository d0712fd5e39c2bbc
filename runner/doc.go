// Package runner executes project documents headlessly.
//
// A Runner turns a document into a graph with the registered node kinds,
// applies variable overrides, and drives one execution with tracing and
// metrics around it. Runs can be executed synchronously (the CLI) or started
// in the background and tracked in a Store (the HTTP API):
//
//	r := runner.New(reg)
//	summary, err := r.RunFile(ctx, "pipeline.json", runner.Options{})
package runner
