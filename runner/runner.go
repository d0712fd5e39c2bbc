package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/nodes"
	"github.com/kbukum/pixelflow/observability"
	"github.com/kbukum/pixelflow/project"
)

// Options control a single run.
type Options struct {
	// Node limits the run to the named node and its dependencies.
	Node string
	// Overrides set variable nodes by name before the run.
	Overrides map[string]string
	// BaseDir resolves relative image paths. RunFile uses the project's
	// directory when empty.
	BaseDir string
	// Timeout cancels the run after the given duration. Zero disables it.
	Timeout time.Duration
	// Project labels the summary with the file the document came from.
	Project string
	// Confine rejects image paths that leave BaseDir, or the output
	// directory for saves. Set for documents from untrusted callers.
	Confine bool
}

// ParseOverrides parses "name=value" pairs.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.InvalidInput("set", fmt.Sprintf("expected name=value, got %q", pair))
		}
		out[name] = value
	}
	return out, nil
}

// Setter is implemented by nodes whose value can be overridden.
type Setter interface {
	Set(v any) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithMetrics records run and node metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithMiddleware adds node middleware to every graph the runner builds.
func WithMiddleware(mw ...dag.Middleware) Option {
	return func(r *Runner) { r.middleware = append(r.middleware, mw...) }
}

// Runner builds and executes graphs from documents.
type Runner struct {
	registry   *dag.Registry
	log        *logger.Logger
	metrics    *observability.Metrics
	middleware []dag.Middleware
}

// New creates a Runner for the kinds in reg.
func New(reg *dag.Registry, opts ...Option) *Runner {
	r := &Runner{registry: reg, log: logger.Get(logger.ComponentRunner)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the node kinds the runner builds graphs from.
func (r *Runner) Registry() *dag.Registry { return r.registry }

// RunFile loads the project at path and runs it to completion.
func (r *Runner) RunFile(ctx context.Context, path string, opts Options) (*Summary, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.BaseDir == "" {
		opts.BaseDir = p.Dir()
	}
	opts.Project = p.Path
	return r.Run(ctx, p.Document, opts)
}

// Run executes doc to completion.
func (r *Runner) Run(ctx context.Context, doc *dag.Document, opts Options) (*Summary, error) {
	run, err := r.Prepare(doc, opts)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx)
}

// Prepare builds the graph for doc and applies overrides without running it.
func (r *Runner) Prepare(doc *dag.Document, opts Options) (*Run, error) {
	fingerprint, err := project.Fingerprint(doc)
	if err != nil {
		return nil, errors.InvalidInput("document", err.Error())
	}

	graphOpts := []dag.GraphOption{dag.WithLogger(logger.Get(logger.ComponentDAG))}
	mw := append([]dag.Middleware{dag.WithMetrics(r.metrics), dag.WithTracing("pixelflow")}, r.middleware...)
	graphOpts = append(graphOpts, dag.WithMiddleware(mw...))

	g, report, err := project.Build(doc, r.registry, graphOpts...)
	if err != nil {
		return nil, err
	}

	if err := applyOverrides(g, opts.Overrides); err != nil {
		return nil, err
	}

	var target dag.Node
	if opts.Node != "" {
		n, ok := g.NodeByName(opts.Node)
		if !ok {
			return nil, errors.NotFound("node", opts.Node)
		}
		target = n
	}

	ec := dag.NewExecutionContext()
	baseDir := opts.BaseDir
	if baseDir == "" && opts.Confine {
		baseDir = "."
	}
	if baseDir != "" {
		abs, err := filepath.Abs(baseDir)
		if err != nil {
			abs = baseDir
		}
		ec.Set(nodes.MetaBaseDir, abs)
	}
	if opts.Confine {
		ec.Set(nodes.MetaConfinePaths, true)
	}

	return &Run{
		runner:      r,
		graph:       g,
		ec:          ec,
		target:      target,
		timeout:     opts.Timeout,
		project:     opts.Project,
		fingerprint: fingerprint,
		warnings:    report.Warnings,
		done:        make(chan struct{}),
		log:         r.log.WithFields(logger.Fields(logger.FieldRunID, ec.RunID())),
	}, nil
}

func applyOverrides(g *dag.Graph, overrides map[string]string) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n, ok := g.NodeByName(name)
		if !ok {
			return errors.NotFound("node", name)
		}
		s, ok := n.(Setter)
		if !ok {
			return errors.InvalidInput("set", fmt.Sprintf("node %q (%s) has no settable value", name, n.Base().ClassName()))
		}
		if err := s.Set(overrides[name]); err != nil {
			return err
		}
	}
	return nil
}
