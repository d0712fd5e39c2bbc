package runner

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/observability"
)

// State is the lifecycle position of a Run.
type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// NodeOutputs are the persisted output values of one node after a run.
type NodeOutputs struct {
	NodeID    string         `json:"node_id"`
	Name      string         `json:"name"`
	ClassName string         `json:"class_name"`
	Values    map[string]any `json:"values"`
}

// NodeSummary is one node's outcome.
type NodeSummary struct {
	NodeID     string     `json:"node_id"`
	Name       string     `json:"name"`
	ClassName  string     `json:"class_name"`
	Status     dag.Status `json:"status"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// Summary describes a finished run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Project     string        `json:"project,omitempty"`
	Fingerprint string        `json:"fingerprint"`
	Status      dag.Status    `json:"status"`
	Nodes       int           `json:"nodes"`
	Connections int           `json:"connections"`
	Executed    int           `json:"executed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Progress    float64       `json:"progress"`
	Duration    time.Duration `json:"-"`
	DurationMs  int64         `json:"duration_ms"`
	Warnings    []string      `json:"warnings,omitempty"`
	Error       string        `json:"error,omitempty"`
	NodeResults []NodeSummary `json:"node_results"`
	Outputs     []NodeOutputs `json:"outputs"`
}

// Run is one prepared execution of a document.
type Run struct {
	runner      *Runner
	graph       *dag.Graph
	ec          *dag.ExecutionContext
	target      dag.Node
	timeout     time.Duration
	project     string
	fingerprint string
	warnings    []string
	log         *logger.Logger

	startOnce sync.Once
	done      chan struct{}

	mu      sync.RWMutex
	state   State
	summary *Summary
	err     error
}

// ID returns the run id, which is also the execution context's run id.
func (run *Run) ID() string { return run.ec.RunID() }

// Graph returns the graph being run.
func (run *Run) Graph() *dag.Graph { return run.graph }

// Context returns the run's execution context.
func (run *Run) Context() *dag.ExecutionContext { return run.ec }

// Done is closed when the run has finished.
func (run *Run) Done() <-chan struct{} { return run.done }

// Cancel asks the run to stop before its next node.
func (run *Run) Cancel() { run.ec.Cancel() }

// State returns where the run is in its lifecycle.
func (run *Run) State() State {
	run.mu.RLock()
	defer run.mu.RUnlock()
	if run.state == "" {
		return StatePending
	}
	return run.state
}

// Result returns the summary and error of a finished run, or nil, nil
// while it is still going.
func (run *Run) Result() (*Summary, error) {
	run.mu.RLock()
	defer run.mu.RUnlock()
	return run.summary, run.err
}

// Start runs in the background. ctx bounds the run, not the call.
func (run *Run) Start(ctx context.Context) {
	go func() { _, _ = run.Execute(ctx) }()
}

// Execute runs to completion and returns the summary. A run executes at
// most once; later calls wait for and return the first outcome.
func (run *Run) Execute(ctx context.Context) (*Summary, error) {
	run.startOnce.Do(func() {
		defer close(run.done)
		summary, err := run.execute(ctx)
		run.mu.Lock()
		run.summary, run.err, run.state = summary, err, StateFinished
		run.mu.Unlock()
	})
	<-run.done
	return run.Result()
}

func (run *Run) execute(ctx context.Context) (*Summary, error) {
	run.mu.Lock()
	run.state = StateRunning
	run.mu.Unlock()

	if run.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, run.timeout)
		defer cancel()
	}

	stats := run.graph.Stats()
	scope := observability.NewRunScope(run.ID(), run.runner.metrics)
	ctx = scope.Start(ctx, stats.Nodes, stats.Connections)
	run.log.Info("run started", logger.Fields("nodes", stats.Nodes, "connections", stats.Connections, "fingerprint", run.fingerprint))

	var (
		res *dag.Result
		err error
	)
	if run.target != nil {
		res, err = run.graph.ExecuteNode(ctx, run.target, run.ec)
	} else {
		res, err = run.graph.ExecuteAll(ctx, run.ec)
	}

	summary := run.summarize(res, err)
	scope.End(ctx, string(summary.Status), err)
	if err != nil {
		run.log.Error("run failed", logger.MergeWithDuration(logger.ErrorFields("execute", err), summary.Duration))
		return summary, err
	}
	run.log.Info("run finished", logger.MergeWithDuration(
		logger.Fields(logger.FieldStatus, string(summary.Status), "executed", summary.Executed), summary.Duration))
	return summary, nil
}

func (run *Run) summarize(res *dag.Result, err error) *Summary {
	stats := run.graph.Stats()
	s := &Summary{
		RunID:       run.ID(),
		Project:     run.project,
		Fingerprint: run.fingerprint,
		Status:      dag.StatusFailed,
		Nodes:       stats.Nodes,
		Connections: stats.Connections,
		Warnings:    run.warnings,
		NodeResults: []NodeSummary{},
		Outputs:     outputsOf(run.graph),
	}
	if err != nil {
		s.Error = err.Error()
	}
	if res == nil {
		return s
	}

	s.Status = res.Status
	s.Progress = res.Progress
	s.Duration = res.Duration
	s.DurationMs = res.Duration.Milliseconds()
	s.Executed = res.Count(dag.StatusCompleted)
	s.Failed = res.Count(dag.StatusFailed)
	s.Skipped = res.Count(dag.StatusSkipped)
	for _, nr := range res.Nodes {
		ns := NodeSummary{
			NodeID:     nr.NodeID,
			Name:       nr.Name,
			ClassName:  nr.ClassName,
			Status:     nr.Status,
			DurationMs: nr.Duration.Milliseconds(),
		}
		if nr.Error != nil {
			ns.Error = nr.Error.Error()
		}
		s.NodeResults = append(s.NodeResults, ns)
	}
	return s
}

// outputsOf collects the persistable output values of every node. Image and
// exec pins are left out.
func outputsOf(g *dag.Graph) []NodeOutputs {
	doc := g.ToDocument()
	out := make([]NodeOutputs, 0, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		values := make(map[string]any)
		for name, p := range nd.OutputPins {
			if p.Value != nil && p.Type != dag.PinExec {
				values[name] = p.Value
			}
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, NodeOutputs{NodeID: nd.ID, Name: nd.Name, ClassName: nd.ClassName, Values: values})
	}
	return out
}
