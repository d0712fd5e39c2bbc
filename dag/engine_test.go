package dag

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/pixelflow/errors"
)

func TestExecuteAllUnconnectedNodes(t *testing.T) {
	g := newTestGraph()
	rec := &recorder{}
	first := newProbe("First", probeSpec{})
	second := newProbe("Second", probeSpec{})
	first.trace, second.trace = rec, rec
	mustAdd(t, g, first, second)

	ec := NewExecutionContext()
	res, err := g.ExecuteAll(context.Background(), ec)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if diff := cmp.Diff([]string{"First", "Second"}, rec.list()); diff != "" {
		t.Errorf("execution order (-want +got):\n%s", diff)
	}
	if ec.Progress() != 1.0 || res.Progress != 1.0 {
		t.Errorf("progress = %v, want 1.0", ec.Progress())
	}
	if res.Status != StatusCompleted || res.Count(StatusCompleted) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.RunID != ec.RunID() {
		t.Error("result should carry the run id")
	}
	if g.IsExecuting() || g.ActiveContext() != nil {
		t.Error("graph should be idle after the run")
	}
}

func TestExecuteAllPropagatesValues(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "A", "B", "C")
	nodes[0].run = func(_ context.Context, p *probeNode, _ *ExecutionContext) error {
		return p.SetOutput("out", 2.0)
	}
	double := func(_ context.Context, p *probeNode, _ *ExecutionContext) error {
		v, err := p.InputFloat("in")
		if err != nil {
			return err
		}
		return p.SetOutput("out", v*2)
	}
	nodes[1].run, nodes[2].run = double, double

	if _, err := g.ExecuteAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, rec.list()); diff != "" {
		t.Errorf("execution order (-want +got):\n%s", diff)
	}
	if v, _ := nodes[2].OutputPin("out").Value(); v != 8.0 {
		t.Errorf("C.out = %v, want 8", v)
	}
}

func TestExecuteAllCancelFromInsideNode(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "N1", "N2", "N3", "N4", "N5")
	nodes[1].run = func(context.Context, *probeNode, *ExecutionContext) error {
		g.CancelExecution()
		return nil
	}

	ec := NewExecutionContext()
	res, err := g.ExecuteAll(context.Background(), ec)
	if err != nil {
		t.Fatalf("cancellation is not an error, got %v", err)
	}
	if diff := cmp.Diff([]string{"N1", "N2"}, rec.list()); diff != "" {
		t.Errorf("executed nodes (-want +got):\n%s", diff)
	}
	if res.Status != StatusCancelled || res.Count(StatusSkipped) != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	if !ec.IsCancelled() || ec.Progress() >= 1.0 {
		t.Errorf("progress should stay below 1.0, got %v", ec.Progress())
	}
	if g.IsExecuting() {
		t.Error("graph should be idle after cancellation")
	}
}

func TestExecuteAllNodeFailure(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "A", "B", "C")
	boom := stderrors.New("boom")
	nodes[1].run = func(context.Context, *probeNode, *ExecutionContext) error { return boom }
	nodes[0].run = func(_ context.Context, p *probeNode, _ *ExecutionContext) error {
		return p.SetOutput("out", 1.0)
	}

	res, err := g.ExecuteAll(context.Background(), nil)
	assertCode(t, err, errors.ErrCodeNodeExecution)
	if !stderrors.Is(err, boom) {
		t.Errorf("original error should be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), `"B"`) {
		t.Errorf("error should name the node, got %q", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, rec.list()); diff != "" {
		t.Errorf("executed nodes (-want +got):\n%s", diff)
	}
	if nodes[1].IsExecuting() {
		t.Error("failed node should be back to idle")
	}
	if v, _ := nodes[0].OutputPin("out").Value(); v != 1.0 {
		t.Error("completed outputs are not rolled back")
	}
	if res.Status != StatusFailed {
		t.Errorf("status = %s", res.Status)
	}
	nr, _ := res.Node(nodes[2].ID())
	if nr.Status != StatusSkipped {
		t.Errorf("C status = %s, want skipped", nr.Status)
	}
	if g.IsExecuting() {
		t.Error("graph should be idle after a failure")
	}
}

func TestExecuteAllRecoversPanics(t *testing.T) {
	g := newTestGraph()
	a := newProbe("A", probeSpec{})
	a.run = func(context.Context, *probeNode, *ExecutionContext) error { panic("bad pixel") }
	mustAdd(t, g, a)

	_, err := g.ExecuteAll(context.Background(), nil)
	assertCode(t, err, errors.ErrCodeNodeExecution)
	if !strings.Contains(err.Error(), "bad pixel") {
		t.Errorf("panic value should be reported, got %q", err)
	}
	if a.IsExecuting() || g.IsExecuting() {
		t.Error("flags should be reset after a panic")
	}
}

func TestExecuteAllRejectsInvalidGraph(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "A", "B", "C")
	mustConnect(t, g, nodes[2], "out", nodes[0], "in")

	_, err := g.ExecuteAll(context.Background(), nil)
	assertCode(t, err, errors.ErrCodeValidationFailed)
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error should list the cycle, got %q", err)
	}
	if len(rec.list()) != 0 {
		t.Errorf("no node may run, got %v", rec.list())
	}
	if g.IsExecuting() {
		t.Error("graph should be idle")
	}
}

func TestExecuteAllIsNotReentrant(t *testing.T) {
	g := newTestGraph()
	a := newProbe("A", probeSpec{})
	var inner error
	a.run = func(ctx context.Context, _ *probeNode, _ *ExecutionContext) error {
		_, inner = g.ExecuteAll(ctx, nil)
		return nil
	}
	mustAdd(t, g, a)

	if _, err := g.ExecuteAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	assertCode(t, inner, errors.ErrCodeGraphBusy)
	if a.calls != 1 {
		t.Errorf("node ran %d times", a.calls)
	}
}

func TestMutationsDuringExecutionAreRejected(t *testing.T) {
	g := newTestGraph()
	nodes, _ := chain(t, g, "A", "B")
	extra := newProbe("X", probeSpec{inputs: []string{"in"}})
	var errs []error
	nodes[0].run = func(context.Context, *probeNode, *ExecutionContext) error {
		errs = append(errs,
			g.AddNode(extra),
			g.RemoveNode(nodes[1]),
			g.Disconnect(g.Connections()[0]),
			g.Clear(),
		)
		_, err := g.ConnectByName(nodes[0], "out", nodes[1], "in")
		errs = append(errs, err)
		_, err = g.LoadDocument(&Document{Version: DocumentVersion}, NewRegistry())
		errs = append(errs, err)
		// Positions are metadata and may change mid-run.
		return g.MoveNode(nodes[1], Position{X: 1})
	}

	if _, err := g.ExecuteAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	for i, err := range errs {
		if !errors.HasCode(err, errors.ErrCodeGraphBusy) {
			t.Errorf("mutation %d: expected GRAPH_BUSY, got %v", i, err)
		}
	}
	if g.Stats().Nodes != 2 {
		t.Error("graph must be unchanged")
	}
}

func TestExecuteNodeRunsOnlyDependencies(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "A", "B", "C")
	other := newProbe("Other", probeSpec{})
	other.trace = rec
	shared := newProbe("Shared", probeSpec{outputs: []string{"out"}})
	shared.trace = rec
	mustAdd(t, g, other, shared)

	join := newProbe("Join", probeSpec{inputs: []string{"a", "b"}})
	join.trace = rec
	mustAdd(t, g, join)
	mustConnect(t, g, shared, "out", nodes[0], "in")
	mustConnect(t, g, shared, "out", join, "a")
	mustConnect(t, g, nodes[1], "out", join, "b")

	res, err := g.ExecuteNode(context.Background(), join, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Shared", "A", "B", "Join"}, rec.list()); diff != "" {
		t.Errorf("executed nodes (-want +got):\n%s", diff)
	}
	if res.Status != StatusCompleted || len(res.Nodes) != 4 {
		t.Errorf("unexpected result %+v", res)
	}

	_, err = g.ExecuteNode(context.Background(), newProbe("Stranger", probeSpec{}), nil)
	assertCode(t, err, errors.ErrCodeNotFound)
}

func TestExecuteNodeHonorsCancellation(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "A", "B", "C")
	ec := NewExecutionContext()
	nodes[0].run = func(context.Context, *probeNode, *ExecutionContext) error {
		ec.Cancel()
		return nil
	}

	res, err := g.ExecuteNode(context.Background(), nodes[2], ec)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A"}, rec.list()); diff != "" {
		t.Errorf("executed nodes (-want +got):\n%s", diff)
	}
	if res.Status != StatusCancelled {
		t.Errorf("status = %s", res.Status)
	}
}

func TestExecuteAllContextCancellation(t *testing.T) {
	g := newTestGraph()
	nodes, rec := chain(t, g, "A", "B", "C")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// B blocks until the run is cancelled, then reports context.Canceled.
	nodes[1].run = func(ctx context.Context, _ *probeNode, _ *ExecutionContext) error {
		cancel()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return stderrors.New("run context was not cancelled")
		}
	}

	ec := NewExecutionContext()
	res, err := g.ExecuteAll(ctx, ec)
	if err != nil {
		t.Fatalf("cancellation is not an error, got %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, rec.list()); diff != "" {
		t.Errorf("executed nodes (-want +got):\n%s", diff)
	}
	if !ec.IsCancelled() || res.Status != StatusCancelled {
		t.Errorf("expected a cancelled run, got %s", res.Status)
	}
	nr, _ := res.Node(nodes[1].ID())
	if nr.Status != StatusCancelled {
		t.Errorf("interrupted node status = %s", nr.Status)
	}
}

func TestExecuteAllPreCancelledContext(t *testing.T) {
	g := newTestGraph()
	_, rec := chain(t, g, "A", "B")
	ec := NewExecutionContext()
	ec.Cancel()

	res, err := g.ExecuteAll(context.Background(), ec)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.list()) != 0 || res.Status != StatusCancelled || res.Count(StatusSkipped) != 2 {
		t.Errorf("nothing should run, got %v %+v", rec.list(), res)
	}
}

func TestExecuteSafeSkipsReentrantCall(t *testing.T) {
	a := newProbe("A", probeSpec{})
	var inner error
	a.run = func(ctx context.Context, p *probeNode, ec *ExecutionContext) error {
		inner = ExecuteSafe(ctx, p, ec)
		return nil
	}

	if err := ExecuteSafe(context.Background(), a, nil); err != nil {
		t.Fatal(err)
	}
	if inner != nil {
		t.Errorf("re-entrant call is skipped without error, got %v", inner)
	}
	if a.calls != 1 {
		t.Errorf("node ran %d times, want 1", a.calls)
	}
	if a.IsExecuting() {
		t.Error("flag should be reset")
	}
}

func TestExecutionEvents(t *testing.T) {
	g := newTestGraph()
	chain(t, g, "A", "B")
	var mu sync.Mutex
	var got []string
	g.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case EventExecutionProgress:
			got = append(got, fmt.Sprintf("%s:%g", e.Type, e.Progress))
		case EventNodeStarted, EventNodeFinished:
			got = append(got, string(e.Type)+":"+e.NodeName)
		default:
			got = append(got, string(e.Type))
		}
	})

	if _, err := g.ExecuteAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"execution_started",
		"execution_progress:0", "node_started:A", "node_finished:A",
		"execution_progress:0.5", "node_started:B", "node_finished:B",
		"execution_progress:1", "execution_finished",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next RunFunc) RunFunc {
			return func(ctx context.Context, n Node, ec *ExecutionContext) error {
				calls = append(calls, name+">")
				err := next(ctx, n, ec)
				calls = append(calls, "<"+name)
				return err
			}
		}
	}
	g := NewGraph(WithMiddleware(mark("outer")))
	g.Use(mark("inner"))
	a := newProbe("A", probeSpec{})
	a.run = func(context.Context, *probeNode, *ExecutionContext) error {
		calls = append(calls, "run")
		return nil
	}
	mustAdd(t, g, a)

	if _, err := g.ExecuteAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"outer>", "inner>", "run", "<inner", "<outer"}, calls); diff != "" {
		t.Errorf("middleware order (-want +got):\n%s", diff)
	}
}

func TestExecutionContext(t *testing.T) {
	ec := NewExecutionContext()
	if ec.RunID() == "" || ec.IsCancelled() || ec.Progress() != 0 {
		t.Fatal("fresh context should be idle")
	}
	ec.SetProgress(1.7)
	if ec.Progress() != 1 {
		t.Errorf("progress should clamp to 1, got %v", ec.Progress())
	}
	ec.SetProgress(-3)
	if ec.Progress() != 0 {
		t.Errorf("progress should clamp to 0, got %v", ec.Progress())
	}

	ec.Set("output_dir", "/tmp/out")
	if v, ok := ec.Get("output_dir"); !ok || v != "/tmp/out" {
		t.Errorf("metadata lookup failed: %v", v)
	}
	md := ec.Metadata()
	md["output_dir"] = "changed"
	if v, _ := ec.Get("output_dir"); v != "/tmp/out" {
		t.Error("Metadata should return a copy")
	}

	ec.Cancel()
	ec.Cancel()
	if !ec.IsCancelled() {
		t.Error("Cancel should stick")
	}
}

func TestZeroExecutionContext(t *testing.T) {
	var ec ExecutionContext
	if _, ok := ec.Get("base_dir"); ok {
		t.Fatal("zero context should have no metadata")
	}
	ec.Set("base_dir", "/data")
	if v, ok := ec.Get("base_dir"); !ok || v != "/data" {
		t.Errorf("metadata lookup failed: %v", v)
	}
	if got := len(ec.Metadata()); got != 1 {
		t.Errorf("Metadata() has %d entries, want 1", got)
	}
	ec.Cancel()
	if !ec.IsCancelled() {
		t.Error("Cancel should work on a zero context")
	}
}
