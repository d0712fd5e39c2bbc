package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/nodes"
	"github.com/kbukum/pixelflow/project"
)

// gateNode blocks until its context is done.
type gateNode struct {
	*dag.NodeBase
	entered chan struct{}
}

func newGate() dag.Node {
	return &gateNode{
		NodeBase: dag.NewNodeBase(dag.Info{Name: "Gate", ClassName: "GateNode"}, func(s *dag.PinSet) {
			s.Input("exec", dag.PinExec)
			s.Output("exec", dag.PinExec)
		}),
		entered: make(chan struct{}, 1),
	}
}

func (n *gateNode) Execute(ctx context.Context, _ *dag.ExecutionContext) error {
	n.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	reg, err := nodes.NewRegistry(nodes.Deps{Log: logger.Nop()})
	require.NoError(t, err)
	require.NoError(t, reg.Register(newGate))
	return New(reg, WithLogger(logger.Nop()))
}

// sizedDocument is Width -> SolidColor -> ImageInfo, SolidColor -> SaveImage.
func sizedDocument(t *testing.T, r *Runner) *dag.Document {
	t.Helper()
	g := dag.NewGraph(dag.WithLogger(logger.Nop()))
	create := func(class, name string) dag.Node {
		n, err := r.Registry().Create(class)
		require.NoError(t, err)
		n.Base().SetName(name)
		require.NoError(t, g.AddNode(n))
		return n
	}
	width := create("IntegerVariableNode", "Width")
	gen := create("SolidColorNode", "Fill")
	info := create("ImageInfoNode", "Info")
	save := create("SaveImageNode", "Save")

	for _, c := range [][4]any{
		{width, "value", gen, "width"},
		{gen, "image", info, "image"},
		{gen, "image", save, "image"},
	} {
		_, err := g.ConnectByName(c[0].(dag.Node), c[1].(string), c[2].(dag.Node), c[3].(string))
		require.NoError(t, err)
	}
	require.NoError(t, gen.Base().InputPin("height").SetDefault(2))
	require.NoError(t, save.Base().InputPin("path").SetDefault("out/fill.png"))
	return g.ToDocument()
}

func outputsByName(s *Summary) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, o := range s.Outputs {
		out[o.Name] = o.Values
	}
	return out
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{"Width=12", " Name = a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Width": "12", "Name": " a=b"}, got)

	_, err = ParseOverrides([]string{"novalue"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	_, err = ParseOverrides([]string{"=1"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestRunWithOverrides(t *testing.T) {
	r := testRunner(t)
	dir := t.TempDir()

	summary, err := r.Run(context.Background(), sizedDocument(t, r), Options{
		Overrides: map[string]string{"Width": "6"},
		BaseDir:   dir,
	})
	require.NoError(t, err)

	assert.Equal(t, dag.StatusCompleted, summary.Status)
	assert.Equal(t, 4, summary.Nodes)
	assert.Equal(t, 3, summary.Connections)
	assert.Equal(t, 4, summary.Executed)
	assert.Equal(t, 1.0, summary.Progress)
	assert.NotEmpty(t, summary.Fingerprint)
	assert.Len(t, summary.NodeResults, 4)

	outputs := outputsByName(summary)
	assert.Equal(t, 6, outputs["Info"]["width"])
	assert.Equal(t, 2, outputs["Info"]["height"])
	assert.Equal(t, true, outputs["Save"]["success"])
	assert.NotContains(t, outputs["Info"], "exec")
	assert.FileExists(t, filepath.Join(dir, "out", "fill.png"))
}

func TestRunTargetNode(t *testing.T) {
	r := testRunner(t)
	summary, err := r.Run(context.Background(), sizedDocument(t, r), Options{Node: "Info", BaseDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Executed)
	for _, nr := range summary.NodeResults {
		assert.NotEqual(t, "Save", nr.Name, "unrelated nodes must not run")
	}
}

func TestPrepareErrors(t *testing.T) {
	r := testRunner(t)
	doc := sizedDocument(t, r)

	_, err := r.Prepare(doc, Options{Node: "Missing"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound), "got %v", err)

	_, err = r.Prepare(doc, Options{Overrides: map[string]string{"Ghost": "1"}})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound), "got %v", err)

	_, err = r.Prepare(doc, Options{Overrides: map[string]string{"Fill": "1"}})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)

	_, err = r.Prepare(doc, Options{Overrides: map[string]string{"Width": "wide"}})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)

	_, err = r.Prepare(nil, Options{})
	assert.Error(t, err)
}

func TestRunFile(t *testing.T) {
	r := testRunner(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "fill.yaml")
	require.NoError(t, project.Save(path, sizedDocument(t, r)))

	summary, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, path, summary.Project)
	assert.Equal(t, dag.StatusCompleted, summary.Status)
	assert.FileExists(t, filepath.Join(dir, "out", "fill.png"), "relative paths resolve against the project")

	_, err = r.RunFile(context.Background(), filepath.Join(dir, "missing.json"), Options{})
	assert.Error(t, err)
}

func gatedDocument(t *testing.T, r *Runner) *dag.Document {
	t.Helper()
	g := dag.NewGraph(dag.WithLogger(logger.Nop()))
	gate, err := r.Registry().Create("GateNode")
	require.NoError(t, err)
	info, err := r.Registry().Create("ImageInfoNode")
	require.NoError(t, err)
	require.NoError(t, g.AddNode(gate))
	require.NoError(t, g.AddNode(info))
	_, err = g.ConnectByName(gate, "exec", info, "exec")
	require.NoError(t, err)
	return g.ToDocument()
}

func TestRunCancel(t *testing.T) {
	r := testRunner(t)
	run, err := r.Prepare(gatedDocument(t, r), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatePending, run.State())

	run.Start(context.Background())
	gate := findGate(t, run.Graph())
	<-gate.entered
	assert.Equal(t, StateRunning, run.State())
	run.Cancel()

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after Cancel")
	}
	summary, err := run.Result()
	require.NoError(t, err)
	assert.Equal(t, StateFinished, run.State())
	assert.Equal(t, dag.StatusCancelled, summary.Status)
	assert.Equal(t, 1, summary.Skipped)

	again, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Same(t, summary, again, "a run executes once")
}

func TestRunTimeout(t *testing.T) {
	r := testRunner(t)
	summary, err := r.Run(context.Background(), gatedDocument(t, r), Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, dag.StatusCancelled, summary.Status)
}

func findGate(t *testing.T, g *dag.Graph) *gateNode {
	t.Helper()
	for _, n := range g.Nodes() {
		if gate, ok := n.(*gateNode); ok {
			return gate
		}
	}
	t.Fatal("no gate node")
	return nil
}

func TestStore(t *testing.T) {
	r := testRunner(t)
	store := NewStore(StoreConfig{Size: 2})

	var runs []*Run
	for i := 0; i < 3; i++ {
		run, err := r.Prepare(gatedDocument(t, r), Options{})
		require.NoError(t, err)
		store.Add(run)
		runs = append(runs, run)
	}

	assert.Equal(t, 2, store.Len())
	_, err := store.Get(runs[0].ID())
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	assert.True(t, runs[0].Context().IsCancelled(), "evicting an unfinished run cancels it")

	got, err := store.Get(runs[2].ID())
	require.NoError(t, err)
	assert.Same(t, runs[2], got)

	store.CancelAll()
	assert.True(t, runs[1].Context().IsCancelled())
	assert.Len(t, store.List(), 2)
}
