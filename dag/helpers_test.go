package dag

import (
	"context"
	"sync"
	"testing"

	"github.com/kbukum/pixelflow/errors"
)

// probeNode is a configurable node used across the package tests.
type probeNode struct {
	*NodeBase
	run   func(ctx context.Context, p *probeNode, ec *ExecutionContext) error
	calls int
	trace *recorder
}

type probeSpec struct {
	inputs  []string
	outputs []string
	typ     PinType
}

func newProbe(name string, spec probeSpec) *probeNode {
	if spec.typ == "" {
		spec.typ = PinFloat
	}
	p := &probeNode{}
	p.NodeBase = NewNodeBase(Info{Name: name, Category: "Test", ClassName: "Probe"}, func(s *PinSet) {
		for _, in := range spec.inputs {
			s.Input(in, spec.typ)
		}
		for _, out := range spec.outputs {
			s.Output(out, spec.typ)
		}
	})
	return p
}

func (p *probeNode) Execute(ctx context.Context, ec *ExecutionContext) error {
	p.calls++
	if p.trace != nil {
		p.trace.add(p.Name())
	}
	if p.run != nil {
		return p.run(ctx, p, ec)
	}
	return nil
}

// recorder collects node names in execution order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// chain builds n probes connected in a line: node i's "out" feeds node
// i+1's "in". Every probe records into the returned recorder.
func chain(t *testing.T, g *Graph, names ...string) ([]*probeNode, *recorder) {
	t.Helper()
	rec := &recorder{}
	nodes := make([]*probeNode, len(names))
	for i, name := range names {
		nodes[i] = newProbe(name, probeSpec{inputs: []string{"in"}, outputs: []string{"out"}})
		nodes[i].trace = rec
		mustAdd(t, g, nodes[i])
	}
	for i := 1; i < len(nodes); i++ {
		mustConnect(t, g, nodes[i-1], "out", nodes[i], "in")
	}
	return nodes, rec
}

func mustAdd(t *testing.T, g *Graph, nodes ...Node) {
	t.Helper()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.Base().Name(), err)
		}
	}
}

func mustConnect(t *testing.T, g *Graph, out Node, outPin string, in Node, inPin string) *Connection {
	t.Helper()
	c, err := g.ConnectByName(out, outPin, in, inPin)
	if err != nil {
		t.Fatalf("ConnectByName(%s.%s -> %s.%s): %v", out.Base().Name(), outPin, in.Base().Name(), inPin, err)
	}
	return c
}

func names(nodes []Node) []string {
	return nodeNames(nodes)
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !errors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}
