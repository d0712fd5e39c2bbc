package dag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// Node is the execution unit in a Graph. Concrete kinds embed *NodeBase,
// which supplies Base and the pin bookkeeping, and implement Execute.
type Node interface {
	Base() *NodeBase
	Execute(ctx context.Context, ec *ExecutionContext) error
}

// Info describes a node kind.
type Info struct {
	Name        string
	Description string
	Category    string
	// ClassName is the registry key used to recreate the node from a document.
	ClassName string
}

// Position is editor metadata; the engine never reads it.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// NodeBase carries the identity, pins and execution flag shared by every
// node kind.
type NodeBase struct {
	id   string
	info Info

	mu       sync.RWMutex
	name     string
	position Position

	inputs       []*Pin
	outputs      []*Pin
	inputByName  map[string]*Pin
	outputByName map[string]*Pin

	executing atomic.Bool
	graph     atomic.Pointer[Graph]
}

// PinSet declares a node's pins. It is only valid inside the setup function
// passed to NewNodeBase.
type PinSet struct {
	node *NodeBase
}

// Input declares an input pin. Duplicate names panic.
func (s *PinSet) Input(name string, t PinType, opts ...PinOption) *Pin {
	return s.node.declare(name, t, Input, opts...)
}

// Output declares an output pin. Duplicate names panic.
func (s *PinSet) Output(name string, t PinType, opts ...PinOption) *Pin {
	return s.node.declare(name, t, Output, opts...)
}

// NewNodeBase builds the base of a node and runs setup once to declare its
// pins. The pin set is fixed afterwards.
func NewNodeBase(info Info, setup func(*PinSet)) *NodeBase {
	if info.Category == "" {
		info.Category = "General"
	}
	b := &NodeBase{
		id:           uuid.NewString(),
		info:         info,
		name:         info.Name,
		inputByName:  make(map[string]*Pin),
		outputByName: make(map[string]*Pin),
	}
	if setup != nil {
		setup(&PinSet{node: b})
	}
	return b
}

func (b *NodeBase) declare(name string, t PinType, dir Direction, opts ...PinOption) *Pin {
	if !t.Valid() {
		panic(fmt.Sprintf("dag: node %q declares pin %q with unknown type %q", b.info.ClassName, name, t))
	}
	index := b.inputByName
	if dir == Output {
		index = b.outputByName
	}
	if _, exists := index[name]; exists {
		panic(fmt.Sprintf("dag: node %q declares %s pin %q twice", b.info.ClassName, dir, name))
	}
	p := newPin(b, name, t, dir, opts...)
	index[name] = p
	if dir == Output {
		b.outputs = append(b.outputs, p)
	} else {
		b.inputs = append(b.inputs, p)
	}
	return p
}

// Base returns b itself so that kinds embedding *NodeBase satisfy Node.
func (b *NodeBase) Base() *NodeBase { return b }

func (b *NodeBase) ID() string          { return b.id }
func (b *NodeBase) Info() Info          { return b.info }
func (b *NodeBase) ClassName() string   { return b.info.ClassName }
func (b *NodeBase) Category() string    { return b.info.Category }
func (b *NodeBase) Description() string { return b.info.Description }

func (b *NodeBase) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// SetName changes the display name.
func (b *NodeBase) SetName(name string) {
	b.mu.Lock()
	b.name = name
	b.mu.Unlock()
}

func (b *NodeBase) Position() Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

func (b *NodeBase) setPosition(p Position) {
	b.mu.Lock()
	b.position = p
	b.mu.Unlock()
}

// restoreID replaces the generated id. Only legal before the node joins a graph.
func (b *NodeBase) restoreID(id string) {
	if b.graph.Load() == nil {
		b.id = id
	}
}

// Graph returns the graph the node belongs to, or nil.
func (b *NodeBase) Graph() *Graph { return b.graph.Load() }

// IsExecuting reports whether the node is inside Execute.
func (b *NodeBase) IsExecuting() bool { return b.executing.Load() }

// InputPin returns the named input pin or nil.
func (b *NodeBase) InputPin(name string) *Pin { return b.inputByName[name] }

// OutputPin returns the named output pin or nil.
func (b *NodeBase) OutputPin(name string) *Pin { return b.outputByName[name] }

// InputPins returns the inputs in declaration order.
func (b *NodeBase) InputPins() []*Pin { return append([]*Pin(nil), b.inputs...) }

// OutputPins returns the outputs in declaration order.
func (b *NodeBase) OutputPins() []*Pin { return append([]*Pin(nil), b.outputs...) }

// Pins returns inputs followed by outputs.
func (b *NodeBase) Pins() []*Pin {
	pins := make([]*Pin, 0, len(b.inputs)+len(b.outputs))
	pins = append(pins, b.inputs...)
	return append(pins, b.outputs...)
}

func (b *NodeBase) hasConnections() bool {
	for _, p := range b.Pins() {
		if p.IsConnected() {
			return true
		}
	}
	return false
}

func (b *NodeBase) logFields() map[string]interface{} {
	return logger.NodeFields(b.Name(), b.id, b.info.ClassName)
}

// ExecuteSafe runs n.Execute behind the node's re-entrancy guard. A call on a
// node that is already executing is logged and skipped. Failures and panics
// come back as NODE_EXECUTION_FAILED wrapping the original error, and the
// guard is always released.
func ExecuteSafe(ctx context.Context, n Node, ec *ExecutionContext) error {
	_, err := executeSafe(ctx, n, ec, callExecute, logger.Get(logger.ComponentDAG))
	return err
}

func callExecute(ctx context.Context, n Node, ec *ExecutionContext) error {
	return n.Execute(ctx, ec)
}

func executeSafe(ctx context.Context, n Node, ec *ExecutionContext, run RunFunc, log *logger.Logger) (ran bool, err error) {
	b := n.Base()
	if !b.executing.CompareAndSwap(false, true) {
		log.Warn("node is already executing, skipping", b.logFields())
		return false, nil
	}
	defer b.executing.Store(false)

	if ec == nil {
		ec = NewExecutionContext()
	}

	ran = true
	defer func() {
		if r := recover(); r != nil {
			err = errors.NodeExecution(b.Name(), b.id, fmt.Errorf("panic: %v", r))
		}
	}()

	if runErr := run(ctx, n, ec); runErr != nil {
		return true, errors.NodeExecution(b.Name(), b.id, runErr)
	}
	return true, nil
}
