package dag

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/pixelflow/errors"
)

// Pin is a named, typed attachment point on a node. Input pins hold a
// default value; output pins hold the value last written by their node.
type Pin struct {
	id          string
	node        *NodeBase
	name        string
	typ         PinType
	dir         Direction
	multiple    bool
	description string
	defaultVal  any

	mu    sync.RWMutex
	value any
	conns []*Connection
}

// PinOption customizes a pin declared in a node's setup function.
type PinOption func(*Pin)

// WithDefault sets the pin's default value.
func WithDefault(v any) PinOption {
	return func(p *Pin) { p.defaultVal = v }
}

// WithMultiple overrides whether the pin accepts more than one connection.
// Inputs accept one by default, outputs any number.
func WithMultiple(allow bool) PinOption {
	return func(p *Pin) { p.multiple = allow }
}

// WithDescription sets the pin's help text.
func WithDescription(s string) PinOption {
	return func(p *Pin) { p.description = s }
}

func newPin(node *NodeBase, name string, t PinType, dir Direction, opts ...PinOption) *Pin {
	p := &Pin{
		id:       uuid.NewString(),
		node:     node,
		name:     name,
		typ:      t,
		dir:      dir,
		multiple: dir == Output,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.value = p.defaultVal
	return p
}

func (p *Pin) ID() string            { return p.id }
func (p *Pin) Name() string          { return p.name }
func (p *Pin) Type() PinType         { return p.typ }
func (p *Pin) Direction() Direction  { return p.dir }
func (p *Pin) IsInput() bool         { return p.dir == Input }
func (p *Pin) IsOutput() bool        { return p.dir == Output }
func (p *Pin) Multiple() bool        { return p.multiple }
func (p *Pin) Description() string   { return p.description }
func (p *Pin) Default() any          { return p.defaultVal }
func (p *Pin) Node() *NodeBase       { return p.node }
func (p *Pin) qualifiedName() string { return p.node.Name() + "." + p.name }
func (p *Pin) String() string        { return fmt.Sprintf("%s(%s)", p.qualifiedName(), p.typ) }

// Connections returns the attached connections in the order they were made.
func (p *Pin) Connections() []*Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Connection(nil), p.conns...)
}

// ConnectionIDs returns the ids of the attached connections in insertion order.
func (p *Pin) ConnectionIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, len(p.conns))
	for i, c := range p.conns {
		ids[i] = c.id
	}
	return ids
}

// IsConnected reports whether any connection is attached.
func (p *Pin) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns) > 0
}

// Value resolves the pin's current value. Outputs return their cached
// value, unconnected inputs their default, and connected inputs the cached
// value of the upstream output. An input with more than one connection
// fails with AMBIGUOUS_INPUT; read it with Values instead.
func (p *Pin) Value() (any, error) {
	p.mu.RLock()
	if p.dir == Output || len(p.conns) == 0 {
		v := p.value
		p.mu.RUnlock()
		return v, nil
	}
	if len(p.conns) > 1 {
		n := len(p.conns)
		p.mu.RUnlock()
		return nil, errors.Newf(errors.ErrCodeAmbiguousInput,
			"input pin %q has %d connections, read it with Values", p.qualifiedName(), n)
	}
	upstream := p.conns[0].output
	p.mu.RUnlock()
	return upstream.cached(), nil
}

// Values returns one value per connection in connection order, or the
// default as a single element when the input is unconnected. For an
// output it returns the cached value.
func (p *Pin) Values() []any {
	p.mu.RLock()
	if p.dir == Output || len(p.conns) == 0 {
		v := p.value
		p.mu.RUnlock()
		return []any{v}
	}
	conns := append([]*Connection(nil), p.conns...)
	p.mu.RUnlock()

	values := make([]any, len(conns))
	for i, c := range conns {
		values[i] = c.output.cached()
	}
	return values
}

// SetValue stores v as the output's cached value. Downstream inputs pick
// it up on their next read; nothing is pushed.
func (p *Pin) SetValue(v any) error {
	if p.dir != Output {
		return errors.Newf(errors.ErrCodeInvalidPinWrite,
			"cannot write value to input pin %q", p.qualifiedName())
	}
	p.setValue(v)
	if g := p.node.graph.Load(); g != nil {
		g.emit(Event{
			Type:     EventPinValueChanged,
			NodeID:   p.node.ID(),
			NodeName: p.node.Name(),
			PinID:    p.id,
			PinName:  p.name,
		})
	}
	return nil
}

// SetDefault replaces an input's default value.
func (p *Pin) SetDefault(v any) error {
	if p.dir != Input {
		return errors.Newf(errors.ErrCodeInvalidPinWrite,
			"cannot set default on output pin %q", p.qualifiedName())
	}
	p.setValue(v)
	return nil
}

// Reset restores the pin to its declared default.
func (p *Pin) Reset() {
	p.setValue(p.defaultVal)
}

func (p *Pin) setValue(v any) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
}

func (p *Pin) cached() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

func (p *Pin) addConnection(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.conns {
		if existing == c {
			return
		}
	}
	p.conns = append(p.conns, c)
}

func (p *Pin) removeConnection(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.conns {
		if existing == c {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			return
		}
	}
}

func (p *Pin) connectedTo(other *Pin) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.conns {
		if c.output == other || c.input == other {
			return true
		}
	}
	return false
}
