package dag

import (
	"sync"
	"sync/atomic"

	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// Graph owns nodes, their pins and the connections between them, and drives
// execution. All methods are safe for concurrent use; structural mutations
// fail with GRAPH_BUSY while a run is in progress.
type Graph struct {
	mu          sync.RWMutex
	nodes       map[string]Node
	nodeOrder   []string
	connections map[string]*Connection
	connOrder   []string
	pins        map[string]*Pin
	order       []Node
	orderValid  bool
	middleware  []Middleware

	executing atomic.Bool
	activeMu  sync.Mutex
	active    *ExecutionContext

	listenersMu  sync.RWMutex
	listeners    []listener
	nextListener int

	log *logger.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithLogger sets the graph's logger.
func WithLogger(log *logger.Logger) GraphOption {
	return func(g *Graph) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMiddleware installs node execution middleware, outermost first.
func WithMiddleware(mw ...Middleware) GraphOption {
	return func(g *Graph) { g.middleware = append(g.middleware, mw...) }
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodes:       make(map[string]Node),
		connections: make(map[string]*Connection),
		pins:        make(map[string]*Pin),
		log:         logger.Get(logger.ComponentDAG),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stats counts the graph's contents.
type Stats struct {
	Nodes       int `json:"nodes"`
	Connections int `json:"connections"`
	Pins        int `json:"pins"`
}

// Stats returns node, connection and pin counts.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{Nodes: len(g.nodes), Connections: len(g.connections), Pins: len(g.pins)}
}

// AddNode adds n to the graph and indexes its pins. A node can belong to
// only one graph at a time.
func (g *Graph) AddNode(n Node) error {
	if n == nil || n.Base() == nil {
		return errors.InvalidInput("node", "node is nil")
	}
	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return errors.GraphBusy("add a node")
	}
	ev, err := g.addNodeLocked(n)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	g.emit(ev)
	return nil
}

func (g *Graph) addNodeLocked(n Node) (Event, error) {
	b := n.Base()
	if b.graph.Load() != nil {
		return Event{}, errors.AlreadyExists("node", b.ID()).
			WithDetail("reason", "node already belongs to a graph")
	}
	if _, exists := g.nodes[b.ID()]; exists {
		return Event{}, errors.AlreadyExists("node", b.ID())
	}
	g.nodes[b.ID()] = n
	g.nodeOrder = append(g.nodeOrder, b.ID())
	for _, p := range b.Pins() {
		g.pins[p.id] = p
	}
	b.graph.Store(g)
	g.orderValid = false

	g.log.Debug("node added", b.logFields())
	return nodeEvent(EventNodeAdded, b), nil
}

// RemoveNode removes n together with every connection attached to its pins.
func (g *Graph) RemoveNode(n Node) error {
	if n == nil {
		return errors.InvalidInput("node", "node is nil")
	}
	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return errors.GraphBusy("remove a node")
	}
	if g.nodes[n.Base().ID()] != n {
		g.mu.Unlock()
		return errors.NotFound("node", n.Base().ID())
	}
	events := g.removeNodeLocked(n)
	g.mu.Unlock()
	g.emit(events...)
	return nil
}

func (g *Graph) removeNodeLocked(n Node) []Event {
	b := n.Base()
	var events []Event
	for _, p := range b.Pins() {
		for _, c := range p.Connections() {
			events = append(events, g.removeConnectionLocked(c))
		}
		delete(g.pins, p.id)
	}
	delete(g.nodes, b.ID())
	g.nodeOrder = removeID(g.nodeOrder, b.ID())
	b.graph.Store(nil)
	g.orderValid = false

	g.log.Debug("node removed", b.logFields())
	return append(events, nodeEvent(EventNodeRemoved, b))
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodesLocked()
}

func (g *Graph) nodesLocked() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeByName returns the first node, in insertion order, with the given name.
func (g *Graph) NodeByName(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; n.Base().Name() == name {
			return n, true
		}
	}
	return nil, false
}

// Pin returns the pin with the given id.
func (g *Graph) Pin(id string) (*Pin, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.pins[id]
	return p, ok
}

// Connection returns the connection with the given id.
func (g *Graph) Connection(id string) (*Connection, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.connections[id]
	return c, ok
}

// Connections returns all connections in the order they were made.
func (g *Graph) Connections() []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Connection, 0, len(g.connOrder))
	for _, id := range g.connOrder {
		out = append(out, g.connections[id])
	}
	return out
}

// Connect wires output to input. Both pins must belong to this graph, the
// first must be an output and their types must be compatible. An existing
// connection on a single-connection input is left in place; use
// ConnectReplacing to supersede it.
func (g *Graph) Connect(output, input *Pin) (*Connection, error) {
	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return nil, errors.GraphBusy("connect pins")
	}
	c, ev, err := g.connectLocked(output, input)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	g.emit(ev)
	return c, nil
}

// ConnectReplacing removes the connections that a new output -> input
// connection supersedes on single-connection endpoints, then connects. If
// the new connection is invalid nothing is removed.
func (g *Graph) ConnectReplacing(output, input *Pin) (*Connection, error) {
	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return nil, errors.GraphBusy("connect pins")
	}
	if err := g.checkOwnedLocked(output, input); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	if err := checkConnectable(output, input); err != nil {
		g.mu.Unlock()
		return nil, err
	}

	var events []Event
	for _, p := range []*Pin{input, output} {
		if p.multiple {
			continue
		}
		for _, c := range p.Connections() {
			events = append(events, g.removeConnectionLocked(c))
		}
	}
	c, ev, err := g.connectLocked(output, input)
	g.mu.Unlock()

	if err == nil {
		events = append(events, ev)
	}
	g.emit(events...)
	return c, err
}

// ConnectByName connects outNode's output pin outPin to inNode's input pin inPin.
func (g *Graph) ConnectByName(outNode Node, outPin string, inNode Node, inPin string) (*Connection, error) {
	if outNode == nil || inNode == nil {
		return nil, errors.InvalidInput("node", "node is nil")
	}
	out := outNode.Base().OutputPin(outPin)
	if out == nil {
		return nil, errors.NotFound("output pin", outNode.Base().Name()+"."+outPin)
	}
	in := inNode.Base().InputPin(inPin)
	if in == nil {
		return nil, errors.NotFound("input pin", inNode.Base().Name()+"."+inPin)
	}
	return g.Connect(out, in)
}

func (g *Graph) checkOwnedLocked(pins ...*Pin) error {
	for _, p := range pins {
		if p == nil {
			return errors.IncompatibleConnection("both pins are required")
		}
		if g.pins[p.id] != p {
			return errors.NotFound("pin", p.id).WithDetail("pin", p.qualifiedName())
		}
	}
	return nil
}

func (g *Graph) connectLocked(output, input *Pin) (*Connection, Event, error) {
	if err := g.checkOwnedLocked(output, input); err != nil {
		return nil, Event{}, err
	}
	if output.connectedTo(input) {
		return nil, Event{}, errors.AlreadyExists("connection", "").
			WithDetail("connection", output.qualifiedName()+" -> "+input.qualifiedName())
	}
	c, err := newConnection(output, input)
	if err != nil {
		return nil, Event{}, err
	}
	g.connections[c.id] = c
	g.connOrder = append(g.connOrder, c.id)
	g.orderValid = false

	g.log.Debug("pins connected", logger.Fields(logger.FieldConnection, c.id, "from", output.qualifiedName(), "to", input.qualifiedName()))
	return c, connectionEvent(EventConnectionAdded, c), nil
}

// Disconnect removes c from both of its pins and from the graph.
func (g *Graph) Disconnect(c *Connection) error {
	if c == nil {
		return errors.InvalidInput("connection", "connection is nil")
	}
	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return errors.GraphBusy("disconnect pins")
	}
	if g.connections[c.id] != c {
		g.mu.Unlock()
		return errors.NotFound("connection", c.id)
	}
	ev := g.removeConnectionLocked(c)
	g.mu.Unlock()
	g.emit(ev)
	return nil
}

func (g *Graph) removeConnectionLocked(c *Connection) Event {
	c.detach()
	delete(g.connections, c.id)
	g.connOrder = removeID(g.connOrder, c.id)
	g.orderValid = false
	return connectionEvent(EventConnectionRemoved, c)
}

// MoveNode records a new editor position. It is allowed during a run since
// positions never affect execution.
func (g *Graph) MoveNode(n Node, pos Position) error {
	if n == nil {
		return errors.InvalidInput("node", "node is nil")
	}
	b := n.Base()
	g.mu.RLock()
	owned := g.nodes[b.ID()] == n
	g.mu.RUnlock()
	if !owned {
		return errors.NotFound("node", b.ID())
	}
	b.setPosition(pos)

	ev := nodeEvent(EventNodeMoved, b)
	ev.Position = pos
	g.emit(ev)
	return nil
}

// Clear removes every node and connection.
func (g *Graph) Clear() error {
	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return errors.GraphBusy("clear the graph")
	}
	events := g.clearLocked()
	g.mu.Unlock()
	g.emit(events...)
	return nil
}

func (g *Graph) clearLocked() []Event {
	var events []Event
	for _, n := range g.nodesLocked() {
		events = append(events, g.removeNodeLocked(n)...)
	}
	return events
}

// CandidatePins returns the pins on other nodes that p could legally be
// connected to, in node insertion and pin declaration order.
func (g *Graph) CandidatePins(p *Pin) []*Pin {
	if p == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Pin
	for _, id := range g.nodeOrder {
		b := g.nodes[id].Base()
		if b == p.node {
			continue
		}
		pins := b.inputs
		if p.dir == Input {
			pins = b.outputs
		}
		for _, candidate := range pins {
			if IsCompatible(p.typ, candidate.typ) {
				out = append(out, candidate)
			}
		}
	}
	return out
}

// Use appends node execution middleware, outermost first. It takes effect
// from the next run.
func (g *Graph) Use(mw ...Middleware) {
	g.mu.Lock()
	g.middleware = append(g.middleware, mw...)
	g.mu.Unlock()
}

// IsExecuting reports whether a run is in progress.
func (g *Graph) IsExecuting() bool { return g.executing.Load() }

// ActiveContext returns the running ExecutionContext, or nil when idle.
func (g *Graph) ActiveContext() *ExecutionContext {
	g.activeMu.Lock()
	defer g.activeMu.Unlock()
	return g.active
}

// CancelExecution cancels the active run, if any.
func (g *Graph) CancelExecution() {
	if ec := g.ActiveContext(); ec != nil {
		g.log.Info("execution cancel requested", logger.Fields(logger.FieldRunID, ec.RunID()))
		ec.Cancel()
	}
}

func (g *Graph) setActive(ec *ExecutionContext) {
	g.activeMu.Lock()
	g.active = ec
	g.activeMu.Unlock()
}

func removeID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
