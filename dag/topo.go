package dag

import (
	"github.com/kbukum/pixelflow/errors"
)

// downstreamLocked lists the nodes fed by n, one entry per connection, in
// output pin declaration order then connection order.
func (g *Graph) downstreamLocked(n Node) []Node {
	var out []Node
	for _, p := range n.Base().outputs {
		for _, c := range p.Connections() {
			if next, ok := g.nodes[c.input.node.ID()]; ok {
				out = append(out, next)
			}
		}
	}
	return out
}

// HasCycle reports whether the connections form a directed cycle.
func (g *Graph) HasCycle() bool {
	return len(g.FindCycle()) > 0
}

// FindCycle returns the nodes of the first cycle found by a depth-first
// search that starts from nodes in insertion order, or nil when the graph
// is acyclic. The first node is not repeated at the end.
func (g *Graph) FindCycle() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked()
}

func (g *Graph) findCycleLocked() []Node {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack, cycle []Node

	var visit func(n Node) bool
	visit = func(n Node) bool {
		id := n.Base().ID()
		state[id] = onStack
		stack = append(stack, n)
		for _, next := range g.downstreamLocked(n) {
			nextID := next.Base().ID()
			switch state[nextID] {
			case onStack:
				for i, s := range stack {
					if s.Base().ID() == nextID {
						cycle = append([]Node(nil), stack[i:]...)
						break
					}
				}
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.nodeOrder {
		if state[id] == unvisited && visit(g.nodes[id]) {
			return cycle
		}
	}
	return nil
}

func nodeNames(nodes []Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Base().Name()
	}
	return names
}

// ExecutionOrder returns the nodes sorted so that every producer precedes
// its consumers. Independent nodes keep their insertion order. The result
// is cached until the next structural change; callers get a copy.
func (g *Graph) ExecutionOrder() ([]Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.executionOrderLocked()
}

func (g *Graph) executionOrderLocked() ([]Node, error) {
	if g.orderValid {
		return append([]Node(nil), g.order...), nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.nodeOrder {
		for _, next := range g.downstreamLocked(g.nodes[id]) {
			inDegree[next.Base().ID()]++
		}
	}

	queue := make([]Node, 0, len(g.nodes))
	for _, id := range g.nodeOrder {
		if inDegree[id] == 0 {
			queue = append(queue, g.nodes[id])
		}
	}

	order := make([]Node, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, next := range g.downstreamLocked(n) {
			id := next.Base().ID()
			inDegree[id]--
			if inDegree[id] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(g.nodes) {
		return nil, errors.CycleDetected(nodeNames(g.findCycleLocked()))
	}

	g.order = order
	g.orderValid = true
	return append([]Node(nil), order...), nil
}

// dependenciesLocked returns target's transitive upstream nodes followed by
// target itself, each once, dependencies first.
func (g *Graph) dependenciesLocked(target Node) ([]Node, error) {
	const (
		visiting = iota + 1
		visited
	)
	state := make(map[string]int)
	var order, path []Node

	var visit func(n Node) error
	visit = func(n Node) error {
		id := n.Base().ID()
		switch state[id] {
		case visited:
			return nil
		case visiting:
			for i, s := range path {
				if s.Base().ID() == id {
					return errors.CycleDetected(nodeNames(path[i:]))
				}
			}
			return errors.CycleDetected(nil)
		}
		state[id] = visiting
		path = append(path, n)
		for _, in := range n.Base().inputs {
			for _, c := range in.Connections() {
				up, ok := g.nodes[c.output.node.ID()]
				if !ok {
					continue
				}
				if err := visit(up); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = visited
		order = append(order, n)
		return nil
	}

	if err := visit(target); err != nil {
		return nil, err
	}
	return order, nil
}
