package dag

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// DocumentVersion is the project format version written by ToDocument.
const DocumentVersion = "1.0"

// Document is the persisted form of a graph.
type Document struct {
	Version     string               `json:"version" yaml:"version"`
	Nodes       []NodeDocument       `json:"nodes" yaml:"nodes"`
	Connections []ConnectionDocument `json:"connections" yaml:"connections"`
}

// NodeDocument is one persisted node.
type NodeDocument struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"`
	Category    string                 `json:"category" yaml:"category"`
	ClassName   string                 `json:"class_name" yaml:"class_name"`
	Position    Position               `json:"position" yaml:"position"`
	InputPins   map[string]PinDocument `json:"input_pins" yaml:"input_pins"`
	OutputPins  map[string]PinDocument `json:"output_pins" yaml:"output_pins"`
}

// PinDocument is one persisted pin. Value holds the default for inputs and
// the cached value for outputs.
type PinDocument struct {
	Name        string    `json:"name" yaml:"name"`
	Type        PinType   `json:"type" yaml:"type"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Description string    `json:"description" yaml:"description"`
	Value       any       `json:"value" yaml:"value"`
	IsMultiple  bool      `json:"is_multiple" yaml:"is_multiple"`
}

// ConnectionDocument is one persisted connection. Pin ids are informational;
// loading resolves pins by node id and pin name.
type ConnectionDocument struct {
	ID            string `json:"id" yaml:"id"`
	OutputPinID   string `json:"output_pin_id" yaml:"output_pin_id"`
	InputPinID    string `json:"input_pin_id" yaml:"input_pin_id"`
	OutputNodeID  string `json:"output_node_id" yaml:"output_node_id"`
	InputNodeID   string `json:"input_node_id" yaml:"input_node_id"`
	OutputPinName string `json:"output_pin_name" yaml:"output_pin_name"`
	InputPinName  string `json:"input_pin_name" yaml:"input_pin_name"`
}

// LoadReport summarizes a LoadDocument call.
type LoadReport struct {
	Nodes       int
	Connections int
	Warnings    []string
}

// ToDocument snapshots the graph. Values that cannot be persisted, such as
// images, are written as null.
func (g *Graph) ToDocument() *Document {
	g.mu.RLock()
	defer g.mu.RUnlock()

	doc := &Document{
		Version:     DocumentVersion,
		Nodes:       make([]NodeDocument, 0, len(g.nodeOrder)),
		Connections: make([]ConnectionDocument, 0, len(g.connOrder)),
	}
	for _, id := range g.nodeOrder {
		b := g.nodes[id].Base()
		nd := NodeDocument{
			ID:          b.ID(),
			Name:        b.Name(),
			Description: b.Description(),
			Category:    b.Category(),
			ClassName:   b.ClassName(),
			Position:    b.Position(),
			InputPins:   make(map[string]PinDocument, len(b.inputs)),
			OutputPins:  make(map[string]PinDocument, len(b.outputs)),
		}
		for _, p := range b.inputs {
			nd.InputPins[p.name] = pinDocument(p)
		}
		for _, p := range b.outputs {
			nd.OutputPins[p.name] = pinDocument(p)
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, id := range g.connOrder {
		c := g.connections[id]
		doc.Connections = append(doc.Connections, ConnectionDocument{
			ID:            c.id,
			OutputPinID:   c.output.id,
			InputPinID:    c.input.id,
			OutputNodeID:  c.output.node.ID(),
			InputNodeID:   c.input.node.ID(),
			OutputPinName: c.output.name,
			InputPinName:  c.input.name,
		})
	}
	return doc
}

func pinDocument(p *Pin) PinDocument {
	return PinDocument{
		Name:        p.name,
		Type:        p.typ,
		Direction:   p.dir,
		Description: p.description,
		Value:       portable(p.cached(), p.typ),
		IsMultiple:  p.multiple,
	}
}

// LoadDocument replaces the graph's contents with doc. Nodes are rebuilt
// through reg by class name, then their id (when valid and unused), name,
// position and pin values are restored, and connections are remade by pin
// name. Anything that cannot be resolved is skipped and reported as a
// warning; an unknown version is also only a warning.
func (g *Graph) LoadDocument(doc *Document, reg *Registry) (*LoadReport, error) {
	if doc == nil {
		return nil, errors.InvalidInput("document", "document is nil")
	}
	if reg == nil {
		return nil, errors.InvalidInput("registry", "registry is nil")
	}

	g.mu.Lock()
	if g.executing.Load() {
		g.mu.Unlock()
		return nil, errors.GraphBusy("load a document")
	}

	report := &LoadReport{}
	warn := func(format string, args ...any) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(format, args...))
	}
	if doc.Version != DocumentVersion {
		warn("unsupported document version %q, loading anyway", doc.Version)
	}

	events := g.clearLocked()
	byDocID := make(map[string]Node, len(doc.Nodes))

	for i, nd := range doc.Nodes {
		if nd.ID != "" {
			if _, dup := byDocID[nd.ID]; dup {
				warn("node %d: duplicate id %q, skipped", i, nd.ID)
				continue
			}
		}
		n, err := reg.Create(nd.ClassName)
		if err != nil {
			warn("node %d (%s): %v, skipped", i, nd.Name, err)
			continue
		}
		b := n.Base()
		if _, err := uuid.Parse(nd.ID); err == nil {
			if _, taken := g.nodes[nd.ID]; !taken {
				b.restoreID(nd.ID)
			}
		}
		if nd.Name != "" {
			b.SetName(nd.Name)
		}
		b.setPosition(nd.Position)
		restorePins(b, Input, nd.InputPins, warn)
		restorePins(b, Output, nd.OutputPins, warn)

		ev, err := g.addNodeLocked(n)
		if err != nil {
			warn("node %d (%s): %v, skipped", i, nd.Name, err)
			continue
		}
		events = append(events, ev)
		if nd.ID != "" {
			byDocID[nd.ID] = n
		}
		report.Nodes++
	}

	for i, cd := range doc.Connections {
		out, in := byDocID[cd.OutputNodeID], byDocID[cd.InputNodeID]
		if out == nil || in == nil {
			warn("connection %d: node not found, skipped", i)
			continue
		}
		outPin := out.Base().OutputPin(cd.OutputPinName)
		inPin := in.Base().InputPin(cd.InputPinName)
		if outPin == nil || inPin == nil {
			warn("connection %d: pin %s.%s -> %s.%s not found, skipped", i,
				out.Base().Name(), cd.OutputPinName, in.Base().Name(), cd.InputPinName)
			continue
		}
		_, ev, err := g.connectLocked(outPin, inPin)
		if err != nil {
			warn("connection %d: %v, skipped", i, err)
			continue
		}
		events = append(events, ev)
		report.Connections++
	}
	g.mu.Unlock()

	for _, w := range report.Warnings {
		g.log.Warn("document load", logger.Fields("warning", w))
	}
	g.log.Info("document loaded", logger.Fields("nodes", report.Nodes, "connections", report.Connections, "warnings", len(report.Warnings)))
	g.emit(events...)
	return report, nil
}

func restorePins(b *NodeBase, dir Direction, docs map[string]PinDocument, warn func(string, ...any)) {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pd := docs[name]
		p := b.InputPin(name)
		if dir == Output {
			p = b.OutputPin(name)
		}
		if p == nil {
			warn("node %s: unknown %s pin %q ignored", b.Name(), dir, name)
			continue
		}
		if pd.Value == nil {
			continue
		}
		v, err := CoerceValue(pd.Value, p.typ)
		if err != nil {
			warn("node %s: pin %q: %v", b.Name(), name, err)
			continue
		}
		p.setValue(v)
	}
}
