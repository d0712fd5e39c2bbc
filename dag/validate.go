package dag

import (
	"fmt"
	"strings"
)

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueCycle               IssueKind = "cycle"
	IssueIncompatibleTypes   IssueKind = "incompatible_types"
	IssueDanglingConnection  IssueKind = "dangling_connection"
	IssueIsolatedNode        IssueKind = "isolated_node"
	IssueMultipleConnections IssueKind = "multiple_connections"
)

// ValidationIssue is one error or warning found by Validate.
type ValidationIssue struct {
	Kind         IssueKind `json:"kind"`
	Message      string    `json:"message"`
	NodeID       string    `json:"node_id,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
}

// ValidationResult separates fatal errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// IsValid reports whether no errors were found.
func (r ValidationResult) IsValid() bool { return len(r.Errors) == 0 }

// ErrorMessages returns the error messages in discovery order.
func (r ValidationResult) ErrorMessages() []string {
	return messages(r.Errors)
}

// WarningMessages returns the warning messages in discovery order.
func (r ValidationResult) WarningMessages() []string {
	return messages(r.Warnings)
}

func messages(issues []ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Message
	}
	return out
}

// Validate inspects the graph without modifying it. Errors: a cycle, a
// connection between incompatible pin types, a connection whose pins are no
// longer indexed. Warnings: a node with no connections, a single-connection
// input holding several connections.
func (g *Graph) Validate() ValidationResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.validateLocked()
}

func (g *Graph) validateLocked() ValidationResult {
	res := ValidationResult{Errors: []ValidationIssue{}, Warnings: []ValidationIssue{}}

	if cycle := g.findCycleLocked(); len(cycle) > 0 {
		names := nodeNames(cycle)
		res.Errors = append(res.Errors, ValidationIssue{
			Kind: IssueCycle,
			Message: fmt.Sprintf("graph contains a cycle: %s -> %s",
				strings.Join(names, " -> "), names[0]),
			NodeID: cycle[0].Base().ID(),
		})
	}

	for _, id := range g.connOrder {
		c := g.connections[id]
		if g.pins[c.output.id] != c.output || g.pins[c.input.id] != c.input {
			res.Errors = append(res.Errors, ValidationIssue{
				Kind:         IssueDanglingConnection,
				Message:      fmt.Sprintf("connection %s references a pin outside the graph", c),
				ConnectionID: c.id,
			})
			continue
		}
		if !IsCompatible(c.output.typ, c.input.typ) {
			res.Errors = append(res.Errors, ValidationIssue{
				Kind: IssueIncompatibleTypes,
				Message: fmt.Sprintf("connection %s joins incompatible types %s and %s",
					c, c.output.typ.Name(), c.input.typ.Name()),
				ConnectionID: c.id,
			})
		}
	}

	for _, id := range g.nodeOrder {
		b := g.nodes[id].Base()
		if !b.hasConnections() {
			res.Warnings = append(res.Warnings, ValidationIssue{
				Kind:    IssueIsolatedNode,
				Message: fmt.Sprintf("node %q has no connections", b.Name()),
				NodeID:  id,
			})
		}
		for _, p := range b.inputs {
			if n := len(p.ConnectionIDs()); !p.multiple && n > 1 {
				res.Warnings = append(res.Warnings, ValidationIssue{
					Kind:    IssueMultipleConnections,
					Message: fmt.Sprintf("input %s accepts one connection but has %d", p.qualifiedName(), n),
					NodeID:  id,
				})
			}
		}
	}
	return res
}
