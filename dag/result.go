package dag

import "time"

// Status is the outcome of a run or of one node within it.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	// StatusSkipped marks nodes that never started because the run stopped
	// earlier, or whose re-entrancy guard was already held.
	StatusSkipped Status = "skipped"
)

// Result holds the outcome of a graph execution.
type Result struct {
	RunID    string
	Status   Status
	Nodes    []NodeResult // in execution order
	Duration time.Duration
	Progress float64
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	NodeID    string
	Name      string
	ClassName string
	Status    Status
	Duration  time.Duration
	Error     error
}

// Node returns the result for the node with the given id.
func (r *Result) Node(id string) (NodeResult, bool) {
	for _, nr := range r.Nodes {
		if nr.NodeID == id {
			return nr, true
		}
	}
	return NodeResult{}, false
}

// Count returns how many nodes ended with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, nr := range r.Nodes {
		if nr.Status == s {
			n++
		}
	}
	return n
}

func (r *Result) skip(nodes []Node) {
	for _, n := range nodes {
		b := n.Base()
		r.Nodes = append(r.Nodes, NodeResult{
			NodeID:    b.ID(),
			Name:      b.Name(),
			ClassName: b.ClassName(),
			Status:    StatusSkipped,
		})
	}
}
