// Package dag is the pixelflow dataflow engine: typed pins, validated
// connections, nodes, and the Graph that orders and runs them.
//
// A Graph owns every node, pin and connection added to it. Connections always
// run from an output pin to an input pin of a compatible PinType. Execution is
// single-threaded per run: nodes execute one at a time in a deterministic
// topological order and pull their inputs lazily from the upstream output
// pins, which have already been written because of that order.
//
//	g := dag.NewGraph()
//	_ = g.AddNode(load)
//	_ = g.AddNode(blur)
//	_, _ = g.ConnectByName(load, "image", blur, "image")
//	res, err := g.ExecuteAll(ctx, nil)
//
// Cancellation is cooperative. ExecutionContext.Cancel (or cancelling ctx)
// stops the run before the next node starts and is not reported as an error.
//
// Node kinds are created by class name through a Registry, which is also what
// Graph.LoadDocument uses to rebuild a graph from its persisted Document.
package dag
