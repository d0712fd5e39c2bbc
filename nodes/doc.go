// Package nodes is the built-in node library: image input and output,
// filters, transforms, color adjustments, generators and variables.
//
// Image nodes share the same shape. They declare an "exec" input and
// output that only order execution, an "image" input and/or output, and
// their parameters as typed input pins whose defaults can be edited in a
// project document. Parameters are clamped to the ranges each node
// documents instead of failing. A node whose image input is empty logs a
// warning and produces nothing.
//
// Kinds are registered explicitly:
//
//	reg := dag.NewRegistry()
//	if err := nodes.Register(reg, nodes.Deps{Images: cache.NewImages(cache.Config{})}); err != nil {
//		return err
//	}
package nodes
