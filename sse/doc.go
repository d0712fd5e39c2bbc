// Package sse streams run events to HTTP clients as Server-Sent Events.
//
// A Hub keeps the connected clients and routes each message to the clients
// whose id matches the message's glob pattern. Clients following a run use
// ids of the form "run:<run id>:<subscriber>", so RunPattern reaches every
// subscriber of one run. Forward subscribes to a graph and publishes its
// execution events to those clients.
//
//	hub := sse.NewHub()
//	go hub.Run()
//	stop := sse.Forward(graph, hub, runID)
//	defer stop()
package sse
