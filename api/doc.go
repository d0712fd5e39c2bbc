// Package api exposes the node palette, document validation and graph runs
// over HTTP.
//
// All routes live under /api/v1. Reads need the runs:read scope and
// anything that starts or stops a run needs runs:write; scopes are only
// checked when bearer authentication is enabled. Runs created without
// ?wait=true execute in the background and stream their events at
// /api/v1/runs/:id/events.
package api
