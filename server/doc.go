// Package server provides the HTTP server behind "pixelflow serve": a Gin
// engine mounted on a ServeMux and served with HTTP/2 cleartext support.
//
// Middleware comes in two layers. Server-level middleware (CORS, body size
// limits, request logging) wraps the whole mux; Gin middleware (recovery,
// request ids, rate limiting, bearer auth) runs inside the engine. The
// default endpoints are /health, /alive, /ready, /version and /metrics.
package server
