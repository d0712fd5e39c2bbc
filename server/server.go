package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/observability"
	"github.com/kbukum/pixelflow/server/endpoint"
	"github.com/kbukum/pixelflow/server/middleware"
)

// Server is an HTTP server backed by Gin. Plain handlers can be mounted
// next to Gin on the same port, and HTTP/2 cleartext is accepted.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger
	metrics    *observability.Metrics
	stats      endpoint.StatsFunc

	mu       sync.Mutex
	wrappers []middleware.Middleware
	listener net.Listener
}

// New creates a Server. No middleware or routes are registered yet.
func New(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	s := &Server{
		engine: engine,
		mux:    mux,
		config: cfg,
		log:    log.WithComponent(logger.ComponentServer),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s
}

// Engine returns the Gin engine for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler returns the full handler chain: server-level middleware around
// the mux, wrapped for h2c.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	h2s := &http2.Server{MaxConcurrentStreams: 250, IdleTimeout: 120 * time.Second}
	return h2c.NewHandler(middleware.Chain(s.wrappers...)(s.mux), h2s)
}

// Handle mounts handler on the root mux, next to Gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("handler mounted", logger.Fields("pattern", pattern))
}

// Wrap adds server-level middleware. The first added runs first.
func (s *Server) Wrap(mw ...middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wrappers = append(s.wrappers, mw...)
}

// Start binds the port and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.httpServer.Handler = s.Handler()

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting at most five seconds for requests.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server shutdown error", logger.ErrorFields("shutdown", err))
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// SetMetrics records request metrics once ApplyMiddleware runs.
func (s *Server) SetMetrics(m *observability.Metrics) { s.metrics = m }

// ApplyMiddleware installs the standard stack: panic recovery, request ids
// and request telemetry on Gin, then CORS, body size limits and request
// logging around the mux.
func (s *Server) ApplyMiddleware() {
	s.engine.Use(middleware.Recovery(s.log))
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Telemetry(s.metrics))
	if s.config.RateLimit > 0 {
		s.engine.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: s.config.RateLimit}))
	}

	s.Wrap(middleware.RequestLogger(s.log), middleware.CORS(&s.config.CORS))
	if size, err := ParseSize(s.config.MaxBodySize); err == nil {
		s.Wrap(middleware.BodySizeLimit(size))
	}
}

// RegisterDefaultEndpoints registers /health, /alive, /ready, /version and
// /metrics.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/alive", endpoint.Liveness(serviceName))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/version", endpoint.Version(serviceName))
	s.engine.GET("/metrics", endpoint.Metrics(func(ctx context.Context) map[string]any {
		s.mu.Lock()
		stats := s.stats
		s.mu.Unlock()
		if stats == nil {
			return nil
		}
		return stats(ctx)
	}))
}

// SetStats sets the service counters reported under /metrics.
func (s *Server) SetStats(fn endpoint.StatsFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = fn
}

// ApplyDefaults applies the standard middleware and default endpoints.
func (s *Server) ApplyDefaults(serviceName string, checker endpoint.HealthChecker) {
	s.ApplyMiddleware()
	s.RegisterDefaultEndpoints(serviceName, checker)
}
