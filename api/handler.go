package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pixelflow/auth"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/runner"
	"github.com/kbukum/pixelflow/server/middleware"
	"github.com/kbukum/pixelflow/sse"
)

// Config controls how API runs execute.
type Config struct {
	// BaseDir resolves relative image paths of submitted documents.
	BaseDir string
	// Timeout applies to runs that do not ask for one. Zero means none.
	Timeout time.Duration
	// MaxTimeout caps requested timeouts. Zero means no cap.
	MaxTimeout time.Duration
}

// Handler serves the /api/v1 routes.
type Handler struct {
	runner *runner.Runner
	runs   *runner.Store
	hub    *sse.Hub
	cfg    Config
	log    *logger.Logger
}

// NewHandler creates a Handler. Runs are remembered in runs and their
// events are published through hub.
func NewHandler(r *runner.Runner, runs *runner.Store, hub *sse.Hub, cfg Config) *Handler {
	return &Handler{
		runner: r,
		runs:   runs,
		hub:    hub,
		cfg:    cfg,
		log:    logger.Get(logger.ComponentAPI),
	}
}

// Register mounts the routes on router. A nil parser disables bearer
// authentication.
func (h *Handler) Register(router gin.IRouter, parser middleware.TokenParser) {
	read := middleware.RequireScope(auth.ScopeRunsRead)
	write := middleware.RequireScope(auth.ScopeRunsWrite)

	v1 := router.Group("/api/v1", middleware.Authenticate(parser))

	v1.GET("/nodes", read, h.ListNodes)
	v1.GET("/nodes/:class", read, h.GetNode)
	v1.POST("/validate", read, h.Validate)

	v1.POST("/runs", write, h.CreateRun)
	v1.GET("/runs", read, h.ListRuns)
	v1.GET("/runs/:id", read, h.GetRun)
	v1.POST("/runs/:id/start", write, h.StartRun)
	v1.POST("/runs/:id/cancel", write, h.CancelRun)
	v1.GET("/runs/:id/events", read, h.StreamRun)
}
