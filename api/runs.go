package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/project"
	"github.com/kbukum/pixelflow/runner"
	"github.com/kbukum/pixelflow/server"
	"github.com/kbukum/pixelflow/sse"
)

// RunRequest submits a document for execution.
type RunRequest struct {
	Document  *dag.Document     `json:"document" binding:"required"`
	Node      string            `json:"node"`
	Overrides map[string]string `json:"overrides"`
	TimeoutMs int64             `json:"timeout_ms" binding:"min=0"`
}

// RunView is the API form of a run.
type RunView struct {
	ID      string          `json:"id"`
	State   runner.State    `json:"state"`
	Summary *runner.Summary `json:"summary,omitempty"`
}

func viewOf(run *runner.Run) RunView {
	summary, _ := run.Result()
	return RunView{ID: run.ID(), State: run.State(), Summary: summary}
}

// CreateRun prepares a run of the posted document. With ?wait=true it runs
// to completion and answers with the summary; otherwise it answers 202 and
// the run continues in the background. ?start=false leaves the run pending
// until POST /runs/:id/start, so event subscribers can attach first.
func (h *Handler) CreateRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := project.ValidateDocument(req.Document); err != nil {
		server.RespondWithError(c, err)
		return
	}

	run, err := h.runner.Prepare(req.Document, runner.Options{
		Node:      req.Node,
		Overrides: req.Overrides,
		BaseDir:   h.cfg.BaseDir,
		Timeout:   h.timeout(req.TimeoutMs),
		Confine:   true,
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.runs.Add(run)
	h.watch(run)

	log := h.log.WithContext(c.Request.Context()).WithFields(logger.Fields(logger.FieldRunID, run.ID()))
	// Runs outlive the request that created them.
	ctx := context.WithoutCancel(c.Request.Context())

	switch {
	case c.Query("wait") == "true":
		summary, err := run.Execute(ctx)
		if err != nil && summary == nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondOK(c, viewOf(run))
	case c.Query("start") == "false":
		log.Debug("run created")
		server.RespondCreated(c, viewOf(run))
	default:
		run.Start(ctx)
		log.Debug("run started in background")
		server.RespondAccepted(c, viewOf(run))
	}
}

// timeout resolves a requested timeout against the configured default and cap.
func (h *Handler) timeout(ms int64) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if d == 0 {
		d = h.cfg.Timeout
	}
	if h.cfg.MaxTimeout > 0 && (d == 0 || d > h.cfg.MaxTimeout) {
		d = h.cfg.MaxTimeout
	}
	return d
}

// watch forwards the run's graph events to its stream subscribers and
// publishes the summary once it finishes.
func (h *Handler) watch(run *runner.Run) {
	stop := sse.Forward(run.Graph(), h.hub, run.ID())
	go func() {
		<-run.Done()
		stop()
		summary, _ := run.Result()
		if err := sse.Publish(h.hub, run.ID(), sse.EventSummary, summary); err != nil {
			h.log.Warn("run summary not published", logger.ErrorFields("publish", err))
		}
	}()
}

// ListRuns returns the remembered runs, oldest first.
func (h *Handler) ListRuns(c *gin.Context) {
	runs := h.runs.List()
	views := make([]RunView, len(runs))
	for i, run := range runs {
		views[i] = viewOf(run)
	}
	server.RespondList(c, views)
}

// GetRun returns one run.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, viewOf(run))
}

// StartRun starts a pending run. Starting a run twice is a conflict.
func (h *Handler) StartRun(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if run.State() != runner.StatePending {
		server.RespondWithError(c, errors.GraphBusy(fmt.Sprintf("start run %s in state %s", run.ID(), run.State())))
		return
	}
	run.Start(context.WithoutCancel(c.Request.Context()))
	server.RespondAccepted(c, viewOf(run))
}

// CancelRun asks a run to stop before its next node. A pending run is
// started so that it finishes as cancelled. Cancelling a finished run
// changes nothing.
func (h *Handler) CancelRun(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	state := run.State()
	run.Cancel()
	if state == runner.StatePending {
		run.Start(context.WithoutCancel(c.Request.Context()))
	}
	h.log.Info("run cancelled", logger.Fields(logger.FieldRunID, run.ID(), "state", string(state)))
	server.RespondAccepted(c, viewOf(run))
}

// StreamRun streams the run's events as server-sent events. A run that has
// already finished sends its summary right after the connected event.
func (h *Handler) StreamRun(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	client := sse.NewClient(sse.RunClientID(run.ID(), uuid.NewString()),
		sse.WithRunID(run.ID()),
		sse.WithMetadata("remote_addr", c.ClientIP()),
	)
	sse.ServeSSE(h.hub, c.Writer, c.Request, client, func() {
		if run.State() != runner.StateFinished {
			return
		}
		summary, _ := run.Result()
		if err := sse.Publish(singleClient{h.hub, client.ID()}, run.ID(), sse.EventSummary, summary); err != nil {
			h.log.Warn("run summary not published", logger.ErrorFields("publish", err))
		}
	})
}

// singleClient narrows a broadcast to one client id.
type singleClient struct {
	hub *sse.Hub
	id  string
}

func (s singleClient) BroadcastToPattern(_ string, event string, data []byte) {
	s.hub.BroadcastToPattern(s.id, event, data)
}
