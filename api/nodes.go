package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/project"
	"github.com/kbukum/pixelflow/server"
)

// ListNodes returns the registered node kinds, optionally filtered by
// ?category=.
func (h *Handler) ListNodes(c *gin.Context) {
	all := h.runner.Registry().List()
	category := c.Query("category")
	if category == "" {
		server.RespondList(c, all)
		return
	}
	filtered := make([]dag.Metadata, 0, len(all))
	for _, m := range all {
		if m.Category == category {
			filtered = append(filtered, m)
		}
	}
	server.RespondList(c, filtered)
}

// GetNode returns one node kind by class name.
func (h *Handler) GetNode(c *gin.Context) {
	class := c.Param("class")
	meta, ok := h.runner.Registry().Get(class)
	if !ok {
		server.RespondWithError(c, errors.NotFound("node class", class))
		return
	}
	server.RespondOK(c, meta)
}

// Validate builds the posted document without running it and reports
// graph errors and warnings. Structural problems in the document itself
// fail the request.
func (h *Handler) Validate(c *gin.Context) {
	var doc dag.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		server.RespondWithError(c, errors.InvalidInput("document", err.Error()))
		return
	}
	report, err := project.Check(&doc, h.runner.Registry(), dag.WithLogger(logger.Nop()))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, report)
}
