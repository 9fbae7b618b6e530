package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/agent"
)

type AgentHandler struct {
	agents  agent.Directory
	timeout time.Duration
	log     *logger.Logger
}

func NewAgentHandler(agents agent.Directory, timeout time.Duration, log *logger.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, timeout: timeout, log: log}
}

// List handles GET /api/delivery-agents: the active agents an operator can assign.
func (h *AgentHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	agents, err := h.agents.List(ctx)
	if err != nil {
		writeError(c, h.log, apperr.Wrap(apperr.CodeStorage, err, "agent directory unavailable"))
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"agents": agents})
}
