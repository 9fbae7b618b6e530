// README: Material detection handler (quota-guarded Gemini oracle).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/http/middleware"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/aiusage"
)

type AIHandler struct {
	ai  *aiusage.Service
	log *logger.Logger
}

func NewAIHandler(aiSvc *aiusage.Service, log *logger.Logger) *AIHandler {
	return &AIHandler{ai: aiSvc, log: log}
}

type detectReq struct {
	Description string `json:"description" validate:"required,max=2000"`
}

// Detect handles POST /api/detections. The result only prefills a create form.
func (h *AIHandler) Detect(c *gin.Context) {
	var req detectReq
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.log, err)
		return
	}
	uid := middleware.CallerUID(c)
	detection, err := h.ai.Detect(c.Request.Context(), uid, req.Description)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	remaining, err := h.ai.Remaining(c.Request.Context(), uid)
	if err != nil {
		h.log.Warn(c.Request.Context(), "ai quota lookup failed", err)
		remaining = -1
	}
	writeJSON(c, http.StatusOK, gin.H{"detection": detection, "tokensRemaining": remaining})
}

// Quota handles GET /api/detections/quota.
func (h *AIHandler) Quota(c *gin.Context) {
	remaining, err := h.ai.Remaining(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tokensRemaining": remaining})
}
