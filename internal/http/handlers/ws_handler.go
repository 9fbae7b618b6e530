package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/http/middleware"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/realtime"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type WebsocketHandler struct {
	rt *realtime.Handler
}

func NewWebsocketHandler(rt *realtime.Handler) *WebsocketHandler {
	return &WebsocketHandler{rt: rt}
}

// Serve handles GET /ws. Room membership is decided by the realtime handshake.
func (h *WebsocketHandler) Serve(c *gin.Context) {
	h.rt.Serve(c.Writer, c.Request, realtime.Identity{
		UserID: types.ID(middleware.CallerUID(c)),
		Role:   middleware.CallerRole(c),
	})
}
