// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/http/handlers"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/http/middleware"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/infra"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/agent"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/aiusage"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/assignment"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/pickup"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/realtime"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type Deps struct {
	Pickups    *pickup.Service
	Assignment *assignment.Coordinator
	Agents     agent.Directory
	AI         *aiusage.Service
	Realtime   *realtime.Handler
	Verifier   infra.TokenVerifier
	Gatherer   prometheus.Gatherer
	Logger     *logger.Logger
	// StoreTimeout bounds directory reads made directly by handlers.
	StoreTimeout time.Duration
}

func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = 5 * time.Second
	}

	r := gin.New()
	r.Use(middleware.RequestID(log), middleware.Logging(log), middleware.Recovery(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if deps.Realtime != nil {
		ws := handlers.NewWebsocketHandler(deps.Realtime)
		r.GET("/ws", middleware.AuthWebsocket(deps.Verifier, log), ws.Serve)
	}

	api := r.Group("/api", middleware.Auth(deps.Verifier, log))
	operator := middleware.RequireRole(types.RoleOperator, log)

	pickups := handlers.NewPickupHandler(deps.Pickups, deps.Assignment, log)
	api.POST("/pickups", pickups.Create)
	api.GET("/pickups", operator, pickups.List)
	api.GET("/pickups/my", pickups.ListMine)
	api.GET("/pickups/assigned", middleware.RequireRole(types.RoleAgent, log), pickups.ListAssigned)
	api.GET("/pickups/:id", pickups.Get)
	api.GET("/pickups/:id/history", pickups.History)
	api.PUT("/pickups/:id", pickups.Update)
	api.DELETE("/pickups/:id", pickups.Cancel)
	api.PUT("/pickups/:id/assign", operator, pickups.Assign)
	api.PUT("/pickups/:id/complete", operator, pickups.Complete)
	api.GET("/rewards/me", pickups.Totals)

	agents := handlers.NewAgentHandler(deps.Agents, deps.StoreTimeout, log)
	api.GET("/delivery-agents", operator, agents.List)

	if deps.AI != nil {
		ai := handlers.NewAIHandler(deps.AI, log)
		api.POST("/detections", ai.Detect)
		api.GET("/detections/quota", ai.Quota)
	}

	return r
}
