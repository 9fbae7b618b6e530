// README: Pickup request API: create/edit/cancel for owners, assign/complete for operators, reads.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/http/middleware"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/assignment"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/pickup"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type PickupHandler struct {
	pickups *pickup.Service
	assign  *assignment.Coordinator
	log     *logger.Logger
}

func NewPickupHandler(pickups *pickup.Service, assign *assignment.Coordinator, log *logger.Logger) *PickupHandler {
	return &PickupHandler{pickups: pickups, assign: assign, log: log}
}

type itemReq struct {
	MaterialType string  `json:"materialType" validate:"required"`
	Quantity     int     `json:"quantity" validate:"min=1"`
	WeightKg     float64 `json:"weightKg" validate:"gte=0,lte=10000"`
}

type createPickupReq struct {
	Items         []itemReq `json:"items" validate:"required,min=1,max=50,dive"`
	TotalWeightKg float64   `json:"totalWeightKg" validate:"gt=0,lte=10000"`
	Address       string    `json:"address" validate:"required,max=500"`
	Instructions  string    `json:"instructions" validate:"max=1000"`
	ScheduledAt   time.Time `json:"scheduledAt" validate:"required"`
	TimeSlot      string    `json:"timeSlot" validate:"required"`
}

type updatePickupReq struct {
	Items         *[]itemReq `json:"items" validate:"omitempty,min=1,max=50,dive"`
	TotalWeightKg *float64   `json:"totalWeightKg" validate:"omitempty,gt=0,lte=10000"`
	Address       *string    `json:"address" validate:"omitempty,max=500"`
	Instructions  *string    `json:"instructions" validate:"omitempty,max=1000"`
	ScheduledAt   *time.Time `json:"scheduledAt"`
	TimeSlot      *string    `json:"timeSlot"`
}

type assignPickupReq struct {
	DeliveryAgentID string    `json:"deliveryAgentId" validate:"required"`
	PickupTime      time.Time `json:"pickupTime" validate:"required"`
}

type pickupList struct {
	Pickups []pickup.View `json:"pickups"`
}

func toItems(in []itemReq) []pickup.Item {
	out := make([]pickup.Item, 0, len(in))
	for _, it := range in {
		out = append(out, pickup.Item{
			Material: points.Material(strings.ToLower(strings.TrimSpace(it.MaterialType))),
			Quantity: it.Quantity,
			WeightKg: it.WeightKg,
		})
	}
	return out
}

// Create handles POST /api/pickups. The owner is always the caller.
func (h *PickupHandler) Create(c *gin.Context) {
	var req createPickupReq
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.log, err)
		return
	}
	p, err := h.pickups.Create(c.Request.Context(), pickup.CreateCommand{
		OwnerID:       types.ID(middleware.CallerUID(c)),
		Items:         toItems(req.Items),
		TotalWeightKg: req.TotalWeightKg,
		Address:       strings.TrimSpace(req.Address),
		Instructions:  strings.TrimSpace(req.Instructions),
		ScheduledAt:   req.ScheduledAt,
		TimeSlot:      pickup.TimeSlot(req.TimeSlot),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, pickup.ToView(p))
}

// ListMine handles GET /api/pickups/my.
func (h *PickupHandler) ListMine(c *gin.Context) {
	ps, err := h.pickups.ListByOwner(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickupList{Pickups: pickup.ToViews(ps)})
}

// List handles GET /api/pickups?status=pending,assigned for the operator console.
func (h *PickupHandler) List(c *gin.Context) {
	var statuses []pickup.Status
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, pickup.Status(strings.ToLower(raw)))
		}
	}
	ps, err := h.pickups.ListByStatus(c.Request.Context(), statuses...)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickupList{Pickups: pickup.ToViews(ps)})
}

// ListAssigned handles GET /api/pickups/assigned: open work for the calling agent.
func (h *PickupHandler) ListAssigned(c *gin.Context) {
	ps, err := h.pickups.ListByStatus(c.Request.Context(), pickup.StatusAssigned)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	mine := ps[:0]
	for _, p := range ps {
		if p.Agent != nil && p.Agent.ID == uid {
			mine = append(mine, p)
		}
	}
	writeJSON(c, http.StatusOK, pickupList{Pickups: pickup.ToViews(mine)})
}

// Get handles GET /api/pickups/:id.
func (h *PickupHandler) Get(c *gin.Context) {
	p, err := h.pickups.GetFor(c.Request.Context(), types.ID(c.Param("id")), middleware.Caller(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickup.ToView(p))
}

// History handles GET /api/pickups/:id/history.
func (h *PickupHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	id := types.ID(c.Param("id"))
	if _, err := h.pickups.GetFor(ctx, id, middleware.Caller(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	events, err := h.pickups.History(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

// Update handles PUT /api/pickups/:id.
func (h *PickupHandler) Update(c *gin.Context) {
	var req updatePickupReq
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.log, err)
		return
	}
	patch := pickup.Patch{
		TotalWeightKg: req.TotalWeightKg,
		Address:       req.Address,
		Instructions:  req.Instructions,
		ScheduledAt:   req.ScheduledAt,
	}
	if req.Items != nil {
		items := toItems(*req.Items)
		patch.Items = &items
	}
	if req.TimeSlot != nil {
		slot := pickup.TimeSlot(*req.TimeSlot)
		patch.TimeSlot = &slot
	}

	p, err := h.pickups.Edit(c.Request.Context(), pickup.EditCommand{
		ID:    types.ID(c.Param("id")),
		Actor: middleware.Caller(c),
		Patch: patch,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickup.ToView(p))
}

// Cancel handles DELETE /api/pickups/:id. The record is kept with status cancelled.
func (h *PickupHandler) Cancel(c *gin.Context) {
	p, err := h.pickups.Cancel(c.Request.Context(), pickup.CancelCommand{
		ID:    types.ID(c.Param("id")),
		Actor: middleware.Caller(c),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickup.ToView(p))
}

// Assign handles PUT /api/pickups/:id/assign.
func (h *PickupHandler) Assign(c *gin.Context) {
	var req assignPickupReq
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.log, err)
		return
	}
	p, err := h.assign.Assign(c.Request.Context(), assignment.Command{
		PickupID:    types.ID(c.Param("id")),
		AgentID:     types.ID(strings.TrimSpace(req.DeliveryAgentID)),
		ScheduledAt: req.PickupTime,
		Actor:       middleware.Caller(c),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickup.ToView(p))
}

// Complete handles PUT /api/pickups/:id/complete.
func (h *PickupHandler) Complete(c *gin.Context) {
	p, err := h.pickups.Complete(c.Request.Context(), pickup.CompleteCommand{
		ID:    types.ID(c.Param("id")),
		Actor: middleware.Caller(c),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickup.ToView(p))
}

// Totals handles GET /api/rewards/me.
func (h *PickupHandler) Totals(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	if uid == "" {
		writeError(c, h.log, apperr.New(apperr.CodeUnauthorized, "caller identity required"))
		return
	}
	t, err := h.pickups.Totals(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pickup.ToTotalsView(t))
}
