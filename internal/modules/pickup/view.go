package pickup

import (
	"encoding/json"
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// View is the wire shape of a pickup for API responses and bus events.
type View struct {
	ID            types.ID    `json:"id"`
	OwnerID       types.ID    `json:"ownerId"`
	Items         []Item      `json:"items"`
	TotalWeightKg float64     `json:"totalWeightKg"`
	Address       string      `json:"address"`
	Instructions  string      `json:"instructions"`
	ScheduledAt   time.Time   `json:"scheduledAt"`
	TimeSlot      TimeSlot    `json:"timeSlot"`
	Status        Status      `json:"status"`
	AssignedAgent *AgentRef   `json:"assignedAgentId"`
	AwardedPoints int64       `json:"awardedPoints"`
	Gains         json.Number `json:"gains"`
	Version       int         `json:"version"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	AssignedAt    *time.Time  `json:"assignedAt,omitempty"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
	CancelledAt   *time.Time  `json:"cancelledAt,omitempty"`
}

func ToView(p *Pickup) View {
	items := p.Items
	if items == nil {
		items = []Item{}
	}
	return View{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Items:         items,
		TotalWeightKg: p.TotalWeightKg,
		Address:       p.Address,
		Instructions:  p.Instructions,
		ScheduledAt:   p.ScheduledAt,
		TimeSlot:      p.TimeSlot,
		Status:        p.Status,
		AssignedAgent: p.Agent,
		AwardedPoints: p.AwardedPoints,
		Gains:         json.Number(p.Gains.StringFixed(2)),
		Version:       p.StatusVersion,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		AssignedAt:    p.AssignedAt,
		CompletedAt:   p.CompletedAt,
		CancelledAt:   p.CancelledAt,
	}
}

func ToViews(ps []*Pickup) []View {
	out := make([]View, 0, len(ps))
	for _, p := range ps {
		out = append(out, ToView(p))
	}
	return out
}

type DeletedPayload struct {
	PickupID types.ID `json:"pickupId"`
	Version  int      `json:"version"`
}

type PointsAwardedPayload struct {
	PickupID    types.ID    `json:"pickupId"`
	Points      int64       `json:"points"`
	Gains       json.Number `json:"gains"`
	TotalPoints int64       `json:"totalPoints"`
	TotalGains  json.Number `json:"totalGains"`
}

type TotalsView struct {
	UserID      types.ID    `json:"userId"`
	TotalPoints int64       `json:"totalPoints"`
	TotalGains  json.Number `json:"totalGains"`
}

func ToTotalsView(t Totals) TotalsView {
	return TotalsView{UserID: t.OwnerID, TotalPoints: t.Points, TotalGains: json.Number(t.Gains.StringFixed(2))}
}
