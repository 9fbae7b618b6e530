// README: Pickup aggregate, status machine and reward totals.
package pickup

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type TimeSlot string

const (
	SlotMorning   TimeSlot = "10AM-12PM"
	SlotAfternoon TimeSlot = "4PM-5PM"
	SlotEvening   TimeSlot = "7PM-8PM"
)

func (t TimeSlot) Valid() bool {
	switch t {
	case SlotMorning, SlotAfternoon, SlotEvening:
		return true
	}
	return false
}

type Item struct {
	Material points.Material `json:"materialType"`
	Quantity int             `json:"quantity"`
	WeightKg float64         `json:"weightKg"`
}

// AgentRef is the agent's display data as stamped on the pickup at assignment.
type AgentRef struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
}

type Pickup struct {
	ID            types.ID
	OwnerID       types.ID
	Items         []Item
	TotalWeightKg float64
	Address       string
	Instructions  string
	ScheduledAt   time.Time
	TimeSlot      TimeSlot
	Status        Status
	StatusVersion int
	Agent         *AgentRef
	AwardedPoints int64
	Gains         decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AssignedAt    *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *Pickup) Clone() *Pickup {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Items = append([]Item(nil), p.Items...)
	if p.Agent != nil {
		a := *p.Agent
		cp.Agent = &a
	}
	cp.AssignedAt = cloneTime(p.AssignedAt)
	cp.CompletedAt = cloneTime(p.CompletedAt)
	cp.CancelledAt = cloneTime(p.CancelledAt)
	return &cp
}

func (p *Pickup) lines() []points.Line {
	out := make([]points.Line, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, points.Line{Material: it.Material, WeightKg: it.WeightKg})
	}
	return out
}

func (p *Pickup) recompute() {
	res := points.Compute(p.lines(), p.TotalWeightKg)
	p.AwardedPoints = res.Points
	p.Gains = res.Gains
}

// Totals is a user's running reward balance.
type Totals struct {
	OwnerID types.ID
	Points  int64
	Gains   decimal.Decimal
}

// Event is one applied status transition.
type Event struct {
	ID         int64      `json:"id"`
	PickupID   types.ID   `json:"pickupId"`
	FromStatus Status     `json:"fromStatus"`
	ToStatus   Status     `json:"toStatus"`
	ActorID    types.ID   `json:"actorId"`
	ActorRole  types.Role `json:"actorRole"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// transitions is the complete status flow. Anything absent is rejected.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func centsOf(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
