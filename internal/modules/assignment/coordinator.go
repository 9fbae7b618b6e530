// README: Assignment coordinator resolves the chosen agent and hands the pending → assigned transition to the lifecycle.
package assignment

import (
	"context"
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/agent"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/pickup"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// PickupAssigner applies the assignment transition.
type PickupAssigner interface {
	Assign(ctx context.Context, cmd pickup.AssignCommand) (*pickup.Pickup, error)
}

type Command struct {
	PickupID    types.ID
	AgentID     types.ID
	ScheduledAt time.Time
	Actor       types.Actor
}

type Coordinator struct {
	agents       agent.Directory
	pickups      PickupAssigner
	storeTimeout time.Duration
}

func NewCoordinator(agents agent.Directory, pickups PickupAssigner, storeTimeout time.Duration) *Coordinator {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Coordinator{agents: agents, pickups: pickups, storeTimeout: storeTimeout}
}

func (c *Coordinator) Assign(ctx context.Context, cmd Command) (*pickup.Pickup, error) {
	details := map[string]string{}
	if cmd.AgentID == "" {
		details["agentId"] = "is required"
	}
	if cmd.ScheduledAt.IsZero() {
		details["scheduledAt"] = "is required"
	}
	if len(details) > 0 {
		return nil, apperr.Wrap(apperr.CodeValidation, pickup.ErrValidation, "invalid assignment").WithDetails(details)
	}
	if !cmd.Actor.IsOperator() {
		return nil, pickup.ErrForbidden
	}

	a, err := c.lookup(ctx, cmd.AgentID)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, apperr.Wrap(apperr.CodeNotFound, agent.ErrNotFound, "agent not found: inactive")
	}

	return c.pickups.Assign(ctx, pickup.AssignCommand{
		ID:          cmd.PickupID,
		Actor:       cmd.Actor,
		Agent:       pickup.AgentRef{ID: a.ID, Name: a.Name, Email: a.Email},
		ScheduledAt: cmd.ScheduledAt,
	})
}

func (c *Coordinator) lookup(ctx context.Context, id types.ID) (*agent.Agent, error) {
	lctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	a, err := c.agents.Get(lctx, id)
	if err == nil {
		return a, nil
	}
	if apperr.As(err) != nil {
		return nil, err
	}
	return nil, apperr.Wrap(apperr.CodeStorage, err, "agent directory unavailable")
}
