package pickup

import (
	"context"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// Change describes the state a conditional write expects to find.
type Change struct {
	Expected Status
	Version  int
	Actor    types.Actor
}

// Repository persists pickups. Writes are compare-and-swap: they apply only when the stored
// status and version still equal Change.Expected and Change.Version, and report false otherwise.
// A status change also appends an Event.
type Repository interface {
	Create(ctx context.Context, p *Pickup) error
	Get(ctx context.Context, id types.ID) (*Pickup, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*Pickup, error)
	// ListByStatus returns pickups in any of statuses, all of them when none are given.
	ListByStatus(ctx context.Context, statuses ...Status) ([]*Pickup, error)
	UpdateIf(ctx context.Context, p *Pickup, c Change) (bool, error)
	// CompleteIf writes the completed pickup and credits its points to the owner's totals atomically.
	CompleteIf(ctx context.Context, p *Pickup, c Change) (Totals, bool, error)
	Totals(ctx context.Context, ownerID types.ID) (Totals, error)
	History(ctx context.Context, id types.ID) ([]Event, error)
}

// Publisher delivers an event to a room. Implementations must not block indefinitely.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}
