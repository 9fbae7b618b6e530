package pickup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

var (
	owner    = types.Actor{ID: "user-1", Role: types.RoleUser}
	stranger = types.Actor{ID: "user-2", Role: types.RoleUser}
	operator = types.Actor{ID: "op-1", Role: types.RoleOperator}
	agentX   = AgentRef{ID: "agent-x", Name: "Xavier Agent", Email: "x@binwise.test"}
	baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

type published struct {
	Room    string
	Event   string
	Payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (b *recordingBus) Publish(ctx context.Context, room, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, published{Room: room, Event: event, Payload: payload})
	return nil
}

func (b *recordingBus) named(event string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]published, 0)
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

func newTestService(t *testing.T, repo Repository) (*Service, *recordingBus) {
	t.Helper()
	if repo == nil {
		repo = NewMemoryStore()
	}
	bus := &recordingBus{}
	clock := baseTime
	var mu sync.Mutex
	svc := NewService(repo, bus, Options{
		StoreTimeout:   time.Second,
		PublishTimeout: 100 * time.Millisecond,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		},
	})
	return svc, bus
}

func createCommand(ownerID types.ID, items []Item, weight float64) CreateCommand {
	return CreateCommand{
		OwnerID:       ownerID,
		Items:         items,
		TotalWeightKg: weight,
		Address:       "12 Nile St, Cairo",
		Instructions:  "ring twice",
		ScheduledAt:   baseTime.Add(48 * time.Hour),
		TimeSlot:      SlotMorning,
	}
}

func mustCreate(t *testing.T, svc *Service) *Pickup {
	t.Helper()
	p, err := svc.Create(context.Background(), createCommand(owner.ID, []Item{{Material: points.Plastic, Quantity: 1}}, 3))
	if err != nil {
		t.Fatalf("create pickup: %v", err)
	}
	return p
}

func mustAssign(t *testing.T, svc *Service, id types.ID) *Pickup {
	t.Helper()
	p, err := svc.Assign(context.Background(), AssignCommand{ID: id, Actor: operator, Agent: agentX, ScheduledAt: baseTime.Add(72 * time.Hour)})
	if err != nil {
		t.Fatalf("assign pickup: %v", err)
	}
	return p
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) *Pickup {
	t.Helper()
	p, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get pickup: %v", err)
	}
	if p.Status != want {
		t.Fatalf("expected status %s, got %s", want, p.Status)
	}
	return p
}

func assertConflict(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
