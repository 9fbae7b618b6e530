package pickup

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// MemoryStore is an in-process Repository for single-node runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	pickups map[types.ID]*Pickup
	totals  map[types.ID]Totals
	events  []Event
	seq     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pickups: make(map[types.ID]*Pickup),
		totals:  make(map[types.ID]Totals),
	}
}

func (m *MemoryStore) Create(ctx context.Context, p *Pickup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pickups[p.ID]; ok {
		return lostUpdate("create")
	}
	m.pickups[p.ID] = p.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pickups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Pickup, 0)
	for _, p := range m.pickups {
		if p.OwnerID == ownerID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByStatus(ctx context.Context, statuses ...Status) ([]*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]*Pickup, 0)
	for _, p := range m.pickups {
		if len(want) == 0 || want[p.Status] {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateIf(ctx context.Context, p *Pickup, c Change) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.matches(p.ID, c) {
		return false, nil
	}
	m.apply(p, c)
	return true, nil
}

func (m *MemoryStore) CompleteIf(ctx context.Context, p *Pickup, c Change) (Totals, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.matches(p.ID, c) {
		return Totals{}, false, nil
	}
	m.apply(p, c)
	t := m.totalsLocked(p.OwnerID)
	t.Points += p.AwardedPoints
	t.Gains = t.Gains.Add(p.Gains)
	m.totals[p.OwnerID] = t
	return t, true, nil
}

func (m *MemoryStore) Totals(ctx context.Context, ownerID types.ID) (Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalsLocked(ownerID), nil
}

func (m *MemoryStore) History(ctx context.Context, id types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pickups[id]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Event, 0)
	for _, e := range m.events {
		if e.PickupID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) matches(id types.ID, c Change) bool {
	cur, ok := m.pickups[id]
	return ok && cur.Status == c.Expected && cur.StatusVersion == c.Version
}

func (m *MemoryStore) apply(p *Pickup, c Change) {
	m.pickups[p.ID] = p.Clone()
	if p.Status == c.Expected {
		return
	}
	m.seq++
	m.events = append(m.events, Event{
		ID:         m.seq,
		PickupID:   p.ID,
		FromStatus: c.Expected,
		ToStatus:   p.Status,
		ActorID:    c.Actor.ID,
		ActorRole:  c.Actor.Role,
		CreatedAt:  p.UpdatedAt,
	})
}

func (m *MemoryStore) totalsLocked(ownerID types.ID) Totals {
	t, ok := m.totals[ownerID]
	if !ok {
		return Totals{OwnerID: ownerID, Gains: decimal.Zero}
	}
	return t
}
