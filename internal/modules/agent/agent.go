// README: Delivery-agent directory (read-only reference data for assignment).
package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

var ErrNotFound = apperr.New(apperr.CodeNotFound, "agent not found")

type Agent struct {
	ID     types.ID `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Active bool     `json:"active"`
}

type Directory interface {
	Get(ctx context.Context, id types.ID) (*Agent, error)
	// List returns active agents ordered by name.
	List(ctx context.Context) ([]Agent, error)
}

// MemoryDirectory is a fixed in-process directory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	agents map[types.ID]Agent
}

func NewMemoryDirectory(agents ...Agent) *MemoryDirectory {
	d := &MemoryDirectory{agents: make(map[types.ID]Agent, len(agents))}
	for _, a := range agents {
		d.agents[a.ID] = a
	}
	return d
}

func (d *MemoryDirectory) Put(a Agent) {
	d.mu.Lock()
	d.agents[a.ID] = a
	d.mu.Unlock()
}

func (d *MemoryDirectory) Get(ctx context.Context, id types.ID) (*Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (d *MemoryDirectory) List(ctx context.Context) ([]Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Agent, 0, len(d.agents))
	for _, a := range d.agents {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
