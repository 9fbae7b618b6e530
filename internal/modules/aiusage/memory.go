package aiusage

import (
	"context"
	"sync"
	"time"
)

type usage struct {
	remaining int
	month     string
}

// MemoryQuota is an in-process Quota used for the memory driver and tests.
type MemoryQuota struct {
	mu      sync.Mutex
	monthly int
	now     func() time.Time
	users   map[string]*usage
}

func NewMemoryQuota(monthly int) *MemoryQuota {
	if monthly <= 0 {
		monthly = DefaultTokens
	}
	return &MemoryQuota{monthly: monthly, now: time.Now, users: make(map[string]*usage)}
}

func (m *MemoryQuota) UseToken(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return ErrInsufficientTokens
	}
	month := monthOf(m.now())
	if u.month < month {
		u.remaining, u.month = m.monthly, month
	}
	if u.remaining <= 0 {
		return ErrInsufficientTokens
	}
	u.remaining--
	return nil
}

func (m *MemoryQuota) EnsureUser(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[uid]; !ok {
		m.users[uid] = &usage{remaining: m.monthly, month: monthOf(m.now())}
	}
	return nil
}

func (m *MemoryQuota) Remaining(_ context.Context, uid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok || u.month < monthOf(m.now()) {
		return m.monthly, nil
	}
	return u.remaining, nil
}
