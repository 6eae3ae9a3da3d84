package hearth

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/pscheid92/hearth/internal/domain"
)

var (
	_ domain.StateRepository = (*MemoryStore)(nil)
	_ domain.CooldownStore   = (*MemoryStore)(nil)
)

// MemoryStore keeps state and cooldowns in process memory. It backs the
// "memory" storage backend and most engine tests.
type MemoryStore struct {
	mu        sync.Mutex
	state     *domain.IntensityState
	cooldowns map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cooldowns: make(map[string]time.Time)}
}

func (m *MemoryStore) Load(context.Context) (domain.IntensityState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return domain.IntensityState{}, domain.ErrStateNotFound
	}
	return m.state.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, state domain.IntensityState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := state.Clone()
	m.state = &s
	return nil
}

func (m *MemoryStore) LoadCooldowns(context.Context) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.cooldowns), nil
}

func (m *MemoryStore) RecordCooldown(_ context.Context, contributorID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[contributorID] = at
	return nil
}

func (m *MemoryStore) DeleteCooldowns(_ context.Context, contributorIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range contributorIDs {
		delete(m.cooldowns, id)
	}
	return nil
}
