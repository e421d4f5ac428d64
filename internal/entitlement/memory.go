package entitlement

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by the command line tools and tests.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]State
	// Writes counts successful mutating calls.
	Writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]State)}
}

func (m *MemoryStore) GetProfile(ctx context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.profiles[userID]
	if !ok {
		return State{}, ErrProfileNotFound
	}
	return s, nil
}

func (m *MemoryStore) CreateProfile(ctx context.Context, userID string, initial State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.profiles[userID]; ok {
		return s, nil
	}
	m.profiles[userID] = initial
	m.Writes++
	return initial, nil
}

func (m *MemoryStore) ConsumeTrial(ctx context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.profiles[userID]
	if !ok {
		return State{}, ErrProfileNotFound
	}
	if !CanProceed(s) {
		return s, ErrExhausted
	}
	next := Debit(s)
	if next != s {
		m.profiles[userID] = next
		m.Writes++
	}
	return next, nil
}

func (m *MemoryStore) SetPaid(ctx context.Context, userID string, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	s.HasPaid = paid
	m.profiles[userID] = s
	m.Writes++
	return nil
}

func (m *MemoryStore) SetTrialCount(ctx context.Context, userID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	s.TrialCount = count
	m.profiles[userID] = s
	m.Writes++
	return nil
}
