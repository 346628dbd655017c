package semcache

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved state in memory; nothing survives a restart.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	saves int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the saved state.
func (s *MemoryStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(&s.state), nil
}

// Save stores a copy of state.
func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = *copyState(state)
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

func copyState(s *State) *State {
	out := &State{Hits: s.Hits, Misses: s.Misses}
	if len(s.Entries) > 0 {
		out.Entries = append([]Entry(nil), s.Entries...)
	}
	return out
}
