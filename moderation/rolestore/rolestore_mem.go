package rolestore

import (
	"context"
	"sync"
)

// In-process store. Not durable; for tests and throwaway deployments.
type MemRoleStore struct {
	mu   *sync.RWMutex
	Data map[string]map[string]bool
}

var _ RoleStore = (*MemRoleStore)(nil)

func NewMemRoleStore() MemRoleStore {
	return MemRoleStore{
		mu:   &sync.RWMutex{},
		Data: make(map[string]map[string]bool),
	}
}

func (s MemRoleStore) Record(ctx context.Context, memberID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Data[memberID]
	if !ok {
		m = make(map[string]bool)
		s.Data[memberID] = m
	}
	m[roleID] = true
	return nil
}

func (s MemRoleStore) Lookup(ctx context.Context, memberID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for r := range s.Data[memberID] {
		out = append(out, r)
	}
	return out, nil
}
