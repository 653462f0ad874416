package rolestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Read-through cache in front of another store. Entries for a member are dropped whenever a role is recorded for them.
type CachedRoleStore struct {
	Inner RoleStore
	Data  *expirable.LRU[string, []string]

	// bumped by every Record; a lookup only fills the cache if no record committed while it read the inner store
	mu  sync.Mutex
	gen uint64
}

var _ RoleStore = (*CachedRoleStore)(nil)

func NewCachedRoleStore(inner RoleStore, capacity int, ttl time.Duration) *CachedRoleStore {
	return &CachedRoleStore{
		Inner: inner,
		Data:  expirable.NewLRU[string, []string](capacity, nil, ttl),
	}
}

func (s *CachedRoleStore) Record(ctx context.Context, memberID, roleID string) error {
	if err := s.Inner.Record(ctx, memberID, roleID); err != nil {
		return err
	}
	s.mu.Lock()
	s.gen++
	s.Data.Remove(memberID)
	s.mu.Unlock()
	return nil
}

func (s *CachedRoleStore) Lookup(ctx context.Context, memberID string) ([]string, error) {
	if v, ok := s.Data.Get(memberID); ok {
		return append([]string{}, v...), nil
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	v, err := s.Inner.Lookup(ctx, memberID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.Data.Add(memberID, v)
	}
	s.mu.Unlock()
	return append([]string{}, v...), nil
}
