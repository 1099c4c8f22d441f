// Package memory is an in-process rule set store for the CLI and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
)

type scope struct {
	key    ruleset.Key
	tenant string
}

// Store keeps rule sets in a map guarded by a mutex. Returned values are
// copies; callers cannot mutate stored versions.
type Store struct {
	mu       sync.RWMutex
	versions map[scope][]*ruleset.RuleSet
}

// New returns an empty Store.
func New() *Store {
	return &Store{versions: make(map[scope][]*ruleset.RuleSet)}
}

func (s *Store) GetActive(_ context.Context, key ruleset.Key, tenant string) (*ruleset.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rs := range s.versions[scope{key, tenant}] {
		if rs.IsActive {
			return copyOf(rs)
		}
	}
	return nil, nil
}

func (s *Store) ListVersions(_ context.Context, key ruleset.Key, tenant string) ([]*ruleset.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.versions[scope{key, tenant}]
	out := make([]*ruleset.RuleSet, 0, len(stored))
	for _, rs := range stored {
		c, err := copyOf(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *Store) CreateVersion(_ context.Context, rs *ruleset.RuleSet) (*ruleset.RuleSet, error) {
	if rs == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	stored, err := copyOf(rs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := scope{rs.Key, rs.TenantID}
	existing := s.versions[sc]
	stored.Version = len(existing) + 1
	if stored.IsActive {
		for _, prev := range existing {
			prev.IsActive = false
		}
	}
	s.versions[sc] = append(existing, stored)
	return copyOf(stored)
}

func (s *Store) Activate(_ context.Context, key ruleset.Key, tenant string, version int) (*ruleset.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.versions[scope{key, tenant}]
	var target *ruleset.RuleSet
	for _, rs := range existing {
		if rs.Version == version {
			target = rs
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s v%d for tenant %q", store.ErrNotFound, key, version, tenant)
	}
	for _, rs := range existing {
		rs.IsActive = rs == target
	}
	return copyOf(target)
}

func copyOf(rs *ruleset.RuleSet) (*ruleset.RuleSet, error) {
	payload, err := rs.Payload.Clone()
	if err != nil {
		return nil, err
	}
	c := *rs
	c.Payload = payload
	return &c, nil
}
