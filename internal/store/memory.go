package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stonkbot/ledger-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*model.Profile
	snapshots map[string][]model.Snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*model.Profile),
		snapshots: make(map[string][]model.Snapshot),
	}
}

// cloneProfile deep-copies a profile so callers never alias stored state.
func cloneProfile(p *model.Profile) *model.Profile {
	out := *p
	out.Lots = make([]model.Lot, len(p.Lots))
	copy(out.Lots, p.Lots)
	out.Transactions = make([]model.Transaction, len(p.Transactions))
	copy(out.Transactions, p.Transactions)
	return &out
}

func (s *MemoryStore) LoadProfile(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = model.NewProfile(userID)
		s.profiles[userID] = p
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.UserID] = cloneProfile(p)
	return nil
}

func (s *MemoryStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) AppendSnapshot(_ context.Context, userID string, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[userID] = append(s.snapshots[userID], snap)
	return nil
}

func (s *MemoryStore) GetSnapshots(_ context.Context, userID string) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[userID]
	out := make([]model.Snapshot, len(snaps))
	copy(out, snaps)
	return out, nil
}
