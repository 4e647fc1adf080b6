package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stonkbot/ledger-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache for
// profiles. Writes go to the primary and refresh the cache; reads check
// Redis first and fall back to the primary. Snapshot and listing calls
// pass through uncached.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) LoadProfile(ctx context.Context, userID string) (*model.Profile, error) {
	data, err := s.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err == nil {
		var p model.Profile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheProfile(ctx, p)
	return p, nil
}

func (s *CachedStore) SaveProfile(ctx context.Context, p *model.Profile) error {
	if err := s.primary.SaveProfile(ctx, p); err != nil {
		return err
	}
	s.cacheProfile(ctx, p)
	return nil
}

func (s *CachedStore) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.primary.ListUserIDs(ctx)
}

func (s *CachedStore) AppendSnapshot(ctx context.Context, userID string, snap model.Snapshot) error {
	return s.primary.AppendSnapshot(ctx, userID, snap)
}

func (s *CachedStore) GetSnapshots(ctx context.Context, userID string) ([]model.Snapshot, error) {
	return s.primary.GetSnapshots(ctx, userID)
}

func (s *CachedStore) cacheProfile(ctx context.Context, p *model.Profile) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, profileKey(p.UserID), data, s.ttl)
	}
}

func profileKey(userID string) string { return fmt.Sprintf("profile:%s", userID) }
