package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chintiw/stonks/internal/model"
)

const latestKey = "stonks:snapshot:latest"

// CachedStore wraps a primary Store with a Redis cache of the latest
// snapshot. Writes go to the primary and refresh the cache; LoadLatest
// checks Redis first then falls back to the primary. The dashboard polls
// the latest snapshot, so this keeps those reads off the primary store.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedStore) Persist(ctx context.Context, snap *model.Snapshot) error {
	if err := s.primary.Persist(ctx, snap); err != nil {
		return err
	}
	// Cache refresh is best-effort; the primary already has the data.
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, latestKey, data, s.ttl)
	}
	return nil
}

func (s *CachedStore) LoadLatest(ctx context.Context) (*model.Snapshot, error) {
	data, err := s.rdb.Get(ctx, latestKey).Bytes()
	if err == nil {
		var snap model.Snapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := s.primary.LoadLatest(ctx)
	if err != nil || snap == nil {
		return snap, err
	}

	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, latestKey, data, s.ttl)
	}
	return snap, nil
}
