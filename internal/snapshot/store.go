// Package snapshot defines the persistence boundary for portfolio state.
// Implementations include JSON files (default), PostgreSQL (durable
// source of truth when configured), and a Redis read-through cache for
// the dashboard's latest-snapshot reads.
//
// Snapshots are append-only: each one is self-contained (full positions
// plus the cumulative trade log), keyed by timestamp, and never
// overwrites a prior snapshot. A persistence failure never rolls back the
// in-memory ledger — the ledger stays the source of truth until the next
// successful persist.
package snapshot

import (
	"context"
	"errors"

	"github.com/Chintiw/stonks/internal/model"
)

// ErrDuplicateSnapshot is returned when a persist would overwrite an
// existing snapshot key.
var ErrDuplicateSnapshot = errors.New("snapshot: snapshot already exists for timestamp")

// Store is the persistence interface. LoadLatest returns (nil, nil) when
// no snapshot has been persisted yet.
type Store interface {
	// Persist appends one snapshot, keyed by its timestamp.
	Persist(ctx context.Context, snap *model.Snapshot) error

	// LoadLatest returns the most recent snapshot, or nil if none exist.
	LoadLatest(ctx context.Context) (*model.Snapshot, error)
}
