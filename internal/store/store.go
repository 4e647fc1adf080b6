// Package store defines profile persistence for the ledger engine.
// Implementations include PostgreSQL, MongoDB (document store, matching
// the shape the profiles originally lived in), Redis (read-through
// cache over a primary), and in-memory (for testing).
package store

import (
	"context"

	"github.com/stonkbot/ledger-engine/internal/model"
)

// Store is the profile persistence interface.
type Store interface {
	// LoadProfile retrieves a user's profile, creating and persisting an
	// empty one with zeroed accumulators on first access.
	LoadProfile(ctx context.Context, userID string) (*model.Profile, error)

	// SaveProfile persists the full profile state.
	SaveProfile(ctx context.Context, p *model.Profile) error

	// ListUserIDs returns the IDs of all stored profiles.
	ListUserIDs(ctx context.Context) ([]string, error)

	// AppendSnapshot records one daily balance point for a user.
	AppendSnapshot(ctx context.Context, userID string, snap model.Snapshot) error

	// GetSnapshots returns a user's balance history in append order.
	GetSnapshots(ctx context.Context, userID string) ([]model.Snapshot, error)
}
