package storage

import (
	"context"
	"errors"

	"github.com/sig-0/ibkrrates/storage/types"
)

// ErrNotFound is returned when no snapshot matches the query
var ErrNotFound = errors.New("snapshot not found")

// Storage is an abstraction over rate table snapshots
type Storage interface {
	// SaveSnapshot saves the given snapshot, replacing any snapshot
	// of the same type and date
	SaveSnapshot(context.Context, *types.Snapshot) error

	// Snapshot fetches the latest snapshot on or before the query date.
	// A zero query date selects the latest snapshot
	Snapshot(context.Context, *types.SnapshotQuery) (*types.Snapshot, error)

	// ListCurrencies lists all currencies present for the given rate type
	ListCurrencies(context.Context, types.RateType) ([]types.Currency, error)

	// History fetches the rate of a single currency tier across snapshots, oldest first
	History(context.Context, *types.HistoryQuery) ([]*types.HistoryPoint, error)
}
