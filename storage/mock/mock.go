package mock

import (
	"context"

	"github.com/sig-0/ibkrrates/storage/types"
)

type (
	SaveSnapshotDelegate   func(context.Context, *types.Snapshot) error
	SnapshotDelegate       func(context.Context, *types.SnapshotQuery) (*types.Snapshot, error)
	ListCurrenciesDelegate func(context.Context, types.RateType) ([]types.Currency, error)
	HistoryDelegate        func(context.Context, *types.HistoryQuery) ([]*types.HistoryPoint, error)
)

type Storage struct {
	SaveSnapshotFn   SaveSnapshotDelegate
	SnapshotFn       SnapshotDelegate
	ListCurrenciesFn ListCurrenciesDelegate
	HistoryFn        HistoryDelegate
}

func (m *Storage) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	if m.SaveSnapshotFn != nil {
		return m.SaveSnapshotFn(ctx, snapshot)
	}

	return nil
}

func (m *Storage) Snapshot(ctx context.Context, query *types.SnapshotQuery) (*types.Snapshot, error) {
	if m.SnapshotFn != nil {
		return m.SnapshotFn(ctx, query)
	}

	return nil, nil
}

func (m *Storage) ListCurrencies(ctx context.Context, rateType types.RateType) ([]types.Currency, error) {
	if m.ListCurrenciesFn != nil {
		return m.ListCurrenciesFn(ctx, rateType)
	}

	return nil, nil
}

func (m *Storage) History(ctx context.Context, query *types.HistoryQuery) ([]*types.HistoryPoint, error) {
	if m.HistoryFn != nil {
		return m.HistoryFn(ctx, query)
	}

	return nil, nil
}
