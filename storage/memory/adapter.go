package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sig-0/ibkrrates/storage"
	"github.com/sig-0/ibkrrates/storage/types"
)

type key struct {
	rateType string
	date     int64 // unix seconds
}

type Storage struct {
	data map[key]types.Snapshot

	mu sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		data: make(map[key]types.Snapshot),
	}
}

func (s *Storage) SaveSnapshot(_ context.Context, snapshot *types.Snapshot) error {
	date := types.DateOf(snapshot.Date)

	k := key{
		rateType: snapshot.Type.String(),
		date:     date.Unix(),
	}

	elem := copySnapshot(snapshot)
	elem.Date = date
	elem.FetchedAt = elem.FetchedAt.UTC()

	s.mu.Lock()
	s.data[k] = elem // key is unique
	s.mu.Unlock()

	return nil
}

func (s *Storage) Snapshot(_ context.Context, query *types.SnapshotQuery) (*types.Snapshot, error) {
	var (
		rateType  = query.Type.String()
		hasCutoff = !query.AsOf.IsZero()
		cutoff    = types.DateOf(query.AsOf)
	)

	s.mu.RLock()

	var (
		best  types.Snapshot
		found bool
	)

	for k, v := range s.data {
		if k.rateType != rateType {
			continue
		}

		if hasCutoff && v.Date.After(cutoff) {
			continue
		}

		if !found || v.Date.After(best.Date) {
			best = v
			found = true
		}
	}

	s.mu.RUnlock()

	if !found {
		return nil, storage.ErrNotFound
	}

	if query.Currency != nil {
		best = *best.ForCurrency(*query.Currency)
	}

	out := copySnapshot(&best)

	return &out, nil
}

func (s *Storage) ListCurrencies(_ context.Context, rateType types.RateType) ([]types.Currency, error) {
	s.mu.RLock()

	seen := make(map[types.Currency]struct{})

	for k, v := range s.data {
		if k.rateType != rateType.String() {
			continue
		}

		for _, r := range v.Records {
			seen[r.Currency] = struct{}{}
		}
	}

	s.mu.RUnlock()

	out := make([]types.Currency, 0, len(seen))

	for v := range seen {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})

	return out, nil
}

func (s *Storage) History(_ context.Context, query *types.HistoryQuery) ([]*types.HistoryPoint, error) {
	s.mu.RLock()

	out := make([]*types.HistoryPoint, 0)

	for k, v := range s.data {
		if k.rateType != query.Type.String() {
			continue
		}

		r, ok := v.TierRate(query.Currency, query.TierLow)
		if !ok {
			continue
		}

		out = append(out, &types.HistoryPoint{
			Date: v.Date,
			Rate: r.Rate,
		})
	}

	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	return out, nil
}

// copySnapshot copies the snapshot along with its records,
// so stored rows are never shared with callers
func copySnapshot(snapshot *types.Snapshot) types.Snapshot {
	out := *snapshot
	out.Records = make([]*types.RateRecord, 0, len(snapshot.Records))

	for _, r := range snapshot.Records {
		cp := *r
		out.Records = append(out.Records, &cp)
	}

	return out
}
