package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/sig-0/ibkrrates/storage/types"
)

type (
	nameDelegate     func() string
	typeDelegate     func() types.RateType
	intervalDelegate func() time.Duration
	fetchDelegate    func(context.Context) (*types.Snapshot, error)
)

type mockProvider struct {
	nameFn     nameDelegate
	typeFn     typeDelegate
	intervalFn intervalDelegate
	fetchFn    fetchDelegate
}

func (m *mockProvider) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockProvider) Type() types.RateType {
	if m.typeFn != nil {
		return m.typeFn()
	}

	return ""
}

func (m *mockProvider) Interval() time.Duration {
	if m.intervalFn != nil {
		return m.intervalFn()
	}

	return 0
}

func (m *mockProvider) Fetch(ctx context.Context) (*types.Snapshot, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return nil, nil
}

type observedRun struct {
	err      error
	rateType types.RateType
	records  int
}

type mockRecorder struct {
	runs []observedRun
	mux  sync.Mutex
}

func (m *mockRecorder) ObserveRun(rateType types.RateType, _ time.Duration, records int, err error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	m.runs = append(m.runs, observedRun{
		rateType: rateType,
		records:  records,
		err:      err,
	})
}

func (m *mockRecorder) observed() []observedRun {
	m.mux.Lock()
	defer m.mux.Unlock()

	return append([]observedRun(nil), m.runs...)
}
