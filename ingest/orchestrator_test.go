package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/ibkrrates/provider/currencies"
	"github.com/sig-0/ibkrrates/storage/mock"
	"github.com/sig-0/ibkrrates/storage/types"
)

const testProviderName = "test-provider"

func TestOrchestrator_New(t *testing.T) {
	t.Parallel()

	t.Run("default orchestrator", func(t *testing.T) {
		t.Parallel()

		o := New(&mock.Storage{})

		require.NotNil(t, o)

		assert.NotNil(t, o.sink)
		assert.NotNil(t, o.logger)
		assert.NotNil(t, o.recorder)
		assert.Equal(t, time.Second, o.queryInterval)
		assert.Equal(t, time.Second*30, o.saveTimeout)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		recorder := &mockRecorder{}

		o := New(
			&mock.Storage{},
			WithQueryInterval(time.Minute),
			WithSaveTimeout(time.Second),
			WithRecorder(recorder),
		)

		require.NotNil(t, o)
		assert.Equal(t, time.Minute, o.queryInterval)
		assert.Equal(t, time.Second, o.saveTimeout)
		assert.Equal(t, recorder, o.recorder)
	})
}

func TestOrchestrator_Register(t *testing.T) {
	t.Parallel()

	t.Run("nil provider", func(t *testing.T) {
		t.Parallel()

		o := New(&mock.Storage{})

		assert.ErrorIs(t, o.Register(nil), ErrInvalidProvider)
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()

		var (
			o = New(&mock.Storage{})

			provider = &mockProvider{
				nameFn: func() string {
					return ""
				},
				intervalFn: func() time.Duration {
					return time.Hour
				},
			}
		)

		assert.ErrorIs(t, o.Register(provider), ErrInvalidProvider)
	})

	t.Run("zero interval", func(t *testing.T) {
		t.Parallel()

		var (
			o = New(&mock.Storage{})

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				intervalFn: func() time.Duration {
					return 0
				},
			}
		)

		assert.ErrorIs(t, o.Register(provider), ErrInvalidInterval)
	})

	t.Run("negative interval", func(t *testing.T) {
		t.Parallel()

		var (
			o = New(&mock.Storage{})

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				intervalFn: func() time.Duration {
					return -time.Hour
				},
			}
		)

		assert.ErrorIs(t, o.Register(provider), ErrInvalidInterval)
	})

	t.Run("valid provider", func(t *testing.T) {
		t.Parallel()

		o := New(&mock.Storage{})

		require.NoError(t, o.Register(snapshotProvider(testProviderName, types.RateTypeInterest)))

		// Verify provider was registered
		var count int

		o.registeredProviders.Range(
			func(_, _ any) bool {
				count++

				return true
			},
		)

		assert.Equal(t, 1, count)
	})

	t.Run("schedule provider", func(t *testing.T) {
		t.Parallel()

		o := New(&mock.Storage{})

		require.NoError(t, o.Register(snapshotProvider(testProviderName, types.RateTypeInterest)))
		assert.Equal(t, 1, o.q.Len())

		// The scheduled time should be in the past or now (immediate)
		scheduled := o.q.Index(0)
		assert.True(t, scheduled.at.Before(time.Now().Add(time.Second)))
	})
}

func TestOrchestrator_Start(t *testing.T) {
	t.Parallel()

	t.Run("ctx canceled", func(t *testing.T) {
		t.Parallel()

		var (
			o     = New(&mock.Storage{}, WithQueryInterval(time.Millisecond*10))
			errCh = make(chan error, 1)
		)

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		cancel()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("orchestrator did not shut down in time")
		}
	})

	t.Run("provider fetch executed", func(t *testing.T) {
		t.Parallel()

		var (
			savedSnapshot *types.Snapshot
			saveDone      = make(chan struct{})

			expectedSnapshot = &types.Snapshot{
				Type: types.RateTypeInterest,
				Date: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
				Records: []*types.RateRecord{
					{
						Currency: currencies.USD,
						Rate:     decimal.RequireFromString("3.580"),
					},
				},
			}

			storage = &mock.Storage{
				SaveSnapshotFn: func(_ context.Context, snapshot *types.Snapshot) error {
					savedSnapshot = snapshot

					close(saveDone)

					return nil
				},
			}

			recorder = &mockRecorder{}

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				typeFn: func() types.RateType {
					return types.RateTypeInterest
				},
				intervalFn: func() time.Duration {
					return time.Hour
				},
				fetchFn: func(_ context.Context) (*types.Snapshot, error) {
					return expectedSnapshot, nil
				},
			}
		)

		var (
			o = New(
				storage,
				WithQueryInterval(time.Millisecond*10),
				WithRecorder(recorder),
			)
			errCh = make(chan error, 1)
		)

		require.NoError(t, o.Register(provider))

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		select {
		case <-saveDone:
			// Success
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for snapshot to be saved")
		}

		require.Eventually(t, func() bool {
			return len(recorder.observed()) == 1
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		require.NoError(t, <-errCh)

		require.NotNil(t, savedSnapshot)
		assert.Equal(t, expectedSnapshot, savedSnapshot)

		run := recorder.observed()[0]
		assert.Equal(t, types.RateTypeInterest, run.rateType)
		assert.Equal(t, 1, run.records)
		assert.NoError(t, run.err)
	})

	t.Run("reschedule provider (success)", func(t *testing.T) {
		t.Parallel()

		var (
			fetchCount atomic.Int32
			fetchDone  = make(chan struct{})
		)

		var (
			storage = &mock.Storage{
				SaveSnapshotFn: func(_ context.Context, _ *types.Snapshot) error {
					return nil
				},
			}

			o = New(storage, WithQueryInterval(time.Millisecond*10))

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				intervalFn: func() time.Duration {
					return time.Millisecond * 50
				},
				fetchFn: func(_ context.Context) (*types.Snapshot, error) {
					if fetchCount.Add(1) == 2 {
						close(fetchDone)
					}

					return &types.Snapshot{Type: types.RateTypeMargin}, nil
				},
			}
			errCh = make(chan error, 1)
		)

		require.NoError(t, o.Register(provider))

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		select {
		case <-fetchDone:
			// Success
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for reschedule")
		}

		cancel()
		require.NoError(t, <-errCh)

		assert.GreaterOrEqual(t, fetchCount.Load(), int32(2))
	})

	t.Run("reschedules on fetch error", func(t *testing.T) {
		t.Parallel()

		var (
			fetchCount atomic.Int32
			retryDone  = make(chan struct{})
			recorder   = &mockRecorder{}
		)

		var (
			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				typeFn: func() types.RateType {
					return types.RateTypeMargin
				},
				intervalFn: func() time.Duration {
					return time.Millisecond * 50
				},
				fetchFn: func(_ context.Context) (*types.Snapshot, error) {
					if fetchCount.Add(1) == 2 {
						close(retryDone)
					}

					return nil, errors.New("fetch error")
				},
			}

			o = New(
				&mock.Storage{},
				WithQueryInterval(time.Millisecond*10),
				WithRecorder(recorder),
			)

			errCh = make(chan error, 1)
		)

		require.NoError(t, o.Register(provider))

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		select {
		case <-retryDone:
			// Success
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for reschedule")
		}

		cancel()
		require.NoError(t, <-errCh)

		assert.GreaterOrEqual(t, fetchCount.Load(), int32(2))

		runs := recorder.observed()
		require.NotEmpty(t, runs)
		assert.Error(t, runs[0].err)
		assert.Equal(t, types.RateTypeMargin, runs[0].rateType)
	})

	t.Run("failed run waits for the interval", func(t *testing.T) {
		t.Parallel()

		var (
			fetchCount atomic.Int32
			failed     = make(chan struct{})

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				intervalFn: func() time.Duration {
					return time.Hour
				},
				fetchFn: func(_ context.Context) (*types.Snapshot, error) {
					if fetchCount.Add(1) == 1 {
						close(failed)
					}

					return nil, errors.New("fetch error")
				},
			}

			o     = New(&mock.Storage{}, WithQueryInterval(time.Millisecond*10))
			errCh = make(chan error, 1)
		)

		require.NoError(t, o.Register(provider))

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		select {
		case <-failed:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for fetch")
		}

		// Give the loop time to handle the failure
		time.Sleep(time.Millisecond * 200)

		cancel()
		require.NoError(t, <-errCh)

		assert.Equal(t, int32(1), fetchCount.Load())
	})

	t.Run("multiple providers", func(t *testing.T) {
		t.Parallel()

		var (
			savedSnapshots sync.Map
			saveCount      atomic.Int32
			allSaved       = make(chan struct{})
			errCh          = make(chan error, 1)

			storage = &mock.Storage{
				SaveSnapshotFn: func(_ context.Context, snapshot *types.Snapshot) error {
					savedSnapshots.Store(snapshot.Type, snapshot)

					if saveCount.Add(1) == 2 {
						close(allSaved)
					}

					return nil
				},
			}
			providers = []*mockProvider{
				snapshotProvider("provider-1", types.RateTypeInterest),
				snapshotProvider("provider-2", types.RateTypeMargin),
			}

			o = New(storage, WithQueryInterval(time.Millisecond*10))
		)

		for _, p := range providers {
			require.NoError(t, o.Register(p))
		}

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		select {
		case <-allSaved:
			// Success
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for providers")
		}

		cancel()
		require.NoError(t, <-errCh)

		_, ok1 := savedSnapshots.Load(types.RateTypeInterest)
		_, ok2 := savedSnapshots.Load(types.RateTypeMargin)

		assert.True(t, ok1, "interest rates should be saved")
		assert.True(t, ok2, "margin rates should be saved")
	})

	t.Run("storage save error", func(t *testing.T) {
		t.Parallel()

		var (
			saveAttempts atomic.Int32
			savesDone    = make(chan struct{})
			errCh        = make(chan error, 1)
			recorder     = &mockRecorder{}

			storage = &mock.Storage{
				SaveSnapshotFn: func(_ context.Context, _ *types.Snapshot) error {
					if saveAttempts.Add(1) == 2 {
						close(savesDone)
					}

					return errors.New("storage error")
				},
			}
			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				intervalFn: func() time.Duration {
					return time.Millisecond * 50
				},
				fetchFn: func(_ context.Context) (*types.Snapshot, error) {
					return &types.Snapshot{Type: types.RateTypeInterest}, nil
				},
			}

			o = New(
				storage,
				WithQueryInterval(time.Millisecond*10),
				WithRecorder(recorder),
			)
		)

		require.NoError(t, o.Register(provider))

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		select {
		case <-savesDone:
			// Success
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for save attempts")
		}

		cancel()
		require.NoError(t, <-errCh)

		runs := recorder.observed()
		require.NotEmpty(t, runs)
		assert.Error(t, runs[0].err)
	})

	t.Run("nil snapshot is a failed run", func(t *testing.T) {
		t.Parallel()

		var (
			recorder = &mockRecorder{}
			saved    atomic.Bool

			storage = &mock.Storage{
				SaveSnapshotFn: func(_ context.Context, _ *types.Snapshot) error {
					saved.Store(true)

					return nil
				},
			}

			provider = &mockProvider{
				nameFn: func() string {
					return testProviderName
				},
				intervalFn: func() time.Duration {
					return time.Hour
				},
			}

			o = New(
				storage,
				WithQueryInterval(time.Millisecond*10),
				WithRecorder(recorder),
			)
			errCh = make(chan error, 1)
		)

		require.NoError(t, o.Register(provider))

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		require.Eventually(t, func() bool {
			return len(recorder.observed()) == 1
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		require.NoError(t, <-errCh)

		assert.ErrorIs(t, recorder.observed()[0].err, errEmptySnapshot)
		assert.False(t, saved.Load())
	})
}
