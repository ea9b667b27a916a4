package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sig-0/ibkrrates/storage/types"
)

// Provider is a single rate table provider
type Provider interface {
	// Name returns the human-readable name of the provider
	Name() string

	// Type returns the rate table the provider yields
	Type() types.RateType

	// Interval returns the interval at which the provider should be called
	Interval() time.Duration

	// Fetch is the provider's main fetch job, yielding a full rate table snapshot
	Fetch(context.Context) (*types.Snapshot, error)
}

// Sink accepts fetched snapshots
type Sink interface {
	SaveSnapshot(context.Context, *types.Snapshot) error
}

// MultiSink saves snapshots to every sink, in order.
// A sink error stops the snapshot from reaching the remaining sinks
type MultiSink []Sink

func (m MultiSink) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	for i, sink := range m {
		if err := sink.SaveSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}

	return nil
}

// Recorder observes the outcome of ingest runs
type Recorder interface {
	ObserveRun(rateType types.RateType, elapsed time.Duration, records int, err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRun(types.RateType, time.Duration, int, error) {}
