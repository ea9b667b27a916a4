package ingest

import (
	"context"
	"fmt"

	"github.com/sig-0/ibkrrates/storage/types"
)

// Run fetches every provider once, in order, and saves each snapshot to the sink.
// The first failing provider aborts the run
func Run(ctx context.Context, sink Sink, providers ...Provider) ([]*types.Snapshot, error) {
	snapshots := make([]*types.Snapshot, 0, len(providers))

	for _, p := range providers {
		if p == nil || p.Name() == "" {
			return snapshots, ErrInvalidProvider
		}

		snapshot, err := p.Fetch(ctx)
		if err != nil {
			return snapshots, fmt.Errorf("unable to fetch %s: %w", p.Name(), err)
		}

		if err := sink.SaveSnapshot(ctx, snapshot); err != nil {
			return snapshots, fmt.Errorf("unable to save %s: %w", p.Name(), err)
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}
