package ingest

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/ibkrrates/storage/types"
)

// scheduledIngest is a single scheduled Provider ingest job
type scheduledIngest struct {
	at         time.Time
	provider   Provider
	providerID xid.ID
}

// Less is utilized to sort scheduled ingests by their due-time (earliest == first)
func (a scheduledIngest) Less(b scheduledIngest) bool {
	return a.at.Before(b.at)
}

// workerInfo is the work context for the provider routine
type workerInfo struct {
	provider   Provider
	resCh      chan<- *workerResponse
	providerID xid.ID
}

// workerResponse is the provider routine response
type workerResponse struct {
	error      error           // encountered error, if any
	snapshot   *types.Snapshot // the fetched snapshot
	elapsed    time.Duration   // fetch duration
	providerID xid.ID          // the provider ID
}

// handleJob fetches using the provider
func handleJob(
	ctx context.Context,
	info *workerInfo,
) {
	start := time.Now()

	snapshot, err := info.provider.Fetch(ctx)

	response := &workerResponse{
		error:      err,
		snapshot:   snapshot,
		elapsed:    time.Since(start),
		providerID: info.providerID,
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}
