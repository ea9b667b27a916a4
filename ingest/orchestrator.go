package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/ibkrrates/storage/types"
)

var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrInvalidInterval = errors.New("invalid interval")

	errEmptySnapshot = errors.New("provider returned no snapshot")
)

// Orchestrator is the main job scheduler for registered providers
type Orchestrator struct {
	sink     Sink
	recorder Recorder
	logger   *slog.Logger

	registeredProviders sync.Map

	q             iq.Queue[scheduledIngest]
	queryInterval time.Duration
	saveTimeout   time.Duration
	qMux          sync.Mutex
}

// New creates a new Orchestrator instance
func New(sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		sink:          sink,
		recorder:      noopRecorder{},
		q:             iq.NewQueue[scheduledIngest](),
		queryInterval: time.Second, // every second
		saveTimeout:   time.Second * 30,
	}

	// Apply the options
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register registers a new provider with the orchestrator.
// The provider is immediately queued up for execution
func (o *Orchestrator) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return ErrInvalidProvider
	}

	if p.Interval() <= 0 {
		return ErrInvalidInterval
	}

	// Register the provider
	id := xid.New()
	o.registeredProviders.Store(id, p)

	o.logger.Info(
		"registered new provider",
		"name", p.Name(),
		"type", p.Type(),
		"interval", p.Interval().String(),
	)

	// Schedule the job
	o.scheduleIngest(
		time.Now().UTC(),
		id,
		p,
	)

	return nil
}

// Start starts the provider orchestration service loop [BLOCKING]
func (o *Orchestrator) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, 100)

	// Start a listener for monitoring jobs
	ticker := time.NewTicker(o.queryInterval)
	defer ticker.Stop()

	// handleIngest initializes all jobs that are executable (due)
	handleIngest := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				nextSI := o.nextIngest()
				if nextSI == nil {
					return // nothing to schedule anymore
				}

				o.logger.Info(
					"scheduling ingest",
					"name", nextSI.provider.Name(),
				)

				// Spawn worker
				info := &workerInfo{
					provider:   nextSI.provider,
					providerID: nextSI.providerID,
					resCh:      collectorCh,
				}

				go handleJob(ctx, info)
			}
		}
	}

	// Initialize the first set of due jobs (on boot)
	handleIngest()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator service shut down")

			return nil
		case <-ticker.C:
			handleIngest()
		case response := <-collectorCh:
			rpRaw, ok := o.registeredProviders.Load(response.providerID)
			if !ok {
				o.logger.Error(
					"unable to load registered provider",
					"id", response.providerID.String(),
				)

				continue
			}

			rp, _ := rpRaw.(Provider)

			o.handleResponse(ctx, rp, response)

			// Failed runs wait for the regular interval as well
			o.scheduleIngest(
				time.Now().UTC().Add(rp.Interval()),
				response.providerID,
				rp,
			)
		}
	}
}

// handleResponse saves the fetched snapshot, and records the run outcome
func (o *Orchestrator) handleResponse(ctx context.Context, p Provider, response *workerResponse) {
	err := response.error
	if err == nil && response.snapshot == nil {
		err = errEmptySnapshot
	}

	if err != nil {
		o.logger.Error(
			"error encountered during rate fetch",
			"name", p.Name(),
			"id", response.providerID.String(),
			"err", err,
		)

		o.recorder.ObserveRun(p.Type(), response.elapsed, 0, err)

		return
	}

	snapshot := response.snapshot

	saveCtx, cancelFn := context.WithTimeout(ctx, o.saveTimeout)
	defer cancelFn()

	if err := o.sink.SaveSnapshot(saveCtx, snapshot); err != nil {
		o.logger.Error(
			"unable to save rate snapshot",
			"name", p.Name(),
			"type", snapshot.Type,
			"date", snapshot.Date.Format(types.DateFormat),
			"err", err,
		)

		o.recorder.ObserveRun(p.Type(), response.elapsed, 0, err)

		return
	}

	o.logger.Info(
		"saved rate snapshot",
		"name", p.Name(),
		"type", snapshot.Type,
		"date", snapshot.Date.Format(types.DateFormat),
		"records", len(snapshot.Records),
	)

	o.recorder.ObserveRun(p.Type(), response.elapsed, len(snapshot.Records), nil)
}

// scheduleIngest schedules a new provider ingest
func (o *Orchestrator) scheduleIngest(
	at time.Time,
	providerID xid.ID,
	provider Provider,
) {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	futureSI := scheduledIngest{
		at:         at,
		providerID: providerID,
		provider:   provider,
	}

	o.q.Push(futureSI)
}

// nextIngest fetches the next due ingest job, as of the moment of calling
func (o *Orchestrator) nextIngest() *scheduledIngest {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	now := time.Now().UTC()

	// Check if anything needs to be scheduled
	if o.q.Len() == 0 {
		return nil // nothing to schedule, all jobs are running
	}

	// Check if the top element is due
	if o.q.Index(0).at.After(now) {
		return nil // nothing to schedule, latest job is in the future
	}

	// Grab the next job
	nextSI := o.q.PopFront()

	return nextSI
}
