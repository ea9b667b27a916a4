package ibkr

import (
	"context"
	"fmt"
	"time"

	"github.com/sig-0/ibkrrates/storage/types"
)

// DefaultInterval is the refresh interval of the pricing pages
const DefaultInterval = time.Hour * 24

// Provider fetches and extracts a single IBKR Canada rate table
type Provider struct {
	source   Source
	asOf     *time.Time
	now      func() time.Time
	table    Table
	rateType types.RateType
	interval time.Duration
}

// NewProvider creates a new rate table provider for the given rate type
func NewProvider(rateType types.RateType, source Source, opts ...Option) (*Provider, error) {
	table, err := TableFor(rateType)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		source:   source,
		table:    table,
		rateType: rateType,
		interval: DefaultInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func (p *Provider) Name() string {
	return fmt.Sprintf("IBKR Canada %s", p.rateType)
}

func (p *Provider) Type() types.RateType {
	return p.rateType
}

func (p *Provider) Interval() time.Duration {
	return p.interval
}

func (p *Provider) Fetch(ctx context.Context) (*types.Snapshot, error) {
	rc, err := p.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", p.source, err)
	}
	defer rc.Close()

	var (
		fetchTime = p.now().UTC()
		date      = p.snapshotDate(fetchTime)
	)

	records, err := Extract(rc, p.table, date)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", p.source, err)
	}

	return &types.Snapshot{
		Date:      date,
		FetchedAt: fetchTime,
		Type:      p.rateType,
		Records:   records,
	}, nil
}

// snapshotDate returns the pinned as-of date, or the current US/Eastern date
func (p *Provider) snapshotDate(now time.Time) time.Time {
	if p.asOf != nil {
		return types.DateOf(*p.asOf)
	}

	return Today(now)
}

// Today returns the US/Eastern calendar date of the given instant,
// the date the pricing pages are published for
func Today(now time.Time) time.Time {
	return types.DateOf(now.In(easternLocation()))
}

func easternLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err == nil {
		return loc
	}

	return time.FixedZone("EST", -5*60*60)
}
