package ibkr

import "time"

type Option func(p *Provider)

// WithAsOf pins the snapshot date, instead of the current US/Eastern date
func WithAsOf(asOf time.Time) Option {
	return func(p *Provider) {
		p.asOf = &asOf
	}
}

// WithInterval overrides the refresh interval of the provider
func WithInterval(interval time.Duration) Option {
	return func(p *Provider) {
		p.interval = interval
	}
}

// withClock overrides the provider clock (tests)
func withClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}
