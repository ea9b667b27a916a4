package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the layout of snapshot dates
const DateFormat = "2006-01-02"

type Currency string

func (c Currency) String() string {
	return string(c)
}

type RateType string

const (
	RateTypeInterest RateType = "interest-rates"
	RateTypeMargin   RateType = "margin-rates"
)

func (r RateType) String() string {
	return string(r)
}

// Valid returns true if the rate type is a known table
func (r RateType) Valid() bool {
	switch r {
	case RateTypeInterest, RateTypeMargin:
		return true
	default:
		return false
	}
}

// RateRecord is a single rate table row
type RateRecord struct {
	Date          time.Time           `json:"date"`
	Currency      Currency            `json:"currency"`
	TierLow       decimal.NullDecimal `json:"tier_low"`
	TierHigh      decimal.NullDecimal `json:"tier_high"`
	Rate          decimal.Decimal     `json:"rate"`
	BenchmarkDiff decimal.NullDecimal `json:"benchmark_diff"`

	// TierLabel is the cleaned tier cell text the bounds were parsed from
	TierLabel string `json:"tier_label"`
}

// Snapshot is the full rate table of one page, as of a single date
type Snapshot struct {
	Date      time.Time     `json:"date"`
	FetchedAt time.Time     `json:"fetched_at"`
	Type      RateType      `json:"type"`
	Records   []*RateRecord `json:"records"`
}

// SnapshotQuery selects the latest snapshot on or before AsOf
type SnapshotQuery struct {
	AsOf     time.Time `json:"as_of"`
	Currency *Currency `json:"currency"`
	Type     RateType  `json:"type"`
}

// HistoryQuery selects the rate of one currency tier across snapshots.
// Tiers without a lower bound match a zero TierLow
type HistoryQuery struct {
	TierLow  decimal.Decimal `json:"tier_low"`
	Type     RateType        `json:"type"`
	Currency Currency        `json:"currency"`
}

// HistoryPoint is the rate of a single tier on a single date
type HistoryPoint struct {
	Date time.Time       `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}

// DateOf truncates the given time to its calendar date (UTC midnight)
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDecimal renders the decimal as plain text, keeping its source precision
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}

	return d.String()
}

// ForCurrency returns a copy of the snapshot holding only the given currency rows
func (s *Snapshot) ForCurrency(currency Currency) *Snapshot {
	out := *s
	out.Records = make([]*RateRecord, 0, len(s.Records))

	for _, r := range s.Records {
		if r.Currency == currency {
			out.Records = append(out.Records, r)
		}
	}

	return &out
}

// TierRate returns the first row of the currency whose tier starts at tierLow.
// A tier without a lower bound starts at zero
func (s *Snapshot) TierRate(currency Currency, tierLow decimal.Decimal) (*RateRecord, bool) {
	for _, r := range s.Records {
		if r.Currency != currency {
			continue
		}

		low := decimal.Zero
		if r.TierLow.Valid {
			low = r.TierLow.Decimal
		}

		if low.Equal(tierLow) {
			return r, true
		}
	}

	return nil, false
}

// Currencies returns the distinct currencies of the snapshot, in row order
func (s *Snapshot) Currencies() []Currency {
	var (
		seen = make(map[Currency]struct{}, len(s.Records))
		out  = make([]Currency, 0, len(s.Records))
	)

	for _, r := range s.Records {
		if _, ok := seen[r.Currency]; ok {
			continue
		}

		seen[r.Currency] = struct{}{}
		out = append(out, r.Currency)
	}

	return out
}
