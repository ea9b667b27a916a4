package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/ibkrrates/storage/types"
)

var (
	ErrNoSnapshots     = errors.New("no snapshots found")
	ErrNoTiers         = errors.New("no tiers found")
	errUnknownRateType = errors.New("unknown rate type")
)

// FileName returns the rate file name of the given rate type
func FileName(rateType types.RateType) string {
	return fmt.Sprintf("ibkr-canada-%s.csv", rateType)
}

// Archive is the date-partitioned directory of published rate files:
// <root>/<YYYY>/<MM>/<DD>/ibkr-canada-<type>.csv
type Archive struct {
	logger *slog.Logger
	root   string
	rules  Rules
}

// NewArchive creates a new rate file archive rooted at the given directory
func NewArchive(root string, opts ...ArchiveOption) *Archive {
	a := &Archive{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		root:   root,
		rules:  DefaultRules(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Root returns the archive root directory
func (a *Archive) Root() string {
	return a.root
}

// Path returns the rate file path for the given type and date
func (a *Archive) Path(rateType types.RateType, date time.Time) string {
	return filepath.Join(
		a.root,
		fmt.Sprintf("%04d", date.Year()),
		fmt.Sprintf("%02d", int(date.Month())),
		fmt.Sprintf("%02d", date.Day()),
		FileName(rateType),
	)
}

// SaveSnapshot publishes the snapshot as a rate file.
// The file is written next to its destination and only renamed into
// place once it passes validation, so a rejected snapshot leaves no file behind
func (a *Archive) SaveSnapshot(_ context.Context, snapshot *types.Snapshot) error {
	if !snapshot.Type.Valid() {
		return fmt.Errorf("%w: %q", errUnknownRateType, snapshot.Type)
	}

	var (
		path = a.Path(snapshot.Type, snapshot.Date)
		dir  = filepath.Dir(path)
	)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName(snapshot.Type)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temporary rate file: %w", err)
	}

	tmpPath := tmp.Name()

	publish := func() error {
		if err := WriteRecords(tmp, snapshot.Records); err != nil {
			tmp.Close()

			return fmt.Errorf("unable to write rate file: %w", err)
		}

		if err := tmp.Close(); err != nil {
			return fmt.Errorf("unable to close rate file: %w", err)
		}

		if err := Validate(tmpPath, a.rules); err != nil {
			return fmt.Errorf("rate file rejected: %w", err)
		}

		if err := os.Chmod(tmpPath, 0o644); err != nil {
			return fmt.Errorf("unable to set rate file permissions: %w", err)
		}

		return os.Rename(tmpPath, path)
	}

	if err := publish(); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			a.logger.Warn(
				"unable to remove temporary rate file",
				"path", tmpPath,
				"err", rmErr,
			)
		}

		return err
	}

	a.logger.Info(
		"published rate file",
		"type", snapshot.Type,
		"path", path,
		"rows", len(snapshot.Records),
	)

	return nil
}

// Snapshot reads the published snapshot of the given type and date
func (a *Archive) Snapshot(rateType types.RateType, date time.Time) (*types.Snapshot, error) {
	path := a.Path(rateType, date)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open rate file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("unable to stat rate file: %w", err)
	}

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	return &types.Snapshot{
		Date:      types.DateOf(date),
		FetchedAt: info.ModTime().UTC(),
		Type:      rateType,
		Records:   records,
	}, nil
}

// Dates lists the dates with a published rate file of the given type, oldest first
func (a *Archive) Dates(rateType types.RateType) ([]time.Time, error) {
	var (
		name  = FileName(rateType)
		dates = make([]time.Time, 0)
	)

	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == a.root {
				return fs.SkipAll
			}

			return err
		}

		if d.IsDir() || d.Name() != name {
			return nil
		}

		date, ok := dateFromPath(a.root, path)
		if !ok {
			return nil
		}

		dates = append(dates, date)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to walk archive: %w", err)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	return dates, nil
}

// Latest returns the most recent published snapshot of the given type
func (a *Archive) Latest(rateType types.RateType) (*types.Snapshot, error) {
	dates, err := a.Dates(rateType)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return nil, ErrNoSnapshots
	}

	return a.Snapshot(rateType, dates[len(dates)-1])
}

// Snapshots reads every published snapshot of the given type, oldest first
func (a *Archive) Snapshots(rateType types.RateType) ([]*types.Snapshot, error) {
	dates, err := a.Dates(rateType)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Snapshot, 0, len(dates))

	for _, date := range dates {
		snapshot, err := a.Snapshot(rateType, date)
		if err != nil {
			return nil, err
		}

		out = append(out, snapshot)
	}

	return out, nil
}

// History returns the rate of a single currency tier across the archive, oldest first
func (a *Archive) History(query *types.HistoryQuery) ([]*types.HistoryPoint, error) {
	snapshots, err := a.Snapshots(query.Type)
	if err != nil {
		return nil, err
	}

	return historyOf(snapshots, query.Currency, query.TierLow), nil
}

// Currencies lists the currencies found across the published rate files of the type, sorted
func (a *Archive) Currencies(rateType types.RateType) ([]types.Currency, error) {
	snapshots, err := a.Snapshots(rateType)
	if err != nil {
		return nil, err
	}

	return currenciesOf(snapshots), nil
}

// SecondTierLow returns the second smallest tier lower bound of the currency
// across the archive, or its only lower bound if the currency has a single tier.
// Tiers without a lower bound start at zero
func (a *Archive) SecondTierLow(rateType types.RateType, currency types.Currency) (decimal.Decimal, error) {
	snapshots, err := a.Snapshots(rateType)
	if err != nil {
		return decimal.Zero, err
	}

	return secondTierLow(snapshots, currency)
}

// historyOf picks the tier rate of every snapshot that has the tier
func historyOf(
	snapshots []*types.Snapshot,
	currency types.Currency,
	tierLow decimal.Decimal,
) []*types.HistoryPoint {
	points := make([]*types.HistoryPoint, 0, len(snapshots))

	for _, snapshot := range snapshots {
		r, ok := snapshot.TierRate(currency, tierLow)
		if !ok {
			continue
		}

		points = append(points, &types.HistoryPoint{
			Date: snapshot.Date,
			Rate: r.Rate,
		})
	}

	return points
}

func currenciesOf(snapshots []*types.Snapshot) []types.Currency {
	seen := make(map[types.Currency]struct{})

	for _, snapshot := range snapshots {
		for _, currency := range snapshot.Currencies() {
			seen[currency] = struct{}{}
		}
	}

	out := make([]types.Currency, 0, len(seen))

	for currency := range seen {
		out = append(out, currency)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})

	return out
}

func secondTierLow(snapshots []*types.Snapshot, currency types.Currency) (decimal.Decimal, error) {
	var (
		seen   = make(map[string]struct{})
		bounds = make([]decimal.Decimal, 0)
	)

	for _, snapshot := range snapshots {
		for _, r := range snapshot.Records {
			if r.Currency != currency {
				continue
			}

			low := decimal.Zero
			if r.TierLow.Valid {
				low = r.TierLow.Decimal
			}

			// 100000 and 100000.00 are the same bound
			k := low.String()
			if _, ok := seen[k]; ok {
				continue
			}

			seen[k] = struct{}{}
			bounds = append(bounds, low)
		}
	}

	if len(bounds) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoTiers, currency)
	}

	sort.Slice(bounds, func(i, j int) bool {
		return bounds[i].LessThan(bounds[j])
	})

	if len(bounds) >= 2 {
		return bounds[1], nil
	}

	return bounds[0], nil
}

// dateFromPath infers the snapshot date from the <YYYY>/<MM>/<DD> layout
func dateFromPath(root, path string) (time.Time, bool) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return time.Time{}, false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	var values [3]int

	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, false
		}

		values[i] = v
	}

	date := time.Date(values[0], time.Month(values[1]), values[2], 0, 0, 0, 0, time.UTC)

	// Reject out-of-range parts that time.Date would normalize
	if date.Year() != values[0] || int(date.Month()) != values[1] || date.Day() != values[2] {
		return time.Time{}, false
	}

	return date, true
}
