package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sig-0/ibkrrates/storage"
	"github.com/sig-0/ibkrrates/storage/types"
)

// DB is a connection able to open transactions (*pgx.Conn, pgxpool.Pool)
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

type Storage struct {
	db      DB
	queries *Queries
}

func NewStorage(db DB) *Storage {
	return &Storage{
		db:      db,
		queries: NewQueries(db),
	}
}

// SaveSnapshot replaces the snapshot of the same type and date in a single transaction
func (s *Storage) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		q     = s.queries.WithTx(tx)
		asOf  = dateToPgDate(snapshot.Date)
		fetch = timeToTimestampz(snapshot.FetchedAt)
	)

	if err = q.DeleteSnapshot(ctx, snapshot.Type.String(), asOf); err != nil {
		return fmt.Errorf("unable to replace snapshot: %w", err)
	}

	for i, r := range snapshot.Records {
		row := RateRecordRow{
			RateType:      snapshot.Type.String(),
			AsOf:          asOf,
			Position:      int32(i), //nolint:gosec // bounded by the table size
			Currency:      r.Currency.String(),
			TierLow:       nullDecimalToText(r.TierLow),
			TierHigh:      nullDecimalToText(r.TierHigh),
			Rate:          types.FormatDecimal(r.Rate),
			BenchmarkDiff: nullDecimalToText(r.BenchmarkDiff),
			TierLabel:     r.TierLabel,
			FetchedAt:     fetch,
		}

		if err = q.InsertRateRecord(ctx, row); err != nil {
			return fmt.Errorf("unable to save rate record %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("unable to commit snapshot: %w", err)
	}

	return nil
}

func (s *Storage) Snapshot(ctx context.Context, query *types.SnapshotQuery) (*types.Snapshot, error) {
	cutoff := pgtype.Date{InfinityModifier: pgtype.Infinity, Valid: true}
	if !query.AsOf.IsZero() {
		cutoff = dateToPgDate(query.AsOf)
	}

	date, err := s.queries.LatestDate(ctx, query.Type.String(), cutoff)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch snapshot date: %w", err)
	}

	if !date.Valid {
		return nil, storage.ErrNotFound
	}

	var currency pgtype.Text
	if query.Currency != nil {
		currency = pgtype.Text{String: query.Currency.String(), Valid: true}
	}

	rows, err := s.queries.SnapshotRecords(ctx, query.Type.String(), date, currency)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("unable to fetch snapshot: %w", err)
	}

	snapshot := &types.Snapshot{
		Date:    types.DateOf(date.Time),
		Type:    query.Type,
		Records: make([]*types.RateRecord, 0, len(rows)),
	}

	for _, row := range rows {
		record, err := parseRateRecord(row)
		if err != nil {
			return nil, err
		}

		snapshot.FetchedAt = timestampzToTime(row.FetchedAt)
		snapshot.Records = append(snapshot.Records, record)
	}

	return snapshot, nil
}

func (s *Storage) ListCurrencies(ctx context.Context, rateType types.RateType) ([]types.Currency, error) {
	results, err := s.queries.ListCurrencies(ctx, rateType.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // valid case
		}

		return nil, fmt.Errorf("unable to fetch currencies: %w", err)
	}

	out := make([]types.Currency, 0, len(results))

	for _, code := range results {
		out = append(out, types.Currency(code))
	}

	return out, nil
}

func (s *Storage) History(ctx context.Context, query *types.HistoryQuery) ([]*types.HistoryPoint, error) {
	results, err := s.queries.History(
		ctx,
		query.Type.String(),
		query.Currency.String(),
		query.TierLow.String(),
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("unable to fetch history: %w", err)
	}

	out := make([]*types.HistoryPoint, 0, len(results))

	for _, row := range results {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return nil, fmt.Errorf("invalid stored rate %q: %w", row.Rate, err)
		}

		out = append(out, &types.HistoryPoint{
			Date: types.DateOf(row.AsOf.Time),
			Rate: rate,
		})
	}

	return out, nil
}

// parseRateRecord parses the postgres rate row to the common Go type
func parseRateRecord(row RateRecordRow) (*types.RateRecord, error) {
	rate, err := decimal.NewFromString(row.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid stored rate %q: %w", row.Rate, err)
	}

	r := &types.RateRecord{
		Date:      types.DateOf(row.AsOf.Time),
		Currency:  types.Currency(row.Currency),
		Rate:      rate,
		TierLabel: row.TierLabel,
	}

	if r.TierLow, err = textToNullDecimal(row.TierLow); err != nil {
		return nil, fmt.Errorf("invalid stored tier low: %w", err)
	}

	if r.TierHigh, err = textToNullDecimal(row.TierHigh); err != nil {
		return nil, fmt.Errorf("invalid stored tier high: %w", err)
	}

	if r.BenchmarkDiff, err = textToNullDecimal(row.BenchmarkDiff); err != nil {
		return nil, fmt.Errorf("invalid stored benchmark diff: %w", err)
	}

	return r, nil
}

// nullDecimalToText converts the optional decimal to postgres text (NULL when unset)
func nullDecimalToText(d decimal.NullDecimal) pgtype.Text {
	if !d.Valid {
		return pgtype.Text{}
	}

	return pgtype.Text{
		String: types.FormatDecimal(d.Decimal),
		Valid:  true,
	}
}

// textToNullDecimal converts the postgres text value to an optional decimal
func textToNullDecimal(t pgtype.Text) (decimal.NullDecimal, error) {
	if !t.Valid {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(t.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	return decimal.NewNullDecimal(d), nil
}

// dateToPgDate converts the calendar date to postgres date
func dateToPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{
		Time:  types.DateOf(t),
		Valid: true,
	}
}

// timeToTimestampz converts the time value to postgres timestamp
func timeToTimestampz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t.UTC(),
		Valid: true,
	}
}

// timestampzToTime converts the postgres timestamp value to time
func timestampzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}

	return ts.Time.UTC()
}
