package sql

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the query surface shared by connections and transactions
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Queries wraps the rate_records statements
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx binds the queries to the given transaction
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// RateRecordRow is a single rate_records row.
// Numeric columns travel as text to keep their exact precision
type RateRecordRow struct {
	FetchedAt     pgtype.Timestamptz
	AsOf          pgtype.Date
	TierLow       pgtype.Text
	TierHigh      pgtype.Text
	BenchmarkDiff pgtype.Text
	RateType      string
	Currency      string
	Rate          string
	TierLabel     string
	Position      int32
}

const deleteSnapshot = `
DELETE FROM rate_records
WHERE rate_type = $1 AND as_of = $2
`

func (q *Queries) DeleteSnapshot(ctx context.Context, rateType string, asOf pgtype.Date) error {
	_, err := q.db.Exec(ctx, deleteSnapshot, rateType, asOf)

	return err
}

const insertRateRecord = `
INSERT INTO rate_records (
    rate_type, as_of, position, currency,
    tier_low, tier_high, rate, benchmark_diff,
    tier_label, fetched_at
) VALUES (
    $1, $2, $3, $4,
    $5::numeric, $6::numeric, $7::numeric, $8::numeric,
    $9, $10
)
`

func (q *Queries) InsertRateRecord(ctx context.Context, row RateRecordRow) error {
	_, err := q.db.Exec(
		ctx,
		insertRateRecord,
		row.RateType,
		row.AsOf,
		row.Position,
		row.Currency,
		row.TierLow,
		row.TierHigh,
		row.Rate,
		row.BenchmarkDiff,
		row.TierLabel,
		row.FetchedAt,
	)

	return err
}

const latestDate = `
SELECT MAX(as_of)
FROM rate_records
WHERE rate_type = $1 AND as_of <= $2
`

// LatestDate returns the most recent snapshot date on or before asOf.
// The result is invalid (NULL) when there is no such snapshot
func (q *Queries) LatestDate(ctx context.Context, rateType string, asOf pgtype.Date) (pgtype.Date, error) {
	var date pgtype.Date

	err := q.db.QueryRow(ctx, latestDate, rateType, asOf).Scan(&date)

	return date, err
}

const snapshotRecords = `
SELECT rate_type, as_of, position, currency,
       tier_low::text, tier_high::text, rate::text, benchmark_diff::text,
       tier_label, fetched_at
FROM rate_records
WHERE rate_type = $1
  AND as_of = $2
  AND ($3::text IS NULL OR currency = $3::text)
ORDER BY position
`

func (q *Queries) SnapshotRecords(
	ctx context.Context,
	rateType string,
	asOf pgtype.Date,
	currency pgtype.Text,
) ([]RateRecordRow, error) {
	rows, err := q.db.Query(ctx, snapshotRecords, rateType, asOf, currency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RateRecordRow

	for rows.Next() {
		var i RateRecordRow

		if err := rows.Scan(
			&i.RateType,
			&i.AsOf,
			&i.Position,
			&i.Currency,
			&i.TierLow,
			&i.TierHigh,
			&i.Rate,
			&i.BenchmarkDiff,
			&i.TierLabel,
			&i.FetchedAt,
		); err != nil {
			return nil, err
		}

		items = append(items, i)
	}

	return items, rows.Err()
}

const listCurrencies = `
SELECT DISTINCT currency
FROM rate_records
WHERE rate_type = $1
ORDER BY currency
`

func (q *Queries) ListCurrencies(ctx context.Context, rateType string) ([]string, error) {
	rows, err := q.db.Query(ctx, listCurrencies, rateType)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const history = `
SELECT DISTINCT ON (as_of) as_of, rate::text
FROM rate_records
WHERE rate_type = $1
  AND currency = $2
  AND COALESCE(tier_low, 0) = $3::numeric
ORDER BY as_of, position
`

// HistoryRow is a single tier rate on a single date
type HistoryRow struct {
	AsOf pgtype.Date
	Rate string
}

func (q *Queries) History(
	ctx context.Context,
	rateType, currency, tierLow string,
) ([]HistoryRow, error) {
	rows, err := q.db.Query(ctx, history, rateType, currency, tierLow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []HistoryRow

	for rows.Next() {
		var i HistoryRow

		if err := rows.Scan(&i.AsOf, &i.Rate); err != nil {
			return nil, err
		}

		items = append(items, i)
	}

	return items, rows.Err()
}
