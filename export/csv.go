package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/ibkrrates/storage/types"
)

// Header is the CSV header of every rate file
const Header = "Date,Currency,TierLow,TierHigh,Rate,BenchmarkDiff"

const (
	numFields        = 6
	colDate          = 0
	colCurrency      = 1
	colTierLow       = 2
	colTierHigh      = 3
	colRate          = 4
	colBenchmarkDiff = 5
)

var errInvalidField = errors.New("field contains a separator")

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}

	return types.FormatDecimal(d.Decimal)
}

// MarshalRecord converts the record to its CSV fields
func MarshalRecord(r *types.RateRecord) []string {
	return []string{
		r.Date.Format(types.DateFormat),
		r.Currency.String(),
		formatNullDecimal(r.TierLow),
		formatNullDecimal(r.TierHigh),
		types.FormatDecimal(r.Rate),
		formatNullDecimal(r.BenchmarkDiff),
	}
}

// UnmarshalRecord parses the CSV fields of a single record
func UnmarshalRecord(fields []string) (*types.RateRecord, error) {
	if len(fields) != numFields {
		return nil, fmt.Errorf("expected %d fields, got %d", numFields, len(fields))
	}

	date, err := time.Parse(types.DateFormat, fields[colDate])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", fields[colDate], err)
	}

	rate, err := decimal.NewFromString(fields[colRate])
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", fields[colRate], err)
	}

	r := &types.RateRecord{
		Date:     date,
		Currency: types.Currency(fields[colCurrency]),
		Rate:     rate,
	}

	if r.TierLow, err = parseNullDecimal(fields[colTierLow]); err != nil {
		return nil, fmt.Errorf("invalid tier low: %w", err)
	}

	if r.TierHigh, err = parseNullDecimal(fields[colTierHigh]); err != nil {
		return nil, fmt.Errorf("invalid tier high: %w", err)
	}

	if r.BenchmarkDiff, err = parseNullDecimal(fields[colBenchmarkDiff]); err != nil {
		return nil, fmt.Errorf("invalid benchmark diff: %w", err)
	}

	return r, nil
}

func parseNullDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	return decimal.NewNullDecimal(d), nil
}

// WriteRecords writes the header and the records as unquoted CSV lines
func WriteRecords(w io.Writer, records []*types.RateRecord) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range records {
		fields := MarshalRecord(r)

		for _, field := range fields {
			if strings.ContainsAny(field, ",\r\n") {
				return fmt.Errorf("row %d: %w: %q", i+2, errInvalidField, field)
			}
		}

		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	return bw.Flush()
}

// ReadRecords reads all records from a rate file, including the header
func ReadRecords(r io.Reader) ([]*types.RateRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rate CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	if strings.Join(rows[0], ",") != Header {
		return nil, ErrInvalidHeader
	}

	records := make([]*types.RateRecord, 0, len(rows)-1)

	for i, row := range rows[1:] {
		record, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}

		records = append(records, record)
	}

	return records, nil
}
