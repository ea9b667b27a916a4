package export

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sig-0/ibkrrates/provider/currencies"
	"github.com/sig-0/ibkrrates/storage/types"
)

// DefaultMinRows is the minimum number of data rows of a valid rate file
const DefaultMinRows = 20

var (
	ErrEmptyFile       = errors.New("rate file is empty")
	ErrInvalidHeader   = errors.New("rate file header is invalid")
	ErrTooFewRows      = errors.New("rate file has too few rows")
	ErrMissingCurrency = errors.New("rate file has no rows for the required currency")
)

// Rules are the acceptance rules of a rate file
type Rules struct {
	RequiredCurrency types.Currency
	MinRows          int
}

// DefaultRules returns the default rate file acceptance rules
func DefaultRules() Rules {
	return Rules{
		MinRows:          DefaultMinRows,
		RequiredCurrency: currencies.USD,
	}
}

// Validate checks the rate file at the given path against the rules
func Validate(path string, rules Rules) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read rate file: %w", err)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return ErrEmptyFile
	}

	// The header line must match exactly, before any CSV leniency applies
	sc := bufio.NewScanner(bytes.NewReader(content))
	if !sc.Scan() || sc.Text() != Header {
		return ErrInvalidHeader
	}

	records, err := ReadRecords(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("unable to parse rate file: %w", err)
	}

	if len(records) < rules.MinRows {
		return fmt.Errorf("%w: %d rows, expected at least %d", ErrTooFewRows, len(records), rules.MinRows)
	}

	if rules.RequiredCurrency == "" {
		return nil
	}

	for _, r := range records {
		if r.Currency == rules.RequiredCurrency {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrMissingCurrency, rules.RequiredCurrency)
}
