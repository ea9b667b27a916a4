package history

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/storage/types"
)

// publish writes a minimal margin rate file with the given USD rate
func publish(t *testing.T, root string, date time.Time, rate string) {
	t.Helper()

	records := []*types.RateRecord{
		{
			Date:     date,
			Currency: "USD",
			TierLow:  decimal.NewNullDecimal(decimal.NewFromInt(100000)),
			TierHigh: decimal.NewNullDecimal(decimal.NewFromInt(1000000)),
			Rate:     decimal.RequireFromString(rate),
		},
	}

	archive := export.NewArchive(root, export.WithRules(export.Rules{MinRows: 1}))

	require.NoError(t, archive.SaveSnapshot(context.Background(), &types.Snapshot{
		Date:    date,
		Type:    types.RateTypeMargin,
		Records: records,
	}))
}

func TestHistory_Run(t *testing.T) {
	t.Parallel()

	t.Run("history table", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()

		publish(t, root, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "5.080")
		publish(t, root, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), "5.330")
		publish(t, root, time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), "5.330")

		cfg := &historyCfg{
			outputDir: root,
			rateType:  types.RateTypeMargin.String(),
			currency:  "usd",
			tierLow:   "100,000",
		}

		var buf bytes.Buffer

		require.NoError(t, cfg.run(&buf))

		var (
			out   = buf.String()
			lines = strings.Split(out, "\n")
		)

		assert.Equal(t, "USD margin-rates, tier from 100,000", lines[0])
		assert.Contains(t, out, "2024-01-01")
		assert.Contains(t, out, "5.080")
		assert.Contains(t, out, "+0.250")
		assert.Contains(t, out, "3 dates")
		assert.NotContains(t, out, "DATES")
	})

	t.Run("no history", func(t *testing.T) {
		t.Parallel()

		cfg := &historyCfg{
			outputDir: t.TempDir(),
			rateType:  types.RateTypeInterest.String(),
			currency:  "USD",
			tierLow:   "0",
		}

		assert.Error(t, cfg.run(&bytes.Buffer{}))
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()

		cfg := &historyCfg{
			outputDir: t.TempDir(),
			rateType:  "fx",
			tierLow:   "0",
		}

		assert.Error(t, cfg.run(&bytes.Buffer{}))
	})

	t.Run("invalid tier", func(t *testing.T) {
		t.Parallel()

		cfg := &historyCfg{
			outputDir: t.TempDir(),
			rateType:  types.RateTypeInterest.String(),
			tierLow:   "lots",
		}

		assert.Error(t, cfg.run(&bytes.Buffer{}))
	})
}

func TestHistory_FormatAmount(t *testing.T) {
	t.Parallel()

	p := message.NewPrinter(language.English)

	assert.Equal(t, "1,000,000", formatAmount(p, decimal.NewFromInt(1000000)))
	assert.Equal(t, "0", formatAmount(p, decimal.Zero))
}
