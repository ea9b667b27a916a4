package update

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/provider/ibkr"
	"github.com/sig-0/ibkrrates/storage/types"
)

const readmeContent = "# IBKR Canada rates\n\n" +
	"This repository contains the daily IBKR Canada interest and margin rates, updated daily.\n"

var (
	noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

	interestFixture = filepath.Join("..", "..", "provider", "ibkr", "testdata", "interest-rates.html")
	marginFixture   = filepath.Join("..", "..", "provider", "ibkr", "testdata", "margin-rates.html")
)

// newTestCfg creates an offline update configuration rooted in a temporary directory
func newTestCfg(t *testing.T) *updateCfg {
	t.Helper()

	root := t.TempDir()

	return &updateCfg{
		outputDir:    filepath.Join(root, "data"),
		asOf:         "2024-01-02",
		rateType:     typeAll,
		interestHTML: interestFixture,
		marginHTML:   marginFixture,
		minRows:      export.DefaultMinRows,
		timeout:      time.Second,
	}
}

func TestUpdate_Run(t *testing.T) {
	t.Parallel()

	t.Run("all tables", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)

		readmePath := filepath.Join(filepath.Dir(cfg.outputDir), "README.md")
		require.NoError(t, os.WriteFile(readmePath, []byte(readmeContent), 0o644))

		written, err := cfg.run(context.Background(), noopLogger, time.Now())
		require.NoError(t, err)
		require.Len(t, written, 2)

		interestPath := filepath.Join(cfg.outputDir, "2024", "01", "02", "ibkr-canada-interest-rates.csv")
		marginPath := filepath.Join(cfg.outputDir, "2024", "01", "02", "ibkr-canada-margin-rates.csv")

		assert.Equal(t, interestPath, written[types.RateTypeInterest])
		assert.Equal(t, marginPath, written[types.RateTypeMargin])

		require.NoError(t, export.Validate(interestPath, export.DefaultRules()))
		require.NoError(t, export.Validate(marginPath, export.DefaultRules()))

		content, err := os.ReadFile(interestPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "2024-01-02,USD,10000,,3.580,0.5\n")

		readme, err := os.ReadFile(readmePath)
		require.NoError(t, err)
		assert.Contains(
			t,
			string(readme),
			"[`data/2024/01/02/ibkr-canada-interest-rates.csv`](data/2024/01/02/ibkr-canada-interest-rates.csv)",
		)
		assert.Contains(
			t,
			string(readme),
			"[`data/2024/01/02/ibkr-canada-margin-rates.csv`](data/2024/01/02/ibkr-canada-margin-rates.csv)",
		)
	})

	t.Run("single table leaves the README", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)
		cfg.rateType = types.RateTypeMargin.String()

		readmePath := filepath.Join(filepath.Dir(cfg.outputDir), "README.md")
		require.NoError(t, os.WriteFile(readmePath, []byte(readmeContent), 0o644))

		written, err := cfg.run(context.Background(), noopLogger, time.Now())
		require.NoError(t, err)
		require.Len(t, written, 1)

		readme, err := os.ReadFile(readmePath)
		require.NoError(t, err)
		assert.Equal(t, readmeContent, string(readme))
	})

	t.Run("default date is today in US/Eastern", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)
		cfg.asOf = ""
		cfg.rateType = types.RateTypeInterest.String()

		now := time.Date(2024, time.March, 8, 2, 0, 0, 0, time.UTC)

		written, err := cfg.run(context.Background(), noopLogger, now)
		require.NoError(t, err)

		assert.Equal(
			t,
			filepath.Join(cfg.outputDir, "2024", "03", "07", "ibkr-canada-interest-rates.csv"),
			written[types.RateTypeInterest],
		)
	})

	t.Run("rejected table publishes no file", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)
		cfg.rateType = types.RateTypeInterest.String()
		cfg.minRows = 100

		_, err := cfg.run(context.Background(), noopLogger, time.Now())
		require.ErrorIs(t, err, export.ErrTooFewRows)

		_, statErr := os.Stat(filepath.Join(cfg.outputDir, "2024", "01", "02", "ibkr-canada-interest-rates.csv"))
		assert.ErrorIs(t, statErr, os.ErrNotExist)
	})

	t.Run("missing local page", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)
		cfg.interestHTML = filepath.Join(t.TempDir(), "missing.html")

		_, err := cfg.run(context.Background(), noopLogger, time.Now())

		assert.Error(t, err)
	})

	t.Run("invalid as of", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)
		cfg.asOf = "01/02/2024"

		_, err := cfg.run(context.Background(), noopLogger, time.Now())

		assert.Error(t, err)
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()

		cfg := newTestCfg(t)
		cfg.rateType = "dividends"

		_, err := cfg.run(context.Background(), noopLogger, time.Now())

		assert.ErrorIs(t, err, errInvalidType)
	})
}

func TestUpdate_SourceFor(t *testing.T) {
	t.Parallel()

	cfg := &updateCfg{
		interestHTML: "interest.html",
		timeout:      time.Second,
		userAgent:    ibkr.DefaultUserAgent,
	}

	source, err := cfg.sourceFor(types.RateTypeInterest)
	require.NoError(t, err)
	assert.Equal(t, "interest.html", source.String())

	source, err = cfg.sourceFor(types.RateTypeMargin)
	require.NoError(t, err)
	assert.Equal(t, ibkr.MarginRatesURL, source.String())
}

func TestUpdate_ParseRateTypes(t *testing.T) {
	t.Parallel()

	all, err := parseRateTypes(typeAll)
	require.NoError(t, err)
	assert.Equal(t, []types.RateType{types.RateTypeInterest, types.RateTypeMargin}, all)

	single, err := parseRateTypes("margin-rates")
	require.NoError(t, err)
	assert.Equal(t, []types.RateType{types.RateTypeMargin}, single)

	_, err = parseRateTypes("")
	assert.ErrorIs(t, err, errInvalidType)
}
