package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/ibkrrates/storage/types"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rates.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func writeSnapshotFile(t *testing.T, snapshot *types.Snapshot) string {
	t.Helper()

	var sb strings.Builder

	require.NoError(t, WriteRecords(&sb, snapshot.Records))

	return writeFile(t, sb.String())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		assert.Error(t, Validate(filepath.Join(t.TempDir(), "missing.csv"), DefaultRules()))
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		assert.ErrorIs(t, Validate(writeFile(t, ""), DefaultRules()), ErrEmptyFile)
	})

	t.Run("wrong header", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "Date,Currency,Low,High,Rate,BenchmarkDiff\n2024-01-01,USD,,,1,\n")

		assert.ErrorIs(t, Validate(path, DefaultRules()), ErrInvalidHeader)
	})

	t.Run("too few rows", func(t *testing.T) {
		t.Parallel()

		path := writeSnapshotFile(t, generateSnapshot(types.RateTypeInterest, testDate, 5))

		assert.ErrorIs(t, Validate(path, DefaultRules()), ErrTooFewRows)
	})

	t.Run("missing required currency", func(t *testing.T) {
		t.Parallel()

		snapshot := generateSnapshot(types.RateTypeInterest, testDate, 10)
		snapshot.Records = snapshot.Records[2:] // drop USD

		rules := DefaultRules()
		rules.MinRows = 1

		assert.ErrorIs(t, Validate(writeSnapshotFile(t, snapshot), rules), ErrMissingCurrency)
	})

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()

		path := writeSnapshotFile(t, generateSnapshot(types.RateTypeInterest, testDate, 9))

		assert.NoError(t, Validate(path, DefaultRules()))
	})

	t.Run("no required currency", func(t *testing.T) {
		t.Parallel()

		snapshot := generateSnapshot(types.RateTypeInterest, testDate, 1)
		snapshot.Records = snapshot.Records[2:]

		assert.NoError(t, Validate(writeSnapshotFile(t, snapshot), Rules{MinRows: 1}))
	})
}
