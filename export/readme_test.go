package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateReadme(t *testing.T) {
	t.Parallel()

	const readme = "# Rates\n\n" +
		"This repository contains the daily IBKR Canada interest and margin rates, with stale links.\n\n" +
		"## Data\n"

	t.Run("links are refreshed", func(t *testing.T) {
		t.Parallel()

		var (
			root     = t.TempDir()
			path     = filepath.Join(root, "README.md")
			interest = filepath.Join(root, "data", "2024", "01", "01", "ibkr-canada-interest-rates.csv")
			margin   = filepath.Join(root, "data", "2024", "01", "01", "ibkr-canada-margin-rates.csv")
		)

		require.NoError(t, os.WriteFile(path, []byte(readme), 0o644))
		require.NoError(t, UpdateReadme(path, interest, margin))

		content, err := os.ReadFile(path)
		require.NoError(t, err)

		assert.Equal(
			t,
			"# Rates\n\n"+
				"This repository contains the daily IBKR Canada interest and margin rates, "+
				"with the latest snapshots available in "+
				"[`data/2024/01/01/ibkr-canada-interest-rates.csv`](data/2024/01/01/ibkr-canada-interest-rates.csv) and "+
				"[`data/2024/01/01/ibkr-canada-margin-rates.csv`](data/2024/01/01/ibkr-canada-margin-rates.csv).\n\n"+
				"## Data\n",
			string(content),
		)
	})

	t.Run("missing README", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, UpdateReadme(filepath.Join(t.TempDir(), "README.md"), "a.csv", "b.csv"))
	})

	t.Run("files outside the README directory", func(t *testing.T) {
		t.Parallel()

		var (
			root = t.TempDir()
			path = filepath.Join(root, "docs", "README.md")
		)

		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(readme), 0o644))
		require.NoError(t, UpdateReadme(path, filepath.Join(root, "a.csv"), filepath.Join(root, "b.csv")))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, readme, string(content))
	})

	t.Run("README without the sentence", func(t *testing.T) {
		t.Parallel()

		var (
			root = t.TempDir()
			path = filepath.Join(root, "README.md")
		)

		require.NoError(t, os.WriteFile(path, []byte("# Rates\n"), 0o644))
		require.NoError(t, UpdateReadme(path, filepath.Join(root, "a.csv"), filepath.Join(root, "b.csv")))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "# Rates\n", string(content))
	})
}
