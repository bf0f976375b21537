package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableKnownPair(t *testing.T) {
	tbl := Default()
	cost := tbl.Cost("openai", "gpt-4o", 1000, 500)
	assert.InDelta(t, 0.0025+0.005, cost, 1e-9)
}

func TestUnknownPairCostsZero(t *testing.T) {
	tbl := Default()
	assert.Equal(t, 0.0, tbl.Cost("openai", "not-a-real-model", 1000, 1000))
	assert.Equal(t, 0.0, tbl.Cost("not-a-real-provider", "gpt-4o", 1000, 1000))
}

func TestCostRoundsToSixDecimals(t *testing.T) {
	tbl := New()
	tbl.Set("x", "y", Price{InputPer1K: 0.0000001, OutputPer1K: 0})
	cost := tbl.Cost("x", "y", 1, 0)
	assert.Equal(t, 0.0, cost)
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"openai": {"gpt-4o": {"input_per_1k": 9, "output_per_1k": 9}},
		"custom": {"custom-model": {"input_per_1k": 0.001, "output_per_1k": 0.002}}
	}`), 0o644))

	tbl := Default()
	require.NoError(t, tbl.LoadFile(path))

	assert.Equal(t, 9.0, tbl.Cost("openai", "gpt-4o", 1000, 0))
	price, ok := tbl.Lookup("custom", "custom-model")
	require.True(t, ok)
	assert.Equal(t, 0.001, price.InputPer1K)

	// Entries not named in the file survive the merge untouched.
	_, stillThere := tbl.Lookup("anthropic", "claude-3-haiku")
	assert.True(t, stillThere)
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	tbl := Default()
	require.NoError(t, tbl.LoadFile(filepath.Join(t.TempDir(), "missing.json")))
}
