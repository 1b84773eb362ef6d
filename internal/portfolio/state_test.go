package portfolio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portfolio_state.json")

	st, err := LoadState(path)
	require.NoError(t, err)
	assert.Empty(t, st)

	want := State{"KMB": {Signal: SignalWatch, Price: 120.5, GainPct: -6.2, FirstSeen: testNow}}
	require.NoError(t, SaveState(path, want))

	got, err := LoadState(path)
	require.NoError(t, err)
	require.Contains(t, got, "KMB")
	assert.Equal(t, SignalWatch, got["KMB"].Signal)
	assert.True(t, testNow.Equal(got["KMB"].FirstSeen))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"signal_type": "WATCH"`)
}

func TestLoadStateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))
	_, err := LoadState(path)
	assert.ErrorContains(t, err, "decode portfolio state")
}
