package portfolio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/collector"
)

func newTestMonitor(t *testing.T, f *collector.MockFetcher, holdings ...Holding) *Monitor {
	t.Helper()
	m := NewMonitor(f, Config{
		Holdings:  holdings,
		StateFile: filepath.Join(t.TempDir(), "portfolio_state.json"),
		Benchmark: "SPY",
	})
	m.now = func() time.Time { return testNow }
	return m
}

func TestMonitorRun(t *testing.T) {
	f := &collector.MockFetcher{Price: 100, Series: map[string][]float64{
		"AAA": crashCloses(),
		"BBB": sawtoothCloses(79),
		"SPY": sawtoothCloses(79),
	}, Fail: map[string]error{"ZZZ": errors.New("delisted")}}
	m := newTestMonitor(t, f,
		Holding{Symbol: "BBB", Shares: 5, CostBasis: 50},
		Holding{Symbol: "AAA", Shares: 10, CostBasis: 90},
		Holding{Symbol: "ZZZ", Shares: 1, CostBasis: 1},
	)

	rep, err := m.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Positions, 2)
	assert.Equal(t, "AAA", rep.Positions[0].Symbol, "riskiest first")
	assert.Equal(t, []string{"ZZZ"}, rep.Failed)
	assert.Equal(t, 1, rep.Counts[SignalSell])
	assert.Equal(t, 1, rep.Counts[SignalHold])
	assert.Equal(t, 1, rep.Reducing())
	assert.Equal(t, []string{"🔴 AAA → SELL"}, rep.NewAlerts)

	wantValue := 750 + 5*rep.Positions[1].Price
	assert.InDelta(t, wantValue, rep.TotalValue, 1e-9)
	assert.InDelta(t, wantValue-900-250, rep.TotalGain, 1e-9)

	st, err := LoadState(m.cfg.StateFile)
	require.NoError(t, err)
	require.Contains(t, st, "AAA")
	assert.Equal(t, SignalSell, st["AAA"].Signal)
	assert.True(t, testNow.Equal(st["AAA"].FirstSeen))
	assert.NotContains(t, st, "ZZZ")

	// A later run keeps first_seen and does not repeat the alert.
	m.now = func() time.Time { return testNow.AddDate(0, 0, 3) }
	rep, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.NewAlerts)
	require.NotNil(t, rep.Positions[0].DaysHeld)
	assert.Equal(t, 3, *rep.Positions[0].DaysHeld)

	st, err = LoadState(m.cfg.StateFile)
	require.NoError(t, err)
	assert.True(t, testNow.Equal(st["AAA"].FirstSeen))
}

func TestMonitorBetaAgainstItself(t *testing.T) {
	f := &collector.MockFetcher{Series: map[string][]float64{
		"BBB": sawtoothCloses(79),
		"SPY": sawtoothCloses(79),
	}}
	rep, err := newTestMonitor(t, f, Holding{Symbol: "BBB", Shares: 1, CostBasis: 50}).Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rep.Beta, 1e-9)
}

func TestMonitorBenchmarkFailureDefaultsBeta(t *testing.T) {
	f := &collector.MockFetcher{
		Series: map[string][]float64{"BBB": sawtoothCloses(79)},
		Fail:   map[string]error{"SPY": errors.New("503")},
	}
	rep, err := newTestMonitor(t, f, Holding{Symbol: "BBB", Shares: 1, CostBasis: 50}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, rep.Beta)
}

func TestMonitorWarnings(t *testing.T) {
	f := &collector.MockFetcher{Series: map[string][]float64{
		"A1": crashCloses(), "A2": crashCloses(), "A3": crashCloses(),
	}}
	m := newTestMonitor(t, f,
		Holding{Symbol: "A1", Shares: 1, CostBasis: 100},
		Holding{Symbol: "A2", Shares: 1, CostBasis: 100},
		Holding{Symbol: "A3", Shares: 1, CostBasis: 100},
	)
	m.cfg.Benchmark = ""

	rep, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Counts[SignalSell])
	assert.InDelta(t, -25.0, rep.TotalGainPct, 1e-9)
	assert.Contains(t, rep.Warnings, "⚠️ 3 positions need selling")
	assert.Contains(t, rep.Warnings, "⚠️ Portfolio down -25.0%")
	assert.Len(t, rep.NewAlerts, 3)
}

func TestMonitorRunFailures(t *testing.T) {
	_, err := newTestMonitor(t, &collector.MockFetcher{}).Run(context.Background())
	assert.ErrorContains(t, err, "no holdings")

	f := &collector.MockFetcher{Fail: map[string]error{"AAA": errors.New("down")}}
	_, err = newTestMonitor(t, f, Holding{Symbol: "AAA", Shares: 1, CostBasis: 1}).Run(context.Background())
	assert.ErrorContains(t, err, "all 1 holdings failed")
}
