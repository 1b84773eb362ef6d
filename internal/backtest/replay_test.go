package backtest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/normalize"
	"CrashSentinel/internal/strategy"
)

func newEngine(t *testing.T) *strategy.Engine {
	t.Helper()
	timer, err := debtceiling.NewTimer(debtceiling.DefaultConfig(time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	scorer, err := strategy.NewScorer(strategy.DefaultWeights())
	require.NoError(t, err)
	return strategy.NewEngine(strategy.DefaultConfig(), normalize.New(nil), scorer, timer)
}

// uniformCSV writes one row per date with every weighted indicator at the given score.
func uniformCSV(rows map[string]float64, order []string) string {
	var names []string
	for _, w := range strategy.DefaultWeights() {
		names = append(names, w.Name)
	}
	var b strings.Builder
	b.WriteString("date," + strings.Join(names, ",") + ",tbill_spread,treasury_vol,fear\n")
	for _, d := range order {
		b.WriteString(d)
		for range names {
			fmt.Fprintf(&b, ",%g", rows[d])
		}
		b.WriteString(",,,\n")
	}
	return b.String()
}

func TestParseCSV(t *testing.T) {
	in := "date, vix_expansion, credit_stress, fear\n" +
		"# comment line\n" +
		"2026-03-02, 0.4, , 22.5\n" +
		"2026-03-03, 0.5, 0.1,\n"

	rows, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, 0.4, rows[0].Indicators["vix_expansion"])
	_, present := rows[0].Indicators["credit_stress"]
	assert.False(t, present)
	assert.Equal(t, 22.5, rows[0].DebtCeiling.Fear)
	assert.Nil(t, rows[0].DebtCeiling.TBillSpreadBP)

	assert.Equal(t, 0.1, rows[1].Indicators["credit_stress"])
	assert.Nil(t, rows[1].DebtCeiling.Fear)
}

func TestParseCSV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty"},
		{"no date column", "day,vix\n2026-01-01,1\n", "header"},
		{"bad date", "date,vix\n01/02/2026,1\n", "bad date"},
		{"not a number", "date,vix\n2026-01-02,high\n", "not a number"},
		{"backwards", "date,vix\n2026-01-03,1\n2026-01-02,1\n", "before"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_SellCooldownRebuy(t *testing.T) {
	order := []string{"2026-01-05", "2026-01-06", "2026-01-07", "2026-01-08"}
	scores := map[string]float64{"2026-01-05": 0.6, "2026-01-06": 0.2, "2026-01-07": 0.2, "2026-01-08": 0.2}
	rows, err := ParseCSV(strings.NewReader(uniformCSV(scores, order)))
	require.NoError(t, err)

	rep, err := Run(rows, newEngine(t), model.NewPositionState())
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Cycles)
	assert.Equal(t, 1, rep.Counts[model.ActionSell])
	assert.Equal(t, 2, rep.Counts[model.ActionNoAction])
	assert.Equal(t, 1, rep.Counts[model.ActionRebuy])
	assert.Equal(t, 3, rep.DaysSold)
	assert.InDelta(t, 0.6, rep.MaxScore, 1e-9)
	assert.Equal(t, "2026-01-05", rep.MaxScoreDate.Format("2006-01-02"))

	require.Len(t, rep.Signals, 2)
	assert.Equal(t, model.ActionSell, rep.Signals[0].Action)
	assert.Equal(t, model.ActionRebuy, rep.Signals[1].Action)
	assert.Equal(t, model.PositionHolding, rep.Final.Position)

	var out bytes.Buffer
	require.NoError(t, rep.WriteText(&out))
	assert.Contains(t, out.String(), "2026-01-05")
	assert.Contains(t, out.String(), "cycles=4 sell=1 rebuy=1 hold=0 no_action=2")
	assert.Contains(t, out.String(), "final position: HOLDING")
}

func TestRun_StartsFromGivenState(t *testing.T) {
	rows := []Row{{Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Indicators: map[string]any{"vix_expansion": 0.9}}}
	start := model.PositionState{Position: model.PositionSold, SellOrigin: model.SellOriginThreshold}

	rep, err := Run(rows, newEngine(t), start)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Counts[model.ActionHold])
	assert.Empty(t, rep.Signals)
	assert.Equal(t, model.PositionSold, rep.Final.Position)
}

func TestRun_MalformedRowStops(t *testing.T) {
	rows := []Row{
		{Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Indicators: map[string]any{"dollar": 0.1}},
		{Date: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), Indicators: map[string]any{"dollar": []float64{1, 2}}},
	}
	rep, err := Run(rows, newEngine(t), model.NewPositionState())
	require.ErrorIs(t, err, normalize.ErrMalformedInput)
	assert.Contains(t, err.Error(), "2026-02-03")
	assert.Equal(t, 1, rep.Cycles)
}
