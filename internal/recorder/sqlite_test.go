package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "cycles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sellSignal() *model.Signal {
	return &model.Signal{
		Action:     model.ActionSell,
		Score:      0.62,
		Reasons:    []string{"Composite score 0.62 >= sell threshold 0.55", "credit_stress contributed 0.150"},
		AlertState: model.AlertMonitoring,
		Composite: model.CompositeScore{
			Value: 0.62, Base: 0.52, Boost: 0.10,
			Breakdown: []model.Contribution{
				{Name: "credit_stress", Score: 1, Weight: 0.15, Weighted: 0.15},
				{Name: "put_call", Score: 0, Weight: 0.12, Weighted: 0, Defaulted: true},
				{Name: model.BoostContribution, Score: 0.10, Weight: 1, Weighted: 0.10},
			},
			Defaulted: []string{"put_call"},
		},
		DebtCeiling: model.DebtCeilingState{DaysRemaining: 30, BudgetRiskScore: 0.41, AlertState: model.AlertMonitoring},
	}
}

func TestRecordCycleAndRecent(t *testing.T) {
	r := openTestRecorder(t)
	base := time.Date(2026, 7, 16, 20, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordCycle(&CycleRecord{
		Time:     base,
		Signal:   &model.Signal{Action: model.ActionHold, Score: 0.2},
		Position: model.NewPositionState(),
	}))
	rec := &CycleRecord{
		Time:     base.Add(24 * time.Hour),
		Signal:   sellSignal(),
		Position: model.PositionState{Position: model.PositionSold, SellOrigin: model.SellOriginThreshold},
		Failed:   []string{"^VIX3M"},
	}
	require.NoError(t, r.RecordCycle(rec))
	assert.NotEmpty(t, rec.ID, "id assigned on insert")

	rows, err := r.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	latest := rows[0]
	assert.Equal(t, rec.ID, latest.ID)
	assert.Equal(t, "SELL", latest.Action)
	assert.InDelta(t, 0.62, latest.Score, 1e-9)
	assert.InDelta(t, 0.10, latest.Boost, 1e-9)
	assert.Equal(t, "MONITORING", latest.AlertState)
	require.NotNil(t, latest.DaysRemaining)
	assert.EqualValues(t, 30, *latest.DaysRemaining)
	assert.Equal(t, "SOLD", latest.Position)
	assert.Equal(t, "THRESHOLD", latest.SellOrigin)
	assert.Equal(t, "put_call", latest.Defaulted)
	assert.Equal(t, "^VIX3M", latest.Failed)
	assert.Contains(t, latest.Reasons, "credit_stress contributed")
	assert.Equal(t, base.Add(24*time.Hour), latest.Time())

	assert.Equal(t, "HOLD", rows[1].Action)

	one, err := r.Recent(1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestRecordCycleContributions(t *testing.T) {
	r := openTestRecorder(t)
	rec := &CycleRecord{Signal: sellSignal()}
	require.NoError(t, r.RecordCycle(rec))

	cs, err := r.Contributions(rec.ID)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, "credit_stress", cs[0].Name)
	assert.True(t, cs[1].Defaulted)
	assert.Equal(t, model.BoostContribution, cs[2].Name)
}

func TestRecordAbortedCycle(t *testing.T) {
	r := openTestRecorder(t)
	require.NoError(t, r.RecordCycle(&CycleRecord{Error: "indicator vix_spike: malformed input"}))

	rows, err := r.Recent(5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ERROR", rows[0].Action)
	assert.Nil(t, rows[0].DaysRemaining)
	assert.Contains(t, rows[0].Error, "malformed")
}

func TestRecordAlert(t *testing.T) {
	r := openTestRecorder(t)
	assert.NoError(t, r.RecordAlert(&AlertEvent{Kind: "INTRADAY", Level: "HIGH_RISK", Score: 0.7, Delivered: true}))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordCycle(&CycleRecord{}))
	rows, err := r.Recent(3)
	assert.NoError(t, err)
	assert.Empty(t, rows)
}
