package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/model"
)

func scoresOf(score float64) map[string]model.Indicator {
	out := make(map[string]model.Indicator)
	for _, w := range DefaultWeights() {
		out[w.Name] = model.Indicator{Name: w.Name, Weight: w.Weight, Score: score}
	}
	return out
}

func TestValidateWeights(t *testing.T) {
	require.NoError(t, ValidateWeights(DefaultWeights()))

	tests := []struct {
		name string
		ws   []Weight
	}{
		{"empty", nil},
		{"short of one", []Weight{{"a", 0.5}, {"b", 0.4}}},
		{"over one", []Weight{{"a", 0.6}, {"b", 0.5}}},
		{"duplicate", []Weight{{"a", 0.5}, {"a", 0.5}}},
		{"negative", []Weight{{"a", 1.2}, {"b", -0.2}}},
		{"unnamed", []Weight{{"", 1.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateWeights(tt.ws), ErrInvalidWeights)
		})
	}
}

func TestScore_UniformNoBoost(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)

	cs := s.Score(scoresOf(0.2), model.DebtCeilingState{DaysRemaining: 184})
	assert.InDelta(t, 0.2, cs.Value, 1e-9)
	assert.Zero(t, cs.Boost)
	assert.Len(t, cs.Breakdown, len(DefaultWeights()))
	assert.Empty(t, cs.Defaulted)
	assert.Equal(t, model.IndicatorVIXExpansion, cs.Breakdown[0].Name)
}

func TestScore_BoostIsAdditive(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)

	dc := model.DebtCeilingState{DaysRemaining: 10, IsNearDeadline: true, IsEmergency: true, Boost: 0.20}
	cs := s.Score(scoresOf(1.0), dc)
	assert.InDelta(t, 1.2, cs.Value, 1e-9)
	assert.InDelta(t, 1.0, cs.Base, 1e-9)
	last := cs.Breakdown[len(cs.Breakdown)-1]
	assert.Equal(t, model.BoostContribution, last.Name)
	assert.InDelta(t, 0.20, last.Weighted, 1e-9)
}

func TestScore_BoostIgnoredWhenNotNear(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)
	cs := s.Score(scoresOf(0.5), model.DebtCeilingState{DaysRemaining: 90, Boost: 0.10})
	assert.Zero(t, cs.Boost)
	assert.InDelta(t, 0.5, cs.Value, 1e-9)
}

func TestScore_MonotonicInEachIndicator(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)
	for _, w := range DefaultWeights() {
		inds := scoresOf(0.3)
		prev := s.Score(inds, model.DebtCeilingState{}).Value
		for _, v := range []float64{0.4, 0.6, 0.9, 1.0} {
			inds[w.Name] = model.Indicator{Name: w.Name, Score: v}
			got := s.Score(inds, model.DebtCeilingState{}).Value
			assert.GreaterOrEqual(t, got, prev, "%s=%v", w.Name, v)
			prev = got
		}
	}
}

func TestScore_FlagsDefaulted(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)
	inds := scoresOf(0.4)
	delete(inds, model.IndicatorDollar)
	inds[model.IndicatorPutCall] = model.Indicator{Name: model.IndicatorPutCall, Defaulted: true}

	cs := s.Score(inds, model.DebtCeilingState{})
	assert.ElementsMatch(t, []string{model.IndicatorDollar, model.IndicatorPutCall}, cs.Defaulted)
}

func TestTopContributors(t *testing.T) {
	s, err := NewScorer(DefaultWeights())
	require.NoError(t, err)
	inds := scoresOf(0.1)
	inds[model.IndicatorBreadth] = model.Indicator{Score: 1.0}
	inds[model.IndicatorDollar] = model.Indicator{Score: 1.0}

	dc := model.DebtCeilingState{IsNearDeadline: true, Boost: 0.10}
	top := TopContributors(s.Score(inds, dc), 3)
	require.Len(t, top, 3)
	assert.Equal(t, model.IndicatorBreadth, top[0].Name)
	assert.Equal(t, model.IndicatorDollar, top[1].Name)
	assert.Equal(t, model.IndicatorVIXExpansion, top[2].Name)
}
