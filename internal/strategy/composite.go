package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"CrashSentinel/internal/model"
)

const weightTolerance = 1e-6

// ErrInvalidWeights is returned for a weight table that cannot be used.
var ErrInvalidWeights = errors.New("invalid weight table")

// Weight is one named entry of the static weight table.
type Weight struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// DefaultWeights is the reference table. It sums to 1.0.
func DefaultWeights() []Weight {
	return []Weight{
		{model.IndicatorVIXExpansion, 0.15},
		{model.IndicatorCreditStress, 0.15},
		{model.IndicatorOptionsHedging, 0.15},
		{model.IndicatorVIXSpike, 0.10},
		{model.IndicatorPutCall, 0.12},
		{model.IndicatorCreditSpread, 0.10},
		{model.IndicatorBreadth, 0.10},
		{model.IndicatorDollar, 0.05},
		{model.IndicatorYieldCurve, 0.08},
	}
}

// ValidateWeights rejects empty, duplicate, negative or non-unit tables.
func ValidateWeights(ws []Weight) error {
	if len(ws) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidWeights)
	}
	seen := make(map[string]bool, len(ws))
	sum := 0.0
	for _, w := range ws {
		if w.Name == "" {
			return fmt.Errorf("%w: unnamed entry", ErrInvalidWeights)
		}
		if seen[w.Name] {
			return fmt.Errorf("%w: duplicate %q", ErrInvalidWeights, w.Name)
		}
		seen[w.Name] = true
		if w.Weight < 0 || math.IsNaN(w.Weight) {
			return fmt.Errorf("%w: %q has weight %v", ErrInvalidWeights, w.Name, w.Weight)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0", ErrInvalidWeights, sum)
	}
	return nil
}

// Scorer combines normalized indicators with the debt-ceiling boost.
type Scorer struct {
	weights []Weight
}

// NewScorer validates ws and returns a Scorer.
func NewScorer(ws []Weight) (*Scorer, error) {
	if err := ValidateWeights(ws); err != nil {
		return nil, err
	}
	return &Scorer{weights: append([]Weight(nil), ws...)}, nil
}

// Weights returns a copy of the weight table in declaration order.
func (s *Scorer) Weights() []Weight { return append([]Weight(nil), s.weights...) }

// Score computes Σ weight·score + boost. Indicators absent from inds count as defaulted.
// The boost is additive and never renormalized, so Value may exceed 1.
func (s *Scorer) Score(inds map[string]model.Indicator, dc model.DebtCeilingState) model.CompositeScore {
	cs := model.CompositeScore{Breakdown: make([]model.Contribution, 0, len(s.weights)+1)}
	for _, w := range s.weights {
		ind, ok := inds[w.Name]
		defaulted := !ok || ind.Defaulted
		c := model.Contribution{
			Name:      w.Name,
			Score:     ind.Score,
			Weight:    w.Weight,
			Weighted:  w.Weight * ind.Score,
			Defaulted: defaulted,
		}
		if defaulted {
			cs.Defaulted = append(cs.Defaulted, w.Name)
		}
		cs.Base += c.Weighted
		cs.Breakdown = append(cs.Breakdown, c)
	}

	if dc.IsNearDeadline && dc.Boost > 0 {
		cs.Boost = dc.Boost
		cs.Breakdown = append(cs.Breakdown, model.Contribution{
			Name:     model.BoostContribution,
			Score:    1,
			Weighted: dc.Boost,
		})
	}
	cs.Value = cs.Base + cs.Boost
	return cs
}

// TopContributors returns the n largest indicator contributions, largest first.
// The boost entry is excluded; ties keep weight-table order.
func TopContributors(cs model.CompositeScore, n int) []model.Contribution {
	out := make([]model.Contribution, 0, len(cs.Breakdown))
	for _, c := range cs.Breakdown {
		if c.Name != model.BoostContribution {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weighted > out[j].Weighted })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
