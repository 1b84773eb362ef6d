package normalize

import (
	"fmt"
	"math"

	"CrashSentinel/internal/model"
)

// Mapping converts a raw market quantity into a score. Output is clamped by the caller.
type Mapping func(raw float64) float64

// Identity passes an already normalized score through.
func Identity(raw float64) float64 { return raw }

// AbsZ maps a z-score to |z|/cap.
func AbsZ(cap float64) Mapping {
	return func(z float64) float64 { return math.Abs(z) / cap }
}

// NegativeZ only scores deviations below the mean.
func NegativeZ(cap float64) Mapping {
	return func(z float64) float64 { return math.Max(-z, 0) / cap }
}

// Linear maps lo to 0 and hi to 1. hi may be below lo for inverted measures.
func Linear(lo, hi float64) Mapping {
	return func(x float64) float64 { return (x - lo) / (hi - lo) }
}

// DefaultMappings are the business rules for each named indicator.
func DefaultMappings() map[string]Mapping {
	return map[string]Mapping{
		model.IndicatorVIXExpansion:   AbsZ(3),
		model.IndicatorCreditStress:   AbsZ(3),
		model.IndicatorOptionsHedging: AbsZ(3),
		model.IndicatorVIXSpike:       Linear(0, 0.30),
		model.IndicatorPutCall:        Linear(0.7, 1.2),
		model.IndicatorCreditSpread:   NegativeZ(3),
		model.IndicatorBreadth:        AbsZ(3),
		model.IndicatorDollar:         Linear(0, 0.05),
		model.IndicatorYieldCurve:     Linear(0.5, -1.0),
	}
}

// Normalizer applies per-indicator mappings after scalar coercion.
type Normalizer struct {
	mappings map[string]Mapping
}

// New creates a Normalizer. Names without a mapping use Identity.
func New(mappings map[string]Mapping) *Normalizer {
	m := make(map[string]Mapping, len(mappings))
	for k, v := range mappings {
		m[k] = v
	}
	return &Normalizer{mappings: m}
}

// NewDefault uses DefaultMappings.
func NewDefault() *Normalizer { return New(DefaultMappings()) }

// Normalize coerces v and maps it into [0, 1]. A missing value scores 0 and is flagged defaulted.
func (n *Normalizer) Normalize(name string, v any) (model.Indicator, error) {
	ind := model.Indicator{Name: name}
	raw, ok, err := Coerce(v)
	if err != nil {
		return ind, fmt.Errorf("indicator %s: %w", name, err)
	}
	if !ok {
		ind.Defaulted = true
		return ind, nil
	}
	ind.RawValue = &raw
	mapping, found := n.mappings[name]
	if !found {
		mapping = Identity
	}
	ind.Score = Clamp01(mapping(raw))
	return ind, nil
}
