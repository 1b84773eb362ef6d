package model

// Indicator names understood by the default weight table and mappings.
const (
	IndicatorVIXExpansion   = "vix_expansion"
	IndicatorCreditStress   = "credit_stress"
	IndicatorOptionsHedging = "options_hedging"
	IndicatorVIXSpike       = "vix_spike"
	IndicatorPutCall        = "put_call"
	IndicatorCreditSpread   = "credit_spread"
	IndicatorBreadth        = "breadth"
	IndicatorDollar         = "dollar"
	IndicatorYieldCurve     = "yield_curve"
)

// Indicator is one weighted input of a single evaluation cycle.
type Indicator struct {
	Name      string   `json:"name"`
	Weight    float64  `json:"weight"`
	RawValue  *float64 `json:"raw_value,omitempty"`
	Score     float64  `json:"normalized_score"` // 0.0 ~ 1.0
	Defaulted bool     `json:"defaulted"`
}
