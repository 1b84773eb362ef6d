package model

import "time"

// Action is the discrete outcome of one evaluation cycle.
type Action string

const (
	ActionSell     Action = "SELL"
	ActionRebuy    Action = "REBUY"
	ActionHold     Action = "HOLD"
	ActionNoAction Action = "NO_ACTION"
)

// Actionable reports whether the action changes the position.
func (a Action) Actionable() bool { return a == ActionSell || a == ActionRebuy }

// BoostContribution is the breakdown name used for the debt-ceiling boost.
const BoostContribution = "debt_ceiling_boost"

// Contribution is one weighted term of the composite score.
type Contribution struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Weighted  float64 `json:"weighted"`
	Defaulted bool    `json:"defaulted"`
}

// CompositeScore is the weighted sum of all indicators plus the debt-ceiling boost.
// Value is not clamped; anything above 1 means maximum confidence.
type CompositeScore struct {
	Value     float64        `json:"value"`
	Base      float64        `json:"base"`
	Boost     float64        `json:"boost"`
	Breakdown []Contribution `json:"breakdown"`
	Defaulted []string       `json:"defaulted,omitempty"`
}

// Signal is the final output of the decision engine.
type Signal struct {
	Action      Action           `json:"action"`
	Score       float64          `json:"score"`
	Reasons     []string         `json:"reasons"`
	AlertState  AlertState       `json:"alert_state"`
	Composite   CompositeScore   `json:"composite"`
	DebtCeiling DebtCeilingState `json:"debt_ceiling"`
	Position    Position         `json:"position"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}
