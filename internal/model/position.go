package model

import "time"

// Position is the engine's view of market exposure.
type Position string

const (
	PositionHolding Position = "HOLDING"
	PositionSold    Position = "SOLD"
)

// SellOrigin records which rule moved the position to SOLD.
type SellOrigin string

const (
	SellOriginNone        SellOrigin = ""
	SellOriginThreshold   SellOrigin = "THRESHOLD"
	SellOriginDebtCeiling SellOrigin = "DEBT_CEILING"
)

// PositionState survives across cycles. It is mutated only by the decision engine.
type PositionState struct {
	Position       Position   `json:"position"`
	LastSignal     Action     `json:"last_signal,omitempty"`
	LastSignalTime time.Time  `json:"last_signal_time,omitempty"`
	CooldownUntil  *time.Time `json:"cooldown_until,omitempty"`
	SellOrigin     SellOrigin `json:"sell_origin,omitempty"`
	SellScore      float64    `json:"sell_score,omitempty"`
	CreditWindow   []float64  `json:"credit_window,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewPositionState returns the initial HOLDING state.
func NewPositionState() PositionState {
	return PositionState{Position: PositionHolding}
}

// InCooldown reports whether actionable signals are suppressed at now.
func (s PositionState) InCooldown(now time.Time) bool {
	return s.CooldownUntil != nil && now.Before(*s.CooldownUntil)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s PositionState) Clone() PositionState {
	c := s
	if s.CooldownUntil != nil {
		t := *s.CooldownUntil
		c.CooldownUntil = &t
	}
	if s.CreditWindow != nil {
		c.CreditWindow = append([]float64(nil), s.CreditWindow...)
	}
	return c
}
