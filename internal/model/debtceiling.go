package model

import "time"

// AlertState is derived from the days remaining until the X-date.
type AlertState string

const (
	AlertNormal     AlertState = "NORMAL"
	AlertMonitoring AlertState = "MONITORING"
	AlertEmergency  AlertState = "EMERGENCY"
)

// DebtCeilingState is recomputed on every cycle from the configured X-date.
type DebtCeilingState struct {
	XDate           time.Time  `json:"x_date"`
	DaysRemaining   int        `json:"days_remaining"`
	IsNearDeadline  bool       `json:"is_near_deadline"`
	IsEmergency     bool       `json:"is_emergency"`
	StressScore     float64    `json:"stress_score"`
	ProximityScore  float64    `json:"proximity_score"`
	FearScore       float64    `json:"fear_score"`
	BudgetRiskScore float64    `json:"budget_risk_score"`
	AlertState      AlertState `json:"alert_state"`
	Boost           float64    `json:"boost"`
}

// Resolved reports whether the X-date has already passed.
func (d DebtCeilingState) Resolved() bool { return d.DaysRemaining < 0 }
