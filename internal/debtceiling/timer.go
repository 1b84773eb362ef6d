// Package debtceiling models time-to-deadline stress around a sovereign debt-ceiling X-date.
package debtceiling

import (
	"errors"
	"fmt"
	"math"
	"time"

	"CrashSentinel/internal/model"
	"CrashSentinel/internal/normalize"
)

// Config holds the static deadline and its proximity thresholds.
type Config struct {
	XDate             time.Time
	NearDays          int
	EmergencyDays     int
	MonitoringBoost   float64
	EmergencyBoost    float64
	StressWeight      float64
	ProximityWeight   float64
	FearWeight        float64
	DecayHalfLifeDays float64

	// Sub-measure scales: a raw value at the scale scores 1.0.
	TBillSpreadScaleBP float64
	TreasuryVolScale   float64
	FearFloor          float64
	FearCeiling        float64
}

// DefaultConfig returns the recommended thresholds for the given X-date.
func DefaultConfig(xDate time.Time) Config {
	return Config{
		XDate:              xDate,
		NearDays:           60,
		EmergencyDays:      14,
		MonitoringBoost:    0.10,
		EmergencyBoost:     0.20,
		StressWeight:       1,
		ProximityWeight:    1,
		FearWeight:         1,
		DecayHalfLifeDays:  7,
		TBillSpreadScaleBP: 50,
		TreasuryVolScale:   0.05,
		FearFloor:          15,
		FearCeiling:        40,
	}
}

// Inputs are the raw market quantities behind the stress and fear sub-measures.
type Inputs struct {
	TBillSpreadBP any // short bill yield minus 3m bill yield, basis points
	TreasuryVol   any // annualized volatility of short Treasury returns
	Fear          any // implied volatility level (VIX)
}

// Timer computes DebtCeilingState. It holds no state besides its Config.
type Timer struct {
	cfg Config
}

// NewTimer validates cfg and returns a Timer.
func NewTimer(cfg Config) (*Timer, error) {
	if cfg.XDate.IsZero() {
		return nil, errors.New("x_date is required")
	}
	if cfg.EmergencyDays < 0 || cfg.NearDays < cfg.EmergencyDays {
		return nil, fmt.Errorf("invalid proximity thresholds: near=%d emergency=%d", cfg.NearDays, cfg.EmergencyDays)
	}
	if cfg.StressWeight < 0 || cfg.ProximityWeight < 0 || cfg.FearWeight < 0 {
		return nil, errors.New("budget risk weights must be non-negative")
	}
	return &Timer{cfg: cfg}, nil
}

// Config returns the timer configuration.
func (t *Timer) Config() Config { return t.cfg }

// DaysUntil returns whole calendar days from today to the X-date; negative after it.
func DaysUntil(xDate, today time.Time) int {
	x := truncateDay(xDate)
	d := truncateDay(today)
	return int(math.Round(x.Sub(d).Hours() / 24))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AlertState classifies days remaining.
func (t *Timer) AlertState(days int) model.AlertState {
	switch {
	case days < 0:
		return model.AlertNormal
	case days <= t.cfg.EmergencyDays:
		return model.AlertEmergency
	case days <= t.cfg.NearDays:
		return model.AlertMonitoring
	default:
		return model.AlertNormal
	}
}

// Boost is the additive composite contribution for the given days remaining.
func (t *Timer) Boost(days int) float64 {
	switch t.AlertState(days) {
	case model.AlertEmergency:
		return t.cfg.EmergencyBoost
	case model.AlertMonitoring:
		return t.cfg.MonitoringBoost
	default:
		return 0
	}
}

// Proximity rises linearly from 0 at NearDays to 1 at the X-date.
func (t *Timer) Proximity(days int) float64 {
	if days < 0 || days >= t.cfg.NearDays {
		return 0
	}
	return float64(t.cfg.NearDays-days) / float64(t.cfg.NearDays)
}

// Compute derives the state for today. It fails only on malformed inputs.
func (t *Timer) Compute(today time.Time, in Inputs) (model.DebtCeilingState, error) {
	tbill, err := normalize.Scalar(in.TBillSpreadBP)
	if err != nil {
		return model.DebtCeilingState{}, fmt.Errorf("tbill spread: %w", err)
	}
	vol, err := normalize.Scalar(in.TreasuryVol)
	if err != nil {
		return model.DebtCeilingState{}, fmt.Errorf("treasury vol: %w", err)
	}
	vix, err := normalize.Scalar(in.Fear)
	if err != nil {
		return model.DebtCeilingState{}, fmt.Errorf("fear: %w", err)
	}

	days := DaysUntil(t.cfg.XDate, today)
	alert := t.AlertState(days)

	stress := (scale(tbill, 0, t.cfg.TBillSpreadScaleBP) + scale(vol, 0, t.cfg.TreasuryVolScale)) / 2
	if days < 0 && t.cfg.DecayHalfLifeDays > 0 {
		// Post-deal: stress decays instead of re-triggering.
		stress *= math.Pow(0.5, float64(-days)/t.cfg.DecayHalfLifeDays)
	}
	fear := scale(vix, t.cfg.FearFloor, t.cfg.FearCeiling)
	prox := t.Proximity(days)

	var budget float64
	if total := t.cfg.StressWeight + t.cfg.ProximityWeight + t.cfg.FearWeight; total > 0 {
		budget = (t.cfg.StressWeight*stress + t.cfg.ProximityWeight*prox + t.cfg.FearWeight*fear) / total
	}

	return model.DebtCeilingState{
		XDate:           t.cfg.XDate,
		DaysRemaining:   days,
		IsNearDeadline:  days >= 0 && days <= t.cfg.NearDays,
		IsEmergency:     alert == model.AlertEmergency,
		StressScore:     normalize.Clamp01(stress),
		ProximityScore:  prox,
		FearScore:       fear,
		BudgetRiskScore: normalize.Clamp01(budget),
		AlertState:      alert,
		Boost:           t.Boost(days),
	}, nil
}

func scale(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return normalize.Clamp01((x - lo) / (hi - lo))
}
