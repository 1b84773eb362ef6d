package strategy

import (
	"fmt"
	"strings"

	"CrashSentinel/internal/model"
)

// RecoveryConfig controls when a SOLD position may be re-entered.
type RecoveryConfig struct {
	FearIndicator     string
	CreditIndicator   string
	Threshold         float64
	Window            int
	CreditTolerance   float64
	BudgetRiskTrigger float64
}

// DefaultRecoveryConfig returns the recommended recovery settings.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		FearIndicator:     model.IndicatorVIXExpansion,
		CreditIndicator:   model.IndicatorCreditStress,
		Threshold:         0.45,
		Window:            3,
		BudgetRiskTrigger: 0.60,
	}
}

// RecoveryChecker decides whether a SOLD position has recovered. It never mutates state.
type RecoveryChecker interface {
	Evaluate(inds map[string]model.Indicator, dc model.DebtCeilingState, st model.PositionState) (bool, string)
}

// RecoveryEvaluator is the rule-based RecoveryChecker.
type RecoveryEvaluator struct {
	cfg RecoveryConfig
}

// NewRecoveryEvaluator creates a RecoveryEvaluator.
func NewRecoveryEvaluator(cfg RecoveryConfig) *RecoveryEvaluator {
	return &RecoveryEvaluator{cfg: cfg}
}

// Evaluate requires fear below threshold, credit stress not rising across st.CreditWindow,
// and for a debt-ceiling sell either a passed X-date or budget risk back under its trigger.
func (r *RecoveryEvaluator) Evaluate(inds map[string]model.Indicator, dc model.DebtCeilingState, st model.PositionState) (bool, string) {
	var notes []string
	ok := true

	fear, found := inds[r.cfg.FearIndicator]
	switch {
	case !found || fear.Defaulted:
		ok = false
		notes = append(notes, fmt.Sprintf("no data for %s", r.cfg.FearIndicator))
	case fear.Score < r.cfg.Threshold:
		notes = append(notes, fmt.Sprintf("%s %.2f below recovery threshold %.2f", r.cfg.FearIndicator, fear.Score, r.cfg.Threshold))
	default:
		ok = false
		notes = append(notes, fmt.Sprintf("%s %.2f still at or above recovery threshold %.2f", r.cfg.FearIndicator, fear.Score, r.cfg.Threshold))
	}

	credit, found := inds[r.cfg.CreditIndicator]
	switch {
	case !found || credit.Defaulted:
		ok = false
		notes = append(notes, fmt.Sprintf("no data for %s", r.cfg.CreditIndicator))
	case len(st.CreditWindow) == 0 || credit.Score <= st.CreditWindow[0]+r.cfg.CreditTolerance:
		notes = append(notes, fmt.Sprintf("%s %.2f stable or improving", r.cfg.CreditIndicator, credit.Score))
	default:
		ok = false
		notes = append(notes, fmt.Sprintf("%s rising %.2f -> %.2f", r.cfg.CreditIndicator, st.CreditWindow[0], credit.Score))
	}

	if st.SellOrigin == model.SellOriginDebtCeiling {
		switch {
		case dc.Resolved():
			notes = append(notes, fmt.Sprintf("X-date passed %d days ago", -dc.DaysRemaining))
		case dc.BudgetRiskScore <= r.cfg.BudgetRiskTrigger:
			notes = append(notes, fmt.Sprintf("budget risk %.2f back under %.2f", dc.BudgetRiskScore, r.cfg.BudgetRiskTrigger))
		default:
			ok = false
			notes = append(notes, fmt.Sprintf("debt ceiling unresolved: %d days to X-date, budget risk %.2f", dc.DaysRemaining, dc.BudgetRiskScore))
		}
	}

	return ok, strings.Join(notes, "; ")
}

// pushWindow appends v and keeps the newest n entries.
func pushWindow(w []float64, v float64, n int) []float64 {
	out := append(append([]float64(nil), w...), v)
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
