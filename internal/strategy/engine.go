package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/normalize"
)

// Config holds the decision thresholds.
type Config struct {
	SellThreshold     float64
	BudgetRiskTrigger float64
	Cooldown          time.Duration
	TopReasons        int
	Recovery          RecoveryConfig
}

// DefaultConfig returns the recommended decision thresholds.
func DefaultConfig() Config {
	return Config{
		SellThreshold:     0.55,
		BudgetRiskTrigger: 0.60,
		Cooldown:          72 * time.Hour,
		TopReasons:        3,
		Recovery:          DefaultRecoveryConfig(),
	}
}

// Input is everything the data-fetch collaborator hands over for one cycle.
type Input struct {
	Indicators  map[string]any
	DebtCeiling debtceiling.Inputs
}

// Engine turns one cycle of raw inputs plus the prior PositionState into a Signal.
// It holds no mutable state; Evaluate is a pure function of its arguments.
type Engine struct {
	cfg        Config
	normalizer *normalize.Normalizer
	scorer     *Scorer
	timer      *debtceiling.Timer
	recovery   RecoveryChecker
}

// NewEngine wires the components of one evaluation cycle.
func NewEngine(cfg Config, n *normalize.Normalizer, s *Scorer, t *debtceiling.Timer) *Engine {
	return &Engine{
		cfg:        cfg,
		normalizer: n,
		scorer:     s,
		timer:      t,
		recovery:   NewRecoveryEvaluator(cfg.Recovery),
	}
}

// WithRecovery replaces the recovery checker.
func (e *Engine) WithRecovery(r RecoveryChecker) *Engine {
	e.recovery = r
	return e
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate runs one cycle. Rules are applied in priority order, first match wins:
// cooldown, debt-ceiling emergency, composite threshold, recovery, hold.
// On error the returned state is st, untouched.
func (e *Engine) Evaluate(in Input, st model.PositionState, now time.Time) (*model.Signal, model.PositionState, error) {
	inds, dc, err := e.assess(in, now)
	if err != nil {
		return nil, st, err
	}
	cs := e.scorer.Score(inds, dc)

	next := st.Clone()
	if next.Position == "" {
		next.Position = model.PositionHolding
	}
	sig := &model.Signal{
		Score:       cs.Value,
		AlertState:  dc.AlertState,
		Composite:   cs,
		DebtCeiling: dc,
		EvaluatedAt: now,
	}

	switch {
	case next.InCooldown(now):
		sig.Action = model.ActionNoAction
		sig.Reasons = []string{
			fmt.Sprintf("Cooldown active until %s (%s remaining); signals suppressed",
				next.CooldownUntil.Format(time.RFC3339), next.CooldownUntil.Sub(now).Round(time.Minute)),
			fmt.Sprintf("Composite score %.2f, position %s", cs.Value, next.Position),
		}

	case next.Position == model.PositionHolding && dc.IsEmergency && dc.BudgetRiskScore > e.cfg.BudgetRiskTrigger:
		sig.Action = model.ActionSell
		sig.Reasons = []string{
			fmt.Sprintf("Debt ceiling emergency: %d days to X-date %s (inside %dd window)",
				dc.DaysRemaining, dc.XDate.Format("2006-01-02"), e.timer.Config().EmergencyDays),
			fmt.Sprintf("Budget risk %.2f above trigger %.2f", dc.BudgetRiskScore, e.cfg.BudgetRiskTrigger),
			fmt.Sprintf("Composite score %.2f (boost +%.2f)", cs.Value, cs.Boost),
		}
		e.sell(&next, model.SellOriginDebtCeiling, cs.Value, inds, now)

	case next.Position == model.PositionHolding && cs.Value >= e.cfg.SellThreshold:
		sig.Action = model.ActionSell
		sig.Reasons = []string{fmt.Sprintf("Composite score %.2f >= sell threshold %.2f", cs.Value, e.cfg.SellThreshold)}
		for _, c := range TopContributors(cs, e.cfg.TopReasons) {
			sig.Reasons = append(sig.Reasons,
				fmt.Sprintf("%s contributed %.3f (score %.2f x weight %.2f)", c.Name, c.Weighted, c.Score, c.Weight))
		}
		if cs.Boost > 0 {
			sig.Reasons = append(sig.Reasons,
				fmt.Sprintf("Debt ceiling boost +%.2f (%d days to X-date)", cs.Boost, dc.DaysRemaining))
		}
		e.sell(&next, model.SellOriginThreshold, cs.Value, inds, now)

	case next.Position == model.PositionSold:
		recovered, rationale := e.recovery.Evaluate(inds, dc, next)
		if recovered {
			sig.Action = model.ActionRebuy
			sig.Reasons = []string{
				fmt.Sprintf("Recovery confirmed after %s sell: %s", next.SellOrigin, rationale),
				fmt.Sprintf("Composite score %.2f", cs.Value),
			}
			next.Position = model.PositionHolding
			next.LastSignal = model.ActionRebuy
			next.LastSignalTime = now
			next.CooldownUntil = nil
			next.SellOrigin = model.SellOriginNone
			next.SellScore = 0
			next.CreditWindow = nil
		} else {
			sig.Action = model.ActionHold
			sig.Reasons = []string{
				fmt.Sprintf("Holding defensive posture, recovery not confirmed: %s", rationale),
				fmt.Sprintf("Composite score %.2f", cs.Value),
			}
			if credit, ok := e.creditReading(inds); ok {
				next.CreditWindow = pushWindow(next.CreditWindow, credit, e.cfg.Recovery.Window)
			}
		}

	default:
		sig.Action = model.ActionHold
		sig.Reasons = []string{fmt.Sprintf("Composite score %.2f below sell threshold %.2f", cs.Value, e.cfg.SellThreshold)}
		if dc.IsNearDeadline {
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Debt ceiling %s: %d days to X-date, budget risk %.2f (trigger %.2f)",
				dc.AlertState, dc.DaysRemaining, dc.BudgetRiskScore, e.cfg.BudgetRiskTrigger))
		}
	}

	sig.Position = next.Position
	if sig.Action.Actionable() {
		next.UpdatedAt = now
	}

	log.Debug().
		Str("action", string(sig.Action)).
		Float64("score", cs.Value).
		Int("days_remaining", dc.DaysRemaining).
		Float64("budget_risk", dc.BudgetRiskScore).
		Strs("defaulted", cs.Defaulted).
		Msg("cycle evaluated")

	return sig, next, nil
}

// Assess scores one cycle without consulting or producing a PositionState.
// The intraday watch and the dashboard use it between decision cycles.
func (e *Engine) Assess(in Input, now time.Time) (model.CompositeScore, model.DebtCeilingState, error) {
	inds, dc, err := e.assess(in, now)
	if err != nil {
		return model.CompositeScore{}, model.DebtCeilingState{}, err
	}
	return e.scorer.Score(inds, dc), dc, nil
}

func (e *Engine) assess(in Input, now time.Time) (map[string]model.Indicator, model.DebtCeilingState, error) {
	inds, err := e.normalizeAll(in.Indicators)
	if err != nil {
		return nil, model.DebtCeilingState{}, err
	}
	dc, err := e.timer.Compute(now, in.DebtCeiling)
	if err != nil {
		return nil, model.DebtCeilingState{}, fmt.Errorf("debt ceiling: %w", err)
	}
	return inds, dc, nil
}

func (e *Engine) sell(st *model.PositionState, origin model.SellOrigin, score float64, inds map[string]model.Indicator, now time.Time) {
	until := now.Add(e.cfg.Cooldown)
	st.Position = model.PositionSold
	st.LastSignal = model.ActionSell
	st.LastSignalTime = now
	st.CooldownUntil = &until
	st.SellOrigin = origin
	st.SellScore = score
	st.CreditWindow = nil
	if credit, ok := e.creditReading(inds); ok {
		st.CreditWindow = []float64{credit}
	}
}

// creditReading returns the recovery credit score; ok is false when the indicator was defaulted.
func (e *Engine) creditReading(inds map[string]model.Indicator) (float64, bool) {
	ind, found := inds[e.cfg.Recovery.CreditIndicator]
	if !found || ind.Defaulted {
		return 0, false
	}
	return ind.Score, true
}

// normalizeAll coerces every weighted indicator plus any extra input, in name order.
func (e *Engine) normalizeAll(raw map[string]any) (map[string]model.Indicator, error) {
	names := make(map[string]struct{}, len(raw))
	for name := range raw {
		names[name] = struct{}{}
	}
	weights := make(map[string]float64)
	for _, w := range e.scorer.Weights() {
		names[w.Name] = struct{}{}
		weights[w.Name] = w.Weight
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	out := make(map[string]model.Indicator, len(sorted))
	for _, name := range sorted {
		ind, err := e.normalizer.Normalize(name, raw[name])
		if err != nil {
			return nil, err
		}
		ind.Weight = weights[name]
		out[name] = ind
	}
	return out, nil
}
