// Package portfolio watches individual stock holdings for trend breaks, overextension
// and profit-taking levels, alongside the market-wide crash score.
package portfolio

import (
	"fmt"
	"math"
	"slices"
	"time"

	"CrashSentinel/internal/calculator"
	"CrashSentinel/internal/model"
)

// Thresholds for per-holding signals.
const (
	RSIPeriod           = 14
	RSIOversold         = 30.0
	RSIOverbought       = 70.0
	DrawdownWarning     = -0.10
	DrawdownCritical    = -0.20
	VolumeSpike         = 2.0
	ExtendedGainPct     = 20.0
	PeakWindow          = 60
	VolumeWindow        = 20
	VolatilityWindow    = 20
	DeadMoneyDays       = 90
	ExpectedProbability = 0.3

	// MinHistory is the fewest closes Analyze accepts (the 50-day average).
	MinHistory = 50
)

// DefaultDefensive lists dividend staples whose pullbacks are treated as normal volatility.
var DefaultDefensive = []string{"KMB", "PG", "JNJ", "KO", "PEP", "WMT", "COST"}

// SignalType is the suggested action for one holding.
type SignalType string

const (
	SignalSell         SignalType = "SELL"
	SignalTrim         SignalType = "TRIM"
	SignalTrimExtended SignalType = "TRIM_EXTENDED"
	SignalWatch        SignalType = "WATCH"
	SignalBuyDip       SignalType = "BUY_DIP"
	SignalHold         SignalType = "HOLD"
)

// Reducing reports whether the signal asks to cut the position.
func (s SignalType) Reducing() bool {
	return s == SignalSell || s == SignalTrim || s == SignalTrimExtended
}

// Emoji returns the marker used in reports.
func (s SignalType) Emoji() string {
	switch s {
	case SignalSell:
		return "🔴"
	case SignalTrim, SignalTrimExtended:
		return "🟠"
	case SignalWatch:
		return "🟡"
	case SignalBuyDip:
		return "🟢"
	default:
		return "⚪"
	}
}

// Target is a profit-taking level.
type Target struct {
	Price   float64 `json:"price"`
	GainPct float64 `json:"gain_pct"`
	Action  string  `json:"action"`
	Reason  string  `json:"reason"`
}

// ExpectedReturn is the probability-weighted value of reaching a price target.
type ExpectedReturn struct {
	Label     string  `json:"label"`
	Target    float64 `json:"target"`
	Potential float64 `json:"potential_gain"`
	Expected  float64 `json:"expected_value"`
}

// Analysis is the technical read of one holding.
type Analysis struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Shares         float64 `json:"shares"`
	CostBasis      float64 `json:"cost_basis"`
	MarketValue    float64 `json:"market_value"`
	UnrealizedGain float64 `json:"unrealized_gain"`
	GainPct        float64 `json:"gain_pct"`

	MA50              float64  `json:"ma_50"`
	MA200             *float64 `json:"ma_200,omitempty"`
	RSI               float64  `json:"rsi"`
	Drawdown          float64  `json:"drawdown"`
	VolumeRatio       float64  `json:"volume_ratio"`
	DaysBelowMA50     int      `json:"days_below_ma50"`
	Volatility        float64  `json:"volatility"`
	RecoveryPotential float64  `json:"recovery_potential"`

	Signal     SignalType       `json:"signal"`
	Signals    []string         `json:"signals"`
	RiskScore  int              `json:"risk_score"`
	StopLoss   *float64         `json:"stop_loss,omitempty"`
	ActionNote string           `json:"action_note,omitempty"`
	Defensive  bool             `json:"defensive"`
	Targets    []Target         `json:"targets,omitempty"`
	Expected   []ExpectedReturn `json:"expected_returns,omitempty"`
	DaysHeld   *int             `json:"days_held,omitempty"`
}

// Analyze reads the trend of one holding from its daily closes. prev is the holding's last
// persisted entry, or nil when it was never seen.
func Analyze(h Holding, ps *model.PriceSeries, prev *Entry, defensive bool, now time.Time) (*Analysis, error) {
	closes := ps.Closes()
	n := len(closes)
	if n < MinHistory {
		return nil, fmt.Errorf("%s: %d closes, need %d: %w", h.Symbol, n, MinHistory, calculator.ErrInsufficientData)
	}

	a := &Analysis{
		Symbol:    h.Symbol,
		Price:     closes[n-1],
		Shares:    h.Shares,
		CostBasis: h.CostBasis,
		Defensive: defensive,
		Signal:    SignalHold,
	}
	a.MarketValue = a.Price * h.Shares
	cost := h.CostBasis * h.Shares
	a.UnrealizedGain = a.MarketValue - cost
	if cost > 0 {
		a.GainPct = a.UnrealizedGain / cost * 100
	}

	a.MA50, _ = calculator.SMA(closes, 50)
	if ma, err := calculator.SMA(closes, 200); err == nil {
		a.MA200 = &ma
	}
	a.RSI, _ = calculator.RSI(closes, RSIPeriod)
	if peak, err := calculator.RollingMax(closes, min(PeakWindow, n)); err == nil && peak > 0 {
		a.Drawdown = a.Price/peak - 1
	}
	a.VolumeRatio = volumeRatio(ps.Volumes())
	a.DaysBelowMA50 = calculator.DaysBelowSMA(closes, 50)
	if vol, err := calculator.AnnualizedVol(closes, VolatilityWindow); err == nil {
		a.Volatility = vol
	}
	if prev != nil && !prev.FirstSeen.IsZero() {
		days := int(now.Sub(prev.FirstSeen).Hours() / 24)
		a.DaysHeld = &days
	}

	a.classify()
	a.Targets = scalingTargets(a.Price, a.CostBasis, a.GainPct)
	a.Expected = expectedReturns(a.Price, a.CostBasis, a.Shares, a.GainPct)
	return a, nil
}

// classify applies the drawdown, trend, momentum and volume rules in order.
func (a *Analysis) classify() {
	stop := func(p float64) { a.StopLoss = &p }

	switch {
	case a.Drawdown < DrawdownCritical:
		a.Signals = append(a.Signals, fmt.Sprintf("📉 Down %.1f%% from peak - CRITICAL", a.Drawdown*100))
		a.RiskScore += 3
		if a.GainPct > 0 {
			a.Signal = SignalTrimExtended
			a.ActionNote = fmt.Sprintf("Consider trimming - up %.1f%% but extended", a.GainPct)
			stop(a.Price * 0.90)
		} else {
			a.Signal = SignalSell
			a.ActionNote = "Cut losses before further deterioration"
			stop(a.Price * 0.88)
		}
	case a.Drawdown < DrawdownWarning:
		a.Signals = append(a.Signals, fmt.Sprintf("⚠️ Down %.1f%% from peak", a.Drawdown*100))
		a.RiskScore += 2
		switch {
		case a.Defensive && a.GainPct > 0:
			a.ActionNote = "Defensive position - normal volatility"
		case a.GainPct > ExtendedGainPct:
			a.Signal = SignalTrim
			a.ActionNote = fmt.Sprintf("Take profits - up %.1f%% but showing weakness", a.GainPct)
			stop(a.CostBasis * 1.10)
		default:
			a.Signal = SignalWatch
			a.ActionNote = "Monitor closely for breakdown"
			stop(a.Price * 0.90)
		}
	}

	if a.Price < a.MA50 {
		a.Signals = append(a.Signals, fmt.Sprintf("Below 50-day MA ($%.2f)", a.MA50))
		a.RiskScore++
		if a.DaysBelowMA50 > DeadMoneyDays {
			a.Signals = append(a.Signals, fmt.Sprintf("Broken for %d days - dead money", a.DaysBelowMA50))
			if a.Signal == SignalHold {
				a.Signal = SignalWatch
			}
		}
	}
	if a.MA200 != nil && a.Price < *a.MA200 {
		a.Signals = append(a.Signals, fmt.Sprintf("Below 200-day MA ($%.2f) - bear market", *a.MA200))
		a.RiskScore++
	}

	switch {
	case a.RSI < RSIOversold:
		a.Signals = append(a.Signals, fmt.Sprintf("RSI %.0f - OVERSOLD (potential bounce)", a.RSI))
		if !a.Signal.Reducing() {
			a.Signal = SignalBuyDip
			a.ActionNote = "Oversold - could bounce, but confirm trend first"
		}
	case a.RSI > RSIOverbought:
		a.Signals = append(a.Signals, fmt.Sprintf("RSI %.0f - OVERBOUGHT", a.RSI))
		a.RiskScore++
		if a.GainPct > 15 && a.Signal == SignalHold {
			a.Signal = SignalTrim
			a.ActionNote = fmt.Sprintf("Take profits - up %.1f%% and extended", a.GainPct)
		}
	}

	if a.VolumeRatio > VolumeSpike {
		a.Signals = append(a.Signals, fmt.Sprintf("Volume spike %.1fx average", a.VolumeRatio))
		a.RiskScore++
	}

	if slices.Contains([]SignalType{SignalSell, SignalWatch, SignalBuyDip}, a.Signal) {
		a.RecoveryPotential = recoveryPotential(a.Volatility, a.DaysBelowMA50, a.RSI)
	}

	if a.Signal == SignalHold && a.GainPct > 5 && a.Price > a.MA50 &&
		(a.MA200 == nil || a.Price > *a.MA200) && a.RSI > 40 && a.RSI < 60 {
		a.Signals = append(a.Signals, "✅ Uptrend intact, healthy")
		a.ActionNote = "Strong position - hold"
	}
}

// recoveryPotential is a 0..1 guess at how likely a weak holding bounces.
func recoveryPotential(vol float64, daysBelow int, rsi float64) float64 {
	p := 0.0
	if vol > 0.4 {
		p += 0.3
	}
	switch {
	case daysBelow < 30:
		p += 0.4
	case daysBelow < 60:
		p += 0.2
	}
	if rsi < RSIOversold {
		p += 0.3
	}
	return math.Min(p, 1)
}

// volumeRatio compares the last session with the trailing average. Without volume data it is 1.
func volumeRatio(vols []float64) float64 {
	if len(vols) == 0 {
		return 1
	}
	tail := vols[max(0, len(vols)-VolumeWindow):]
	avg := calculator.Mean(tail)
	if avg <= 0 {
		return 1
	}
	return vols[len(vols)-1] / avg
}

func scalingTargets(price, costBasis, gainPct float64) []Target {
	switch {
	case gainPct >= 50:
		return []Target{
			{Price: price * 1.20, GainPct: gainPct * 1.20, Action: "Sell 30%", Reason: "Take chips off table"},
			{Price: price * 1.40, GainPct: gainPct * 1.40, Action: "Sell 30%", Reason: "Lock major gains"},
		}
	case gainPct >= 20:
		return []Target{
			{Price: costBasis * 1.50, GainPct: 50, Action: "Sell 25%", Reason: "Lock early profits"},
			{Price: costBasis * 2.00, GainPct: 100, Action: "Sell 25%", Reason: "Secure double"},
		}
	}
	return nil
}

func expectedReturns(price, costBasis, shares, gainPct float64) []ExpectedReturn {
	if gainPct <= 10 {
		return nil
	}
	var out []ExpectedReturn
	for _, t := range []struct {
		mult  float64
		label string
	}{{1.5, "50% gain"}, {2.0, "100% gain"}, {3.0, "200% gain"}} {
		target := costBasis * t.mult
		if target <= price {
			continue
		}
		potential := (target - price) * shares
		out = append(out, ExpectedReturn{Label: t.label, Target: target, Potential: potential, Expected: potential * ExpectedProbability})
	}
	return out
}
