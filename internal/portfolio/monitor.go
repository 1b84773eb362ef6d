package portfolio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/calculator"
	"CrashSentinel/internal/model"
)

const (
	historyDays    = 260 // ~1 trading year, enough for the 200-day average
	betaDays       = 126 // ~6 months
	minBetaReturns = 30
	defaultBeta    = 1.0
)

// PriceSource fetches daily bars. collector.Fetcher satisfies it.
type PriceSource interface {
	FetchCloses(ctx context.Context, symbol string, days int) (*model.PriceSeries, error)
}

// Config selects the holdings and where their state lives.
type Config struct {
	Holdings  []Holding
	StateFile string
	Defensive []string
	Benchmark string
}

// Report is the outcome of one monitor run, riskiest holding first.
type Report struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	Positions    []*Analysis        `json:"positions"`
	TotalValue   float64            `json:"total_value"`
	TotalGain    float64            `json:"total_gain"`
	TotalGainPct float64            `json:"total_gain_pct"`
	Beta         float64            `json:"beta"`
	Counts       map[SignalType]int `json:"counts"`
	Warnings     []string           `json:"warnings,omitempty"`
	NewAlerts    []string           `json:"new_alerts,omitempty"`
	Failed       []string           `json:"failed,omitempty"`
}

// Reducing counts holdings flagged SELL or TRIM.
func (r *Report) Reducing() int {
	return r.Counts[SignalSell] + r.Counts[SignalTrim] + r.Counts[SignalTrimExtended]
}

// Monitor analyzes the configured holdings and tracks their signals across runs.
type Monitor struct {
	src PriceSource
	cfg Config
	now func() time.Time
}

// NewMonitor creates a Monitor reading prices from src.
func NewMonitor(src PriceSource, cfg Config) *Monitor {
	if cfg.Defensive == nil {
		cfg.Defensive = DefaultDefensive
	}
	return &Monitor{src: src, cfg: cfg, now: time.Now}
}

// Holdings returns the configured holdings.
func (m *Monitor) Holdings() []Holding { return m.cfg.Holdings }

// Run analyzes every holding, updates the state file and reports. A holding that cannot be
// fetched or analyzed is listed in Failed; Run fails when none could be analyzed.
func (m *Monitor) Run(ctx context.Context) (*Report, error) {
	if len(m.cfg.Holdings) == 0 {
		return nil, errors.New("portfolio: no holdings configured")
	}
	prev, err := LoadState(m.cfg.StateFile)
	if err != nil {
		return nil, err
	}
	now := m.now()
	rep := &Report{GeneratedAt: now, Counts: map[SignalType]int{}}

	series := make(map[string]*model.PriceSeries, len(m.cfg.Holdings))
	for _, h := range m.cfg.Holdings {
		ps, err := m.src.FetchCloses(ctx, h.Symbol, historyDays)
		if err == nil {
			var entry *Entry
			if e, ok := prev[h.Symbol]; ok {
				entry = &e
			}
			var a *Analysis
			if a, err = Analyze(h, ps, entry, slices.Contains(m.cfg.Defensive, h.Symbol), now); err == nil {
				rep.Positions = append(rep.Positions, a)
				series[h.Symbol] = ps
				continue
			}
		}
		log.Warn().Err(err).Str("symbol", h.Symbol).Msg("holding skipped")
		rep.Failed = append(rep.Failed, h.Symbol)
	}
	if len(rep.Positions) == 0 {
		return nil, fmt.Errorf("portfolio: all %d holdings failed", len(m.cfg.Holdings))
	}

	sort.SliceStable(rep.Positions, func(i, j int) bool { return rep.Positions[i].RiskScore > rep.Positions[j].RiskScore })
	for _, a := range rep.Positions {
		rep.TotalValue += a.MarketValue
		rep.TotalGain += a.UnrealizedGain
		rep.Counts[a.Signal]++
	}
	if cost := rep.TotalValue - rep.TotalGain; rep.TotalValue > 0 && cost > 0 {
		rep.TotalGainPct = rep.TotalGain / cost * 100
	}
	rep.Beta = m.beta(ctx, series)

	if n := rep.Counts[SignalSell]; n >= 3 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("⚠️ %d positions need selling", n))
	}
	if rep.Beta > 1.3 && rep.TotalGainPct < 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("⚠️ High risk (Beta %.2f)", rep.Beta))
	}
	if rep.TotalGainPct < -10 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("⚠️ Portfolio down %.1f%%", rep.TotalGainPct))
	}

	next := State{}
	for _, a := range rep.Positions {
		old, seen := prev[a.Symbol]
		if a.Signal.Reducing() && !(seen && old.Signal.Reducing()) {
			rep.NewAlerts = append(rep.NewAlerts, fmt.Sprintf("%s %s → %s", a.Signal.Emoji(), a.Symbol, a.Signal))
		}
		first := now
		if seen && !old.FirstSeen.IsZero() {
			first = old.FirstSeen
		}
		next[a.Symbol] = Entry{Signal: a.Signal, Price: a.Price, GainPct: a.GainPct, FirstSeen: first}
	}
	// Holdings that failed this run keep their previous entry.
	for _, sym := range rep.Failed {
		if e, ok := prev[sym]; ok {
			next[sym] = e
		}
	}
	if err := SaveState(m.cfg.StateFile, next); err != nil {
		return nil, err
	}

	log.Info().
		Int("holdings", len(rep.Positions)).
		Int("reducing", rep.Reducing()).
		Float64("beta", rep.Beta).
		Strs("failed", rep.Failed).
		Msg("portfolio analyzed")
	return rep, nil
}

// beta averages each holding's beta against the benchmark over ~6 months of date-aligned closes.
func (m *Monitor) beta(ctx context.Context, series map[string]*model.PriceSeries) float64 {
	if m.cfg.Benchmark == "" {
		return defaultBeta
	}
	bench, err := m.src.FetchCloses(ctx, m.cfg.Benchmark, historyDays)
	if err != nil {
		log.Warn().Err(err).Str("symbol", m.cfg.Benchmark).Msg("benchmark fetch failed, beta defaulted")
		return defaultBeta
	}
	var betas []float64
	for _, ps := range series {
		asset, market := ps.AlignWith(bench)
		if k := len(asset) - betaDays; k > 0 {
			asset, market = asset[k:], market[k:]
		}
		if b, err := calculator.Beta(asset, market, minBetaReturns); err == nil {
			betas = append(betas, b)
		}
	}
	if len(betas) == 0 {
		return defaultBeta
	}
	return calculator.Mean(betas)
}
