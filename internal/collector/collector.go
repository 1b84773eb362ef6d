package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/calculator"
	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/model"
)

// Symbols maps each raw market quantity to a provider ticker. An empty ticker disables it.
type Symbols struct {
	VIX       string `yaml:"vix"`
	VIX3M     string `yaml:"vix3m"`
	HighYield string `yaml:"high_yield"`
	Treasury  string `yaml:"treasury"`
	InvGrade  string `yaml:"investment_grade"`
	SmallCap  string `yaml:"small_cap"`
	LargeCap  string `yaml:"large_cap"`
	Dollar    string `yaml:"dollar"`
	TenYear   string `yaml:"ten_year"`
	Bill3M    string `yaml:"bill_3m"`
	ShortBond string `yaml:"short_treasury"`
	PutCall   string `yaml:"put_call"`
}

// DefaultSymbols returns Yahoo Finance tickers. Yahoo has no put/call feed, so it stays disabled.
func DefaultSymbols() Symbols {
	return Symbols{
		VIX:       "^VIX",
		VIX3M:     "^VIX3M",
		HighYield: "HYG",
		Treasury:  "IEF",
		InvGrade:  "LQD",
		SmallCap:  "IWM",
		LargeCap:  "SPY",
		Dollar:    "DX-Y.NYB",
		TenYear:   "^TNX",
		Bill3M:    "^IRX",
		ShortBond: "SHY",
	}
}

const (
	dailyHistory   = 260  // ~1 trading year
	optionsHistory = 1260 // ~5 trading years
	zWindow        = 120
	vixZWindow     = 60
	billMeanWindow = 60
	volPeriod      = 20
	minPercentile  = 100
)

// Snapshot is one cycle's raw market readings. Indicators absent from the map are missing data.
type Snapshot struct {
	Indicators        map[string]any     `json:"indicators"`
	DebtCeiling       debtceiling.Inputs `json:"debt_ceiling"`
	VIXLevel          *float64           `json:"vix_level,omitempty"`
	OptionsSpread     *float64           `json:"options_spread,omitempty"`
	OptionsPercentile *int               `json:"options_percentile,omitempty"`
	Drawdown          *model.Drawdown    `json:"drawdown,omitempty"`
	Failed            []string           `json:"failed_symbols,omitempty"`
	FetchedAt         time.Time          `json:"fetched_at"`
}

// Collector orchestrates data fetching and raw indicator computation.
type Collector struct {
	Fetcher Fetcher
	Symbols Symbols
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, symbols Symbols) *Collector {
	return &Collector{Fetcher: fetcher, Symbols: symbols}
}

// Collect fetches every configured series and derives the raw indicator values.
// A failed symbol only drops the indicators that depend on it; Collect fails when nothing could be fetched.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{Indicators: map[string]any{}, FetchedAt: time.Now()}

	series := map[string]*model.PriceSeries{}
	fetch := func(symbol string, days int) *model.PriceSeries {
		if symbol == "" {
			return nil
		}
		if ps, ok := series[symbol]; ok {
			return ps
		}
		ps, err := c.Fetcher.FetchCloses(ctx, symbol, days)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("fetch failed, dependent indicators missing")
			s.Failed = append(s.Failed, symbol)
			series[symbol] = nil
			return nil
		}
		series[symbol] = ps
		return ps
	}

	sy := c.Symbols
	vixS := fetch(sy.VIX, optionsHistory)
	vix3mS := fetch(sy.VIX3M, optionsHistory)
	hygS := fetch(sy.HighYield, dailyHistory)
	iefS := fetch(sy.Treasury, dailyHistory)
	lqdS := fetch(sy.InvGrade, dailyHistory)
	iwmS := fetch(sy.SmallCap, dailyHistory)
	spyS := fetch(sy.LargeCap, dailyHistory)
	dxy := fetch(sy.Dollar, dailyHistory).Closes()
	tnxS := fetch(sy.TenYear, dailyHistory)
	irxS := fetch(sy.Bill3M, dailyHistory)
	shy := fetch(sy.ShortBond, dailyHistory).Closes()
	pcr := fetch(sy.PutCall, dailyHistory).Closes()
	vix, spy, irx := vixS.Closes(), spyS.Closes(), irxS.Closes()

	fetched := 0
	for _, ps := range series {
		if ps != nil && len(ps.Bars) > 0 {
			fetched++
		}
	}
	if len(series) > 0 && fetched == 0 {
		return nil, fmt.Errorf("collect: all %d symbols failed", len(series))
	}

	setZ := func(name string, xs []float64, window int) {
		z, err := calculator.ZScore(xs, window)
		if err != nil {
			if !errors.Is(err, calculator.ErrInsufficientData) {
				log.Warn().Err(err).Str("indicator", name).Msg("indicator computation failed")
			}
			return
		}
		s.Indicators[name] = z
	}

	if len(vix) > 0 {
		setZ(model.IndicatorVIXExpansion, calculator.PctChange(vix, 3), vixZWindow)
		if spike, err := calculator.MaxSpike(vix, 3); err == nil {
			s.Indicators[model.IndicatorVIXSpike] = spike
		}
		last := vix[len(vix)-1]
		s.VIXLevel = &last
		s.DebtCeiling.Fear = last
	}
	if a, b := vixS.AlignWith(vix3mS); len(a) > 0 {
		spread := calculator.Diff(a, b)
		setZ(model.IndicatorOptionsHedging, spread, zWindow)
		cur := spread[len(spread)-1]
		s.OptionsSpread = &cur
		if len(spread) >= minPercentile {
			p := calculator.PercentileOf(spread, cur)
			s.OptionsPercentile = &p
		}
	}
	if a, b := hygS.AlignWith(iefS); len(a) > 0 {
		setZ(model.IndicatorCreditStress,
			calculator.Diff(calculator.PctChange(a, 1), calculator.PctChange(b, 1)), zWindow)
	}
	if a, b := hygS.AlignWith(lqdS); len(a) > 0 {
		setZ(model.IndicatorCreditSpread,
			calculator.Diff(calculator.PctChange(a, 20), calculator.PctChange(b, 20)), zWindow)
	}
	if a, b := iwmS.AlignWith(spyS); len(a) > 0 {
		setZ(model.IndicatorBreadth,
			calculator.Diff(calculator.PctChange(a, 20), calculator.PctChange(b, 20)), zWindow)
	}
	if short, peak, err := calculator.Drawdown(spy, model.DrawdownShortDays, model.DrawdownPeakDays); err == nil {
		s.Drawdown = &model.Drawdown{Symbol: sy.LargeCap, Short: short, FromPeak: peak}
	}
	if chg := calculator.PctChange(dxy, 20); len(chg) > 0 {
		s.Indicators[model.IndicatorDollar] = chg[len(chg)-1]
	}
	if a, b := tnxS.AlignWith(irxS); len(a) > 0 {
		s.Indicators[model.IndicatorYieldCurve] = a[len(a)-1] - b[len(b)-1]
	}
	if len(pcr) > 0 {
		s.Indicators[model.IndicatorPutCall] = pcr[len(pcr)-1]
	}

	// Bill stress: how far the 3m bill yield trades above its recent mean, in bp.
	if len(irx) >= billMeanWindow {
		s.DebtCeiling.TBillSpreadBP = (irx[len(irx)-1] - calculator.Mean(irx[len(irx)-billMeanWindow:])) * 100
	}
	if len(shy) > 0 {
		if vol, err := calculator.AnnualizedVol(shy, volPeriod); err == nil {
			s.DebtCeiling.TreasuryVol = vol
		}
	}

	log.Debug().Int("indicators", len(s.Indicators)).Strs("failed", s.Failed).Msg("snapshot collected")
	return s, nil
}
