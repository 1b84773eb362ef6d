package model

import "time"

// Bar is a single daily close from the market-data provider. Volume is 0 when the
// provider does not report it (indices, rates).
type Bar struct {
	Time   time.Time
	Close  float64
	Volume float64
}

// PriceSeries holds the closes fetched for one ticker.
type PriceSeries struct {
	Symbol    string
	Bars      []Bar
	FetchedAt time.Time
}

// Closes returns the close prices in chronological order. A nil series has none.
func (p *PriceSeries) Closes() []float64 {
	if p == nil {
		return nil
	}
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the traded volumes in chronological order.
func (p *PriceSeries) Volumes() []float64 {
	if p == nil {
		return nil
	}
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Volume
	}
	return out
}

// AlignWith joins two series on their UTC trading date and returns the closes of the
// days both have, oldest first. Holidays on one exchange drop out instead of shifting the pair.
func (p *PriceSeries) AlignWith(o *PriceSeries) (mine, theirs []float64) {
	if p == nil || o == nil {
		return nil, nil
	}
	byDay := make(map[string]float64, len(o.Bars))
	for _, b := range o.Bars {
		byDay[dayKey(b.Time)] = b.Close
	}
	for _, b := range p.Bars {
		if v, ok := byDay[dayKey(b.Time)]; ok {
			mine = append(mine, b.Close)
			theirs = append(theirs, v)
		}
	}
	return mine, theirs
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Drawdown thresholds that mark a fast equity sell-off.
const (
	DrawdownShortDays  = 3
	DrawdownPeakDays   = 20
	DrawdownShortLimit = -0.05
	DrawdownPeakLimit  = -0.10
)

// Drawdown is the broad-market decline over a short window and from its recent peak.
type Drawdown struct {
	Symbol   string  `json:"symbol"`
	Short    float64 `json:"short"`
	FromPeak float64 `json:"from_peak"`
}

// Triggered reports whether either decline is past its limit.
func (d Drawdown) Triggered() bool {
	return d.Short < DrawdownShortLimit || d.FromPeak < DrawdownPeakLimit
}
