package strategy

import (
	"math"

	"CrashSentinel/internal/model"
)

// Band is the traffic-light classification of one normalized indicator.
type Band string

const (
	BandGreen  Band = "GREEN"
	BandYellow Band = "YELLOW"
	BandRed    Band = "RED"
)

const (
	greenCeiling = 0.33
	redFloor     = 0.66
)

// BandFor classifies a normalized score.
func BandFor(score float64) Band {
	switch {
	case score >= redFloor:
		return BandRed
	case score >= greenCeiling:
		return BandYellow
	default:
		return BandGreen
	}
}

// Posture is the guidance attached to a count of red indicators.
type Posture struct {
	Guidance string
	CashPct  int
	Emoji    string
}

// Postures maps the number of red indicators to guidance, most severe first.
var Postures = []struct {
	MinRed  int
	Posture Posture
}{
	{3, Posture{Guidance: "Crisis regime.", CashPct: 85, Emoji: "🚨"}},
	{2, Posture{Guidance: "Defensive posture.", CashPct: 60, Emoji: "🔴"}},
	{1, Posture{Guidance: "Elevated risk. Trim exposure.", CashPct: 30, Emoji: "🟠"}},
	{0, Posture{Guidance: "Normal conditions.", CashPct: 10, Emoji: "🟡"}},
}

func postureFor(red int) Posture {
	for _, p := range Postures {
		if red >= p.MinRed {
			return p.Posture
		}
	}
	return Postures[len(Postures)-1].Posture
}

// Trend compares today's red count with the previous one.
type Trend string

const (
	TrendUnchanged  Trend = "No material change"
	TrendIncreasing Trend = "↑ Risk increasing"
	TrendEasing     Trend = "↓ Risk easing"
)

// Summary is the daily dashboard view of one cycle.
type Summary struct {
	Bands         map[string]Band
	RedCount      int
	YellowCount   int
	ForcedSelling float64
	Posture       Posture
	Trend         Trend
}

// Summarize classifies every breakdown entry and derives the forced-selling probability.
// prevRed is the red count of the previous summary, or negative when unknown.
func Summarize(cs model.CompositeScore, prevRed int) Summary {
	s := Summary{Bands: make(map[string]Band), Trend: TrendUnchanged}
	scores := make(map[string]float64)
	for _, c := range cs.Breakdown {
		if c.Name == model.BoostContribution {
			continue
		}
		b := BandFor(c.Score)
		s.Bands[c.Name] = b
		scores[c.Name] = c.Score
		switch b {
		case BandRed:
			s.RedCount++
		case BandYellow:
			s.YellowCount++
		}
	}
	s.ForcedSelling = math.Min(
		0.35*scores[model.IndicatorCreditStress]+
			0.35*scores[model.IndicatorOptionsHedging]+
			0.30*scores[model.IndicatorVIXExpansion], 1.0)
	s.Posture = postureFor(s.RedCount)
	if prevRed >= 0 {
		switch {
		case s.RedCount > prevRed:
			s.Trend = TrendIncreasing
		case s.RedCount < prevRed:
			s.Trend = TrendEasing
		}
	}
	return s
}

// Intraday escalation levels.
const (
	LevelEarlyWarning = "EARLY_WARNING"
	LevelHighRisk     = "HIGH_RISK"
	LevelEmergency    = "EMERGENCY"
)

// IntradayAlertFloor is the lowest composite that can raise an intraday alert.
const IntradayAlertFloor = 0.40

// IntradayLevel maps a composite score to an escalation level.
func IntradayLevel(score float64) string {
	switch {
	case score < 0.60:
		return LevelEarlyWarning
	case score < 0.80:
		return LevelHighRisk
	default:
		return LevelEmergency
	}
}

// IntradayScore blends the three fast-moving stress readings of a composite breakdown.
func IntradayScore(cs model.CompositeScore) float64 {
	scores := make(map[string]float64, len(cs.Breakdown))
	for _, c := range cs.Breakdown {
		scores[c.Name] = c.Score
	}
	return 0.4*scores[model.IndicatorVIXExpansion] +
		0.3*scores[model.IndicatorCreditStress] +
		0.3*scores[model.IndicatorOptionsHedging]
}

// ShouldAlertIntraday reports whether score is worth an alert given the last alerted score.
func ShouldAlertIntraday(score, lastAlerted float64) bool {
	return score >= IntradayAlertFloor && score > lastAlerted
}

// OptionsRegime classifies options-hedging stress for the weekly report.
func OptionsRegime(stress float64) string {
	switch {
	case stress < 0.3:
		return "LOW"
	case stress < 0.6:
		return "ELEVATED"
	default:
		return "HIGH"
	}
}
