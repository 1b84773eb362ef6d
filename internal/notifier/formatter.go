package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"CrashSentinel/internal/model"
	"CrashSentinel/internal/portfolio"
	"CrashSentinel/internal/strategy"
)

func pct(score float64) int { return int(math.Round(score * 100)) }

// Subject is the one-line headline of a signal. Near the X-date it leads with the alert state.
func Subject(sig *model.Signal) string {
	dc := sig.DebtCeiling
	switch sig.Action {
	case model.ActionSell:
		if sig.AlertState == model.AlertEmergency {
			return fmt.Sprintf("🚨 SELL | Debt Ceiling EMERGENCY | %dd to X-date | Risk %d/100", dc.DaysRemaining, pct(sig.Score))
		}
		return fmt.Sprintf("🔴 SELL | Crash Risk %d/100", pct(sig.Score))
	case model.ActionRebuy:
		return fmt.Sprintf("🟢 REBUY | Risk easing %d/100", pct(sig.Score))
	}
	if sig.AlertState != model.AlertNormal && sig.AlertState != "" {
		return fmt.Sprintf("⚠️ Debt Ceiling %s | %dd to X-date | %s", sig.AlertState, dc.DaysRemaining, sig.Action)
	}
	return fmt.Sprintf("Crash Risk %s | %d/100", sig.Action, pct(sig.Score))
}

// FormatSignal formats a decision into a Telegram message.
func FormatSignal(sig *model.Signal) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("<b>%s</b>\n%s\n\n", html.EscapeString(Subject(sig)), sig.EvaluatedAt.Format("2006-01-02 15:04 MST")))

	cs := sig.Composite
	b.WriteString(fmt.Sprintf("Composite: %.2f", cs.Value))
	if cs.Boost > 0 {
		b.WriteString(fmt.Sprintf(" (base %.2f + debt ceiling %.2f)", cs.Base, cs.Boost))
	}
	b.WriteString(fmt.Sprintf("\nPosition: %s\n\n", sig.Position))

	b.WriteString("<b>Reasons:</b>\n")
	for _, r := range sig.Reasons {
		b.WriteString(fmt.Sprintf("• %s\n", html.EscapeString(r)))
	}

	if dc := sig.DebtCeiling; dc.IsNearDeadline {
		b.WriteString("\n<b>Debt ceiling:</b>\n")
		b.WriteString(fmt.Sprintf("  X-date %s, %d days, %s\n", dc.XDate.Format("2006-01-02"), dc.DaysRemaining, dc.AlertState))
		b.WriteString(fmt.Sprintf("  Budget risk %.2f (stress %.2f, proximity %.2f, fear %.2f)\n",
			dc.BudgetRiskScore, dc.StressScore, dc.ProximityScore, dc.FearScore))
	}

	if len(cs.Defaulted) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ No data, scored 0: %s\n", strings.Join(cs.Defaulted, ", ")))
	}
	return b.String()
}

// FormatBreakdown lists every weighted term, largest contribution first.
func FormatBreakdown(cs model.CompositeScore) string {
	rows := append([]model.Contribution(nil), cs.Breakdown...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Weighted > rows[j].Weighted })

	var b strings.Builder
	b.WriteString("📈 <b>Breakdown:</b>\n")
	for _, c := range rows {
		mark := ""
		if c.Defaulted {
			mark = " (no data)"
		}
		b.WriteString(fmt.Sprintf("  %s: %.2f ×%.2f = %.3f%s\n", c.Name, c.Score, c.Weight, c.Weighted, mark))
	}
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("  Composite: %.3f\n", cs.Value))
	return b.String()
}

// DashboardSubject is the headline of the daily dashboard.
func DashboardSubject(sum strategy.Summary) string {
	return fmt.Sprintf("Market Risk %s | Cash %d%% | %s", sum.Posture.Emoji, sum.Posture.CashPct, sum.Trend)
}

// FormatDashboard formats the daily traffic-light summary.
func FormatDashboard(sum strategy.Summary, cs model.CompositeScore, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(DashboardSubject(sum)), now.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("<b>Guidance:</b> %s\n", sum.Posture.Guidance))
	b.WriteString(fmt.Sprintf("<b>Forced selling probability:</b> %d%%\n", pct(sum.ForcedSelling)))
	b.WriteString(fmt.Sprintf("Red %d / Yellow %d\n\n", sum.RedCount, sum.YellowCount))

	names := make([]string, 0, len(sum.Bands))
	for name := range sum.Bands {
		names = append(names, name)
	}
	sort.Strings(names)
	scores := make(map[string]float64, len(cs.Breakdown))
	for _, c := range cs.Breakdown {
		scores[c.Name] = c.Score
	}
	for _, name := range names {
		b.WriteString(fmt.Sprintf("%s %s %.2f\n", bandEmoji(sum.Bands[name]), name, scores[name]))
	}
	return b.String()
}

func bandEmoji(b strategy.Band) string {
	switch b {
	case strategy.BandRed:
		return "🔴"
	case strategy.BandYellow:
		return "🟡"
	default:
		return "🟢"
	}
}

// FormatIntraday formats an intraday escalation alert.
func FormatIntraday(level string, score float64, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚡ <b>%s | Intraday Market Stress</b>\n\n", strings.ReplaceAll(level, "_", " ")))
	b.WriteString(fmt.Sprintf("Composite intraday risk score: %d/100\n\n", pct(score)))
	b.WriteString("Signals indicate rapid deterioration in market microstructure.\n")
	b.WriteString("Often precedes broader risk-off moves.\n\n")
	b.WriteString(fmt.Sprintf("UTC Time: %s", now.UTC().Format(time.RFC3339)))
	return b.String()
}

// FormatDrawdown formats the broad-market decline line appended to the dashboard.
func FormatDrawdown(d model.Drawdown) string {
	line := fmt.Sprintf("%s %dd %+.1f%% | from %dd peak %+.1f%%",
		html.EscapeString(d.Symbol), model.DrawdownShortDays, d.Short*100, model.DrawdownPeakDays, d.FromPeak*100)
	if d.Triggered() {
		return "📉 <b>Drawdown trigger:</b> " + line
	}
	return "Drawdown: " + line
}

// FormatOptionsReport formats the weekly options hedging context.
func FormatOptionsReport(stress float64, percentile *int) string {
	regime := strategy.OptionsRegime(stress)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📉 <b>Weekly Options Risk Update | %s</b>\n\n", regime))
	b.WriteString(fmt.Sprintf("Regime: %s\n", regime))
	b.WriteString(fmt.Sprintf("Stress level: %d%%\n", pct(stress)))
	if percentile != nil {
		b.WriteString(fmt.Sprintf("Current level is at the %dth percentile vs the past 5 years.\n", *percentile))
	}
	b.WriteString("\nThis is a structural context update, not a trading signal.")
	return b.String()
}

// FormatState formats the persisted position for display.
func FormatState(st model.PositionState, now time.Time) string {
	var b strings.Builder
	b.WriteString("📦 <b>Position state</b>\n\n")
	b.WriteString(fmt.Sprintf("Position: %s\n", st.Position))
	if st.LastSignal != "" {
		b.WriteString(fmt.Sprintf("Last signal: %s at %s\n", st.LastSignal, st.LastSignalTime.Format("2006-01-02 15:04")))
	}
	if st.InCooldown(now) {
		b.WriteString(fmt.Sprintf("Cooldown until: %s (%s left)\n",
			st.CooldownUntil.Format("2006-01-02 15:04"), st.CooldownUntil.Sub(now).Round(time.Minute)))
	}
	if st.Position == model.PositionSold {
		b.WriteString(fmt.Sprintf("Sell origin: %s at %.2f\n", st.SellOrigin, st.SellScore))
		if len(st.CreditWindow) > 0 {
			parts := make([]string, len(st.CreditWindow))
			for i, v := range st.CreditWindow {
				parts[i] = fmt.Sprintf("%.2f", v)
			}
			b.WriteString(fmt.Sprintf("Credit window: %s\n", strings.Join(parts, " → ")))
		}
	}
	if !st.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s\n", st.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// PortfolioSubject is the headline of the holdings report.
func PortfolioSubject(r *portfolio.Report) string {
	if n := r.Reducing(); n > 0 {
		return fmt.Sprintf("🔴 Portfolio: %d SELL / %d TRIM", r.Counts[portfolio.SignalSell], n-r.Counts[portfolio.SignalSell])
	}
	return "Portfolio: Healthy"
}

// FormatPortfolio formats the holdings report, riskiest holding first.
func FormatPortfolio(r *portfolio.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💼 <b>%s</b> | %s\n\n", html.EscapeString(PortfolioSubject(r)), r.GeneratedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Value $%.2f | Gain $%.2f (%+.1f%%)\n", r.TotalValue, r.TotalGain, r.TotalGainPct))
	b.WriteString(fmt.Sprintf("Beta %.2f | %d SELL | %d TRIM | %d WATCH | %d BUY | %d HOLD\n",
		r.Beta, r.Counts[portfolio.SignalSell], r.Counts[portfolio.SignalTrim]+r.Counts[portfolio.SignalTrimExtended],
		r.Counts[portfolio.SignalWatch], r.Counts[portfolio.SignalBuyDip], r.Counts[portfolio.SignalHold]))

	if len(r.Warnings) > 0 {
		b.WriteString("\n<b>Warnings:</b>\n")
		for _, w := range r.Warnings {
			b.WriteString(html.EscapeString(w) + "\n")
		}
	}
	if len(r.NewAlerts) > 0 {
		b.WriteString("\n🚨 <b>New alerts:</b>\n")
		for _, a := range r.NewAlerts {
			b.WriteString(html.EscapeString(a) + "\n")
		}
	}

	for _, a := range r.Positions {
		b.WriteString(fmt.Sprintf("\n%s <b>%s</b> %s\n", a.Signal.Emoji(), html.EscapeString(a.Symbol), strings.ReplaceAll(string(a.Signal), "_", " ")))
		b.WriteString(fmt.Sprintf("  $%.2f × %.0f = $%.2f | %+.1f%% | RSI %.0f | DD %.1f%%\n",
			a.Price, a.Shares, a.MarketValue, a.GainPct, a.RSI, a.Drawdown*100))
		if a.ActionNote != "" {
			b.WriteString("  💡 " + html.EscapeString(a.ActionNote) + "\n")
		}
		if a.StopLoss != nil {
			b.WriteString(fmt.Sprintf("  🛑 Stop $%.2f (%.1f%%)\n", *a.StopLoss, (*a.StopLoss/a.Price-1)*100))
		}
		for _, t := range a.Targets {
			b.WriteString(fmt.Sprintf("  📈 %s at $%.2f (+%.0f%%) - %s\n", t.Action, t.Price, t.GainPct, t.Reason))
		}
		if a.RecoveryPotential > 0 {
			b.WriteString(fmt.Sprintf("  Recovery potential %d%% (below MA50 %dd, vol %d%%)\n",
				pct(a.RecoveryPotential), a.DaysBelowMA50, pct(a.Volatility)))
		}
		if a.DaysHeld != nil {
			b.WriteString(fmt.Sprintf("  Held %d days\n", *a.DaysHeld))
		}
		for _, sig := range a.Signals {
			b.WriteString("  • " + html.EscapeString(sig) + "\n")
		}
	}
	if len(r.Failed) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ No data: %s\n", strings.Join(r.Failed, ", ")))
	}
	return b.String()
}
