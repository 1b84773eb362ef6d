package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/collector"
	"CrashSentinel/internal/metrics"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/notifier"
	"CrashSentinel/internal/portfolio"
	"CrashSentinel/internal/position"
	"CrashSentinel/internal/recorder"
	"CrashSentinel/internal/strategy"
)

const sendRetries = 3

// Source produces one snapshot of raw market readings.
type Source interface {
	Collect(ctx context.Context) (*collector.Snapshot, error)
}

// HoldingsMonitor analyzes the user's individual holdings.
type HoldingsMonitor interface {
	Run(ctx context.Context) (*portfolio.Report, error)
}

// Scheduler manages all cron tasks and owns the evaluation cycle.
type Scheduler struct {
	Cron     *cron.Cron
	Source   Source
	Engine   *strategy.Engine
	Position *position.Manager
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Metrics  *metrics.Registry
	Ctx      context.Context

	// Portfolio is optional; nil disables the holdings report.
	Portfolio HoldingsMonitor

	now func() time.Time

	mu           sync.Mutex
	last         *model.Signal
	drawdown     *model.Drawdown
	lastAlert    model.AlertState
	prevRed      int
	intradayPeak float64
	intradayDay  string
}

// NewScheduler creates a new Scheduler running cron jobs in loc.
func NewScheduler(ctx context.Context, src Source, eng *strategy.Engine, pm *position.Manager,
	n notifier.Notifier, rec recorder.Recorder, m *metrics.Registry, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Source:   src,
		Engine:   eng,
		Position: pm,
		Notifier: n,
		Recorder: rec,
		Metrics:  m,
		Ctx:      ctx,
		now:      time.Now,
		prevRed:  -1,
	}
}

// RegisterAll registers the daily cycle and, when configured, the intraday watch and weekly options report.
func (s *Scheduler) RegisterAll(dailyCron, intradayCron, weeklyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if intradayCron != "" {
		if _, err := s.Cron.AddFunc(intradayCron, s.intradayTask); err != nil {
			return fmt.Errorf("register intraday task: %w", err)
		}
	}
	if weeklyCron != "" {
		if _, err := s.Cron.AddFunc(weeklyCron, s.weeklyTask); err != nil {
			return fmt.Errorf("register weekly task: %w", err)
		}
	}
	return nil
}

// RegisterPortfolio schedules the holdings report. It is a no-op without a monitor or spec.
func (s *Scheduler) RegisterPortfolio(spec string) error {
	if s.Portfolio == nil || spec == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(spec, s.portfolioTask); err != nil {
		return fmt.Errorf("register portfolio task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// LastSignal returns the most recent successful signal, or nil before the first cycle.
func (s *Scheduler) LastSignal() *model.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunCycle collects, evaluates against the persisted position, records and notifies.
// An aborted cycle leaves the position untouched.
func (s *Scheduler) RunCycle(ctx context.Context) (*model.Signal, error) {
	start := time.Now()
	now := s.now()

	snap, err := s.Source.Collect(ctx)
	if err != nil {
		s.abort(ctx, now, nil, fmt.Errorf("collect: %w", err), start)
		return nil, err
	}

	in := strategy.Input{Indicators: snap.Indicators, DebtCeiling: snap.DebtCeiling}
	var sig *model.Signal
	next, err := s.Position.Apply(ctx, func(st model.PositionState) (model.PositionState, error) {
		out, nst, err := s.Engine.Evaluate(in, st, now)
		if err != nil {
			return st, err
		}
		sig = out
		return nst, nil
	})
	if err != nil {
		s.abort(ctx, now, snap, err, start)
		return nil, err
	}

	if err := s.Recorder.RecordCycle(&recorder.CycleRecord{
		Time: now, Signal: sig, Position: next, Failed: snap.Failed,
	}); err != nil {
		log.Error().Err(err).Msg("record cycle")
	}
	s.Metrics.ObserveSignal(sig)
	s.Metrics.ObserveCycle(nil, time.Since(start))

	s.mu.Lock()
	alertChanged := sig.AlertState != s.lastAlert && !(s.lastAlert == "" && sig.AlertState == model.AlertNormal)
	s.last = sig
	s.lastAlert = sig.AlertState
	s.drawdown = snap.Drawdown
	s.mu.Unlock()

	log.Info().
		Str("action", string(sig.Action)).
		Float64("score", sig.Score).
		Str("alert_state", string(sig.AlertState)).
		Int("days_remaining", sig.DebtCeiling.DaysRemaining).
		Str("position", string(next.Position)).
		Strs("defaulted", sig.Composite.Defaulted).
		Msg("cycle complete")

	if sig.Action.Actionable() || alertChanged {
		s.send(ctx, "SIGNAL", string(sig.Action), sig.Score, notifier.FormatSignal(sig)+"\n"+notifier.FormatBreakdown(sig.Composite))
	}
	return sig, nil
}

func (s *Scheduler) abort(ctx context.Context, now time.Time, snap *collector.Snapshot, err error, start time.Time) {
	log.Error().Err(err).Msg("cycle aborted, position unchanged")
	rec := &recorder.CycleRecord{Time: now, Position: s.Position.State(), Error: err.Error()}
	if snap != nil {
		rec.Failed = snap.Failed
	}
	if rerr := s.Recorder.RecordCycle(rec); rerr != nil {
		log.Error().Err(rerr).Msg("record aborted cycle")
	}
	s.Metrics.ObserveCycle(err, time.Since(start))
	s.send(ctx, "ERROR", "", 0, fmt.Sprintf("❌ Evaluation cycle aborted: %v", err))
}

// RunDashboard sends the traffic-light summary of sig, comparing red counts with the previous dashboard.
func (s *Scheduler) RunDashboard(ctx context.Context, sig *model.Signal) strategy.Summary {
	s.mu.Lock()
	sum := strategy.Summarize(sig.Composite, s.prevRed)
	s.prevRed = sum.RedCount
	dd := s.drawdown
	s.mu.Unlock()

	text := notifier.FormatDashboard(sum, sig.Composite, sig.EvaluatedAt)
	if dd != nil {
		text += "\n" + notifier.FormatDrawdown(*dd)
	}
	s.send(ctx, "DASHBOARD", fmt.Sprintf("red=%d", sum.RedCount), sig.Score, text)
	return sum
}

// RunIntraday scores the market without touching the position and alerts when the intraday
// blend crosses the alert floor above the day's previous peak. It reports whether an alert went out.
func (s *Scheduler) RunIntraday(ctx context.Context) (bool, error) {
	now := s.now()
	snap, err := s.Source.Collect(ctx)
	if err != nil {
		return false, fmt.Errorf("collect: %w", err)
	}
	cs, _, err := s.Engine.Assess(strategy.Input{Indicators: snap.Indicators, DebtCeiling: snap.DebtCeiling}, now)
	if err != nil {
		return false, err
	}
	score := strategy.IntradayScore(cs)

	s.mu.Lock()
	if day := now.Format("2006-01-02"); day != s.intradayDay {
		s.intradayDay = day
		s.intradayPeak = 0
	}
	alert := strategy.ShouldAlertIntraday(score, s.intradayPeak)
	if alert {
		s.intradayPeak = score
	}
	s.mu.Unlock()

	log.Debug().Float64("intraday_score", score).Bool("alert", alert).Msg("intraday check")
	if !alert {
		return false, nil
	}
	level := strategy.IntradayLevel(score)
	s.send(ctx, "INTRADAY", level, score, notifier.FormatIntraday(level, score, now))
	return true, nil
}

// RunOptionsReport sends the weekly options hedging context.
func (s *Scheduler) RunOptionsReport(ctx context.Context) error {
	snap, err := s.Source.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	cs, _, err := s.Engine.Assess(strategy.Input{Indicators: snap.Indicators, DebtCeiling: snap.DebtCeiling}, s.now())
	if err != nil {
		return err
	}
	stress := 0.0
	for _, c := range cs.Breakdown {
		if c.Name == model.IndicatorOptionsHedging {
			stress = c.Score
		}
	}
	s.send(ctx, "OPTIONS", strategy.OptionsRegime(stress), stress, notifier.FormatOptionsReport(stress, snap.OptionsPercentile))
	return nil
}

// RunPortfolio analyzes the holdings and sends the report.
func (s *Scheduler) RunPortfolio(ctx context.Context) (*portfolio.Report, error) {
	if s.Portfolio == nil {
		return nil, errors.New("no holdings configured")
	}
	rep, err := s.Portfolio.Run(ctx)
	if err != nil {
		return nil, err
	}
	level := "healthy"
	if n := rep.Reducing(); n > 0 {
		level = fmt.Sprintf("reduce=%d", n)
	}
	s.send(ctx, "PORTFOLIO", level, rep.Beta, notifier.FormatPortfolio(rep))
	return rep, nil
}

func (s *Scheduler) dailyTask() {
	log.Info().Msg("running daily evaluation")
	sig, err := s.RunCycle(s.Ctx)
	if err != nil {
		return
	}
	s.RunDashboard(s.Ctx, sig)
}

func (s *Scheduler) intradayTask() {
	if _, err := s.RunIntraday(s.Ctx); err != nil {
		log.Error().Err(err).Msg("intraday check")
	}
}

func (s *Scheduler) weeklyTask() {
	log.Info().Msg("running weekly options report")
	if err := s.RunOptionsReport(s.Ctx); err != nil {
		log.Error().Err(err).Msg("weekly options report")
	}
}

func (s *Scheduler) portfolioTask() {
	log.Info().Msg("running portfolio report")
	if _, err := s.RunPortfolio(s.Ctx); err != nil {
		log.Error().Err(err).Msg("portfolio report")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	verb := ""
	if fields := strings.Fields(command); len(fields) > 0 {
		verb = strings.ToLower(fields[0])
	}
	switch verb {
	case "/status":
		sig := s.LastSignal()
		if sig == nil {
			return "No evaluation has run yet. Send /evaluate."
		}
		return notifier.FormatSignal(sig)
	case "/state":
		return notifier.FormatState(s.Position.State(), s.now())
	case "/evaluate":
		sig, err := s.RunCycle(ctx)
		if err != nil {
			return ""
		}
		if sig.Action.Actionable() {
			return "" // already delivered by RunCycle
		}
		return notifier.FormatSignal(sig) + "\n" + notifier.FormatBreakdown(sig.Composite)
	case "/dashboard":
		sig := s.LastSignal()
		if sig == nil {
			return "No evaluation has run yet. Send /evaluate."
		}
		s.RunDashboard(ctx, sig)
		return ""
	case "/portfolio":
		if _, err := s.RunPortfolio(ctx); err != nil {
			return fmt.Sprintf("❌ Portfolio report failed: %v", err)
		}
		return ""
	default:
		return "Available commands:\n• /status\n• /state\n• /evaluate\n• /dashboard\n• /portfolio"
	}
}

func (s *Scheduler) send(ctx context.Context, kind, level string, score float64, text string) {
	err := s.Notifier.SendWithRetry(ctx, text, sendRetries)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("send notification")
	}
	s.Metrics.ObserveNotification(kind, err)
	if rerr := s.Recorder.RecordAlert(&recorder.AlertEvent{
		Kind: kind, Level: level, Score: score, Delivered: err == nil,
	}); rerr != nil {
		log.Error().Err(rerr).Msg("record alert")
	}
}
