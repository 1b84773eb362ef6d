package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/collector"
	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/metrics"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/normalize"
	"CrashSentinel/internal/portfolio"
	"CrashSentinel/internal/position"
	"CrashSentinel/internal/recorder"
	"CrashSentinel/internal/strategy"
)

var xDate = time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	snap *collector.Snapshot
	err  error
}

func (f *fakeSource) Collect(context.Context) (*collector.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeSource) setUniform(score float64) {
	inds := make(map[string]any)
	for _, w := range strategy.DefaultWeights() {
		inds[w.Name] = score
	}
	f.snap = &collector.Snapshot{Indicators: inds}
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *captureNotifier) lastMsg() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return ""
	}
	return c.msgs[len(c.msgs)-1]
}

type harness struct {
	s     *Scheduler
	src   *fakeSource
	note  *captureNotifier
	rec   *recorder.SQLiteRecorder
	store *position.FileStore
	clock time.Time
}

func newHarness(t *testing.T, daysToX int) *harness {
	t.Helper()
	timer, err := debtceiling.NewTimer(debtceiling.DefaultConfig(xDate))
	require.NoError(t, err)
	scorer, err := strategy.NewScorer(strategy.DefaultWeights())
	require.NoError(t, err)
	eng := strategy.NewEngine(strategy.DefaultConfig(), normalize.New(nil), scorer, timer)

	dir := t.TempDir()
	store := position.NewFileStore(filepath.Join(dir, "state.json"))
	pm, err := position.NewManager(context.Background(), store)
	require.NoError(t, err)
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "cycles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	h := &harness{src: &fakeSource{}, note: &captureNotifier{}, rec: rec, store: store}
	h.clock = xDate.AddDate(0, 0, -daysToX).Add(21 * time.Hour)
	h.s = NewScheduler(context.Background(), h.src, eng, pm, h.note, rec, metrics.NewRegistry(), time.UTC)
	h.s.now = func() time.Time { return h.clock }
	return h
}

func TestRunCycleCalmHoldsQuietly(t *testing.T) {
	h := newHarness(t, 180)
	h.src.setUniform(0.1)

	sig, err := h.s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ActionHold, sig.Action)
	assert.Zero(t, h.note.count(), "HOLD in NORMAL state is not announced")
	assert.Same(t, sig, h.s.LastSignal())

	rows, err := h.rec.Recent(5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HOLD", rows[0].Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.s.Metrics.Cycles.WithLabelValues("ok")))
}

func TestRunCycleSellPersistsAndCoolsDown(t *testing.T) {
	h := newHarness(t, 180)
	h.src.setUniform(0.9)

	sig, err := h.s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ActionSell, sig.Action)
	assert.Equal(t, 1, h.note.count())
	assert.Contains(t, h.note.lastMsg(), "SELL")

	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PositionSold, stored.Position)
	assert.Equal(t, model.SellOriginThreshold, stored.SellOrigin)

	h.clock = h.clock.Add(24 * time.Hour)
	sig, err = h.s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ActionNoAction, sig.Action)
	assert.Equal(t, 1, h.note.count(), "suppressed cycle sends nothing")
}

func TestRunCycleMalformedInputLeavesPosition(t *testing.T) {
	h := newHarness(t, 180)
	h.src.setUniform(0.9)
	h.src.snap.Indicators[model.IndicatorVIXSpike] = []float64{0.1, 0.2}

	_, err := h.s.RunCycle(context.Background())
	assert.ErrorIs(t, err, normalize.ErrMalformedInput)
	assert.Equal(t, model.PositionHolding, h.s.Position.State().Position)
	assert.Nil(t, h.s.LastSignal())
	assert.Contains(t, h.note.lastMsg(), "aborted")

	rows, err := h.rec.Recent(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ERROR", rows[0].Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.s.Metrics.Cycles.WithLabelValues("error")))
}

func TestRunCycleCollectFailure(t *testing.T) {
	h := newHarness(t, 180)
	h.src.err = errors.New("provider down")

	_, err := h.s.RunCycle(context.Background())
	assert.ErrorContains(t, err, "provider down")
	assert.Equal(t, model.PositionHolding, h.s.Position.State().Position)
}

func TestRunCycleAnnouncesAlertStateChange(t *testing.T) {
	h := newHarness(t, 30)
	h.src.setUniform(0.1)

	sig, err := h.s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ActionHold, sig.Action)
	assert.Equal(t, model.AlertMonitoring, sig.AlertState)
	assert.Equal(t, 1, h.note.count())
	assert.Contains(t, h.note.lastMsg(), "Debt Ceiling MONITORING")

	h.clock = h.clock.Add(24 * time.Hour)
	_, err = h.s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.note.count(), "unchanged alert state is not repeated")
}

func TestRunIntradayEscalatesOnlyAbovePeak(t *testing.T) {
	h := newHarness(t, 180)

	h.src.setUniform(0.3)
	alerted, err := h.s.RunIntraday(context.Background())
	require.NoError(t, err)
	assert.False(t, alerted, "below the alert floor")

	h.src.setUniform(0.5)
	alerted, err = h.s.RunIntraday(context.Background())
	require.NoError(t, err)
	assert.True(t, alerted)
	assert.Contains(t, h.note.lastMsg(), "EARLY WARNING")

	alerted, err = h.s.RunIntraday(context.Background())
	require.NoError(t, err)
	assert.False(t, alerted, "same score does not repeat")

	h.src.setUniform(0.85)
	alerted, err = h.s.RunIntraday(context.Background())
	require.NoError(t, err)
	assert.True(t, alerted)
	assert.Contains(t, h.note.lastMsg(), "EMERGENCY")

	h.clock = h.clock.Add(24 * time.Hour)
	h.src.setUniform(0.5)
	alerted, err = h.s.RunIntraday(context.Background())
	require.NoError(t, err)
	assert.True(t, alerted, "peak resets on a new day")

	assert.Equal(t, model.PositionHolding, h.s.Position.State().Position, "intraday never trades")
}

func TestRunOptionsReport(t *testing.T) {
	h := newHarness(t, 180)
	h.src.setUniform(0.7)
	p := 88
	h.src.snap.OptionsPercentile = &p

	require.NoError(t, h.s.RunOptionsReport(context.Background()))
	msg := h.note.lastMsg()
	assert.Contains(t, msg, "Weekly Options Risk Update | HIGH")
	assert.Contains(t, msg, "88th percentile")
}

func TestRunDashboardTracksTrend(t *testing.T) {
	h := newHarness(t, 180)
	h.src.setUniform(0.7)
	sig, err := h.s.RunCycle(context.Background())
	require.NoError(t, err)

	sum := h.s.RunDashboard(context.Background(), sig)
	assert.Equal(t, strategy.TrendUnchanged, sum.Trend, "first dashboard has no baseline")
	assert.Equal(t, 9, sum.RedCount)

	h.src.setUniform(0.1)
	h.clock = h.clock.Add(96 * time.Hour)
	sig, err = h.s.RunCycle(context.Background())
	require.NoError(t, err)
	sum = h.s.RunDashboard(context.Background(), sig)
	assert.Equal(t, strategy.TrendEasing, sum.Trend)
	assert.True(t, strings.Contains(h.note.lastMsg(), "Risk easing"))
}

func TestRunDashboardAppendsDrawdown(t *testing.T) {
	h := newHarness(t, 180)
	h.src.setUniform(0.1)
	h.src.snap.Drawdown = &model.Drawdown{Symbol: "SPY", Short: -0.06, FromPeak: -0.08}
	sig, err := h.s.RunCycle(context.Background())
	require.NoError(t, err)

	h.s.RunDashboard(context.Background(), sig)
	assert.Contains(t, h.note.lastMsg(), "Drawdown trigger:</b> SPY 3d -6.0%")
}

func TestHandleCommand(t *testing.T) {
	h := newHarness(t, 180)
	ctx := context.Background()

	assert.Contains(t, h.s.HandleCommand(ctx, "/status"), "No evaluation")
	assert.Contains(t, h.s.HandleCommand(ctx, "/state"), "Position: HOLDING")
	assert.Contains(t, h.s.HandleCommand(ctx, "   "), "Available commands")
	assert.Contains(t, h.s.HandleCommand(ctx, "/help"), "/evaluate")

	h.src.setUniform(0.2)
	reply := h.s.HandleCommand(ctx, "/evaluate")
	assert.Contains(t, reply, "Crash Risk HOLD")
	assert.Contains(t, reply, "Breakdown")
	assert.Contains(t, h.s.HandleCommand(ctx, "/STATUS now"), "Crash Risk HOLD")
}

func TestRegisterAll(t *testing.T) {
	h := newHarness(t, 180)
	require.NoError(t, h.s.RegisterAll("0 30 16 * * 1-5", "0 */15 9-16 * * 1-5", ""))
	assert.Len(t, h.s.Cron.Entries(), 2)
	assert.Error(t, h.s.RegisterAll("not a cron", "", ""))
}

type fakeHoldings struct {
	rep *portfolio.Report
	err error
}

func (f *fakeHoldings) Run(context.Context) (*portfolio.Report, error) { return f.rep, f.err }

func TestRunPortfolio(t *testing.T) {
	h := newHarness(t, 180)
	ctx := context.Background()

	_, err := h.s.RunPortfolio(ctx)
	assert.Error(t, err, "no monitor configured")
	assert.Contains(t, h.s.HandleCommand(ctx, "/portfolio"), "Portfolio report failed")

	h.s.Portfolio = &fakeHoldings{rep: &portfolio.Report{
		GeneratedAt: h.clock,
		Beta:        1.0,
		Counts:      map[portfolio.SignalType]int{portfolio.SignalSell: 1},
		Positions:   []*portfolio.Analysis{{Symbol: "AAA", Signal: portfolio.SignalSell, Price: 75, Shares: 10}},
	}}
	rep, err := h.s.RunPortfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Reducing())
	assert.Contains(t, h.note.lastMsg(), "Portfolio: 1 SELL / 0 TRIM")

	before := h.note.count()
	assert.Empty(t, h.s.HandleCommand(ctx, "/portfolio"), "report already sent")
	assert.Equal(t, before+1, h.note.count())

	h.s.Portfolio = &fakeHoldings{err: errors.New("all 2 holdings failed")}
	assert.Contains(t, h.s.HandleCommand(ctx, "/portfolio"), "all 2 holdings failed")
}

func TestRegisterPortfolio(t *testing.T) {
	h := newHarness(t, 180)
	require.NoError(t, h.s.RegisterPortfolio("0 0 17 * * 1-5"))
	assert.Empty(t, h.s.Cron.Entries(), "no monitor, nothing scheduled")

	h.s.Portfolio = &fakeHoldings{}
	require.NoError(t, h.s.RegisterPortfolio("0 0 17 * * 1-5"))
	assert.Len(t, h.s.Cron.Entries(), 1)
	assert.Error(t, h.s.RegisterPortfolio("bogus"))
}
