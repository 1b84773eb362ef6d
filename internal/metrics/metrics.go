// Package metrics exposes evaluation results as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CrashSentinel/internal/model"
)

// Registry holds all Prometheus metrics for the sentinel.
type Registry struct {
	reg *prometheus.Registry

	Composite      prometheus.Gauge
	BaseScore      prometheus.Gauge
	Boost          prometheus.Gauge
	BudgetRisk     prometheus.Gauge
	DaysRemaining  prometheus.Gauge
	AlertState     *prometheus.GaugeVec
	IndicatorScore *prometheus.GaugeVec
	Defaulted      prometheus.Gauge
	Signals        *prometheus.CounterVec
	Cycles         *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	PositionSold   prometheus.Gauge
	Notifications  *prometheus.CounterVec
}

// NewRegistry creates a registry with process and Go collectors plus all sentinel metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Composite: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_composite_score",
			Help: "Latest composite crash-risk score including the debt-ceiling boost",
		}),
		BaseScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_base_score",
			Help: "Latest weighted indicator sum before the boost",
		}),
		Boost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_debt_ceiling_boost",
			Help: "Additive debt-ceiling boost applied to the latest composite",
		}),
		BudgetRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_budget_risk_score",
			Help: "Latest debt-ceiling budget risk score (0.0 to 1.0)",
		}),
		DaysRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_days_to_x_date",
			Help: "Days until the configured X-date, negative once passed",
		}),
		AlertState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crashsentinel_alert_state",
			Help: "1 for the current debt-ceiling alert state, 0 otherwise",
		}, []string{"state"}),
		IndicatorScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crashsentinel_indicator_score",
			Help: "Normalized score per indicator",
		}, []string{"indicator"}),
		Defaulted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_defaulted_indicators",
			Help: "Number of indicators scored 0 for lack of data in the latest cycle",
		}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashsentinel_signals_total",
			Help: "Signals emitted by action",
		}, []string{"action"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashsentinel_cycles_total",
			Help: "Evaluation cycles by result",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crashsentinel_cycle_duration_seconds",
			Help:    "Wall time of one collect-evaluate-persist cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PositionSold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashsentinel_position_sold",
			Help: "1 while the position is SOLD",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashsentinel_notifications_total",
			Help: "Outbound notifications by kind and result",
		}, []string{"kind", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Composite, r.BaseScore, r.Boost, r.BudgetRisk, r.DaysRemaining, r.AlertState,
		r.IndicatorScore, r.Defaulted, r.Signals, r.Cycles, r.CycleDuration, r.PositionSold,
		r.Notifications,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveSignal records the outcome of a successful cycle.
func (r *Registry) ObserveSignal(sig *model.Signal) {
	cs := sig.Composite
	r.Composite.Set(cs.Value)
	r.BaseScore.Set(cs.Base)
	r.Boost.Set(cs.Boost)
	r.Defaulted.Set(float64(len(cs.Defaulted)))
	for _, c := range cs.Breakdown {
		if c.Name == model.BoostContribution {
			continue
		}
		r.IndicatorScore.WithLabelValues(c.Name).Set(c.Score)
	}

	dc := sig.DebtCeiling
	r.BudgetRisk.Set(dc.BudgetRiskScore)
	r.DaysRemaining.Set(float64(dc.DaysRemaining))
	for _, s := range []model.AlertState{model.AlertNormal, model.AlertMonitoring, model.AlertEmergency} {
		v := 0.0
		if s == sig.AlertState {
			v = 1
		}
		r.AlertState.WithLabelValues(string(s)).Set(v)
	}

	r.Signals.WithLabelValues(string(sig.Action)).Inc()
	sold := 0.0
	if sig.Position == model.PositionSold {
		sold = 1
	}
	r.PositionSold.Set(sold)
}

// ObserveCycle records one cycle's duration and whether it completed.
func (r *Registry) ObserveCycle(err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Cycles.WithLabelValues(result).Inc()
	r.CycleDuration.Observe(d.Seconds())
}

// ObserveNotification counts one delivery attempt.
func (r *Registry) ObserveNotification(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	r.Notifications.WithLabelValues(kind, result).Inc()
}
