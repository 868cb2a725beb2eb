// Package metrics exposes the engine's risk state as Prometheus series.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/journal"
	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/regime"
)

// Recorder owns its registry so several engines (and tests) can coexist in
// one process.
type Recorder struct {
	reg *prometheus.Registry

	Equity       prometheus.Gauge
	Unit         prometheus.Gauge
	TOR          prometheus.Gauge
	TORLimit     prometheus.Gauge
	Positions    prometheus.Gauge
	Regime       *prometheus.GaugeVec
	Exits        *prometheus.CounterVec
	RMultiple    prometheus.Histogram
	DataFailures *prometheus.CounterVec
}

var _ engine.Observer = (*Recorder)(nil)

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskos_account_equity",
			Help: "Account equity in account currency",
		}),
		Unit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskos_active_unit",
			Help: "Currency value of 1R under the active regime",
		}),
		TOR: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskos_total_open_risk_r",
			Help: "Total open risk in R units",
		}),
		TORLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskos_total_open_risk_limit_r",
			Help: "TOR limit of the active regime",
		}),
		Positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskos_open_positions",
			Help: "Number of open positions",
		}),
		Regime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskos_active_regime",
			Help: "1 for the active regime, 0 otherwise",
		}, []string{"regime"}),
		Exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskos_exits_total",
			Help: "Recorded exits by kind and outcome",
		}, []string{"kind", "outcome"}),
		RMultiple: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskos_exit_r_multiple",
			Help:    "R multiple of recorded exits",
			Buckets: []float64{-3, -2, -1, -0.5, 0, 0.5, 1, 2, 3, 5},
		}),
		DataFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskos_market_data_failures_total",
			Help: "Market data calls that degraded, by reason",
		}, []string{"reason"}),
	}

	r.reg.MustRegister(
		r.Equity, r.Unit, r.TOR, r.TORLimit, r.Positions,
		r.Regime, r.Exits, r.RMultiple, r.DataFailures,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveOverview(ov engine.Overview) {
	r.Equity.Set(ov.Session.Equity.InexactFloat64())
	r.Unit.Set(ov.Session.Unit)
	r.TOR.Set(ov.Portfolio.TOR)
	r.TORLimit.Set(ov.Portfolio.Limit)
	r.Positions.Set(float64(len(ov.Portfolio.Exposures)))
	for _, g := range regime.All() {
		v := 0.0
		if g == ov.Session.Regime {
			v = 1
		}
		r.Regime.WithLabelValues(g.String()).Set(v)
	}
}

func (r *Recorder) ObserveExit(row journal.Row) {
	kind := "full"
	if row.Partial {
		kind = "partial"
	}
	r.Exits.WithLabelValues(kind, string(row.Outcome)).Inc()
	if row.Outcome == journal.OutcomeOK {
		r.RMultiple.Observe(row.RMultiple)
	}
}

// DataFailure matches market.Guarded's OnFailure hook.
func (r *Recorder) DataFailure(_ string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		reason = "breaker_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	case errors.Is(err, market.ErrDataUnavailable):
		reason = "unavailable"
	}
	r.DataFailures.WithLabelValues(reason).Inc()
}
