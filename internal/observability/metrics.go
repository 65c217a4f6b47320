// Package observability exposes Prometheus metrics for backtests and grid searches.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

const namespace = "straddle"

// Metrics holds every collector on its own registry so several instances
// (tests, one per server) never collide.
type Metrics struct {
	registry *prometheus.Registry

	BacktestsTotal   *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	TradesTotal      *prometheus.CounterVec
	HedgesTotal      *prometheus.CounterVec
	HaltsTotal       prometheus.Counter
	TrialsTotal      *prometheus.CounterVec
	LastRunReturn    prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BacktestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		TradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_total",
			Help:      "Total number of simulated trades by exit reason",
		}, []string{"exit_reason"}),
		HedgesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "hedges_total",
			Help:      "Total number of hedge recommendations by urgency",
		}, []string{"urgency"}),
		HaltsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "halts_total",
			Help:      "Total number of runs stopped by the risk governor",
		}),
		TrialsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "trials_total",
			Help:      "Total number of grid-search trials by status",
		}, []string{"status"}),
		LastRunReturn: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "last_return_pct",
			Help:      "Total return in percent of the last successful run",
		}),
	}
}

// ObserveRun records the outcome of one backtest.
func (m *Metrics) ObserveRun(res *domain.BacktestResult, elapsed time.Duration, err error) {
	m.BacktestDuration.Observe(elapsed.Seconds())
	if err != nil || res == nil {
		m.BacktestsTotal.WithLabelValues("error").Inc()
		return
	}
	m.BacktestsTotal.WithLabelValues("ok").Inc()
	for _, t := range res.Trades {
		m.TradesTotal.WithLabelValues(string(t.ExitReason)).Inc()
	}
	for _, h := range res.HedgeEvents {
		m.HedgesTotal.WithLabelValues(string(h.Urgency)).Inc()
	}
	if res.Halt.Halted {
		m.HaltsTotal.Inc()
	}
	m.LastRunReturn.Set(res.Metrics.TotalReturnPct)
}

// ObserveTrial records one grid-search trial.
func (m *Metrics) ObserveTrial(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TrialsTotal.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
