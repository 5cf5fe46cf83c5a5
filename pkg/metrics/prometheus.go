package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsStored    *prometheus.CounterVec
	gapsTotal     *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	coverage      *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexcore_bars_stored_total",
				Help: "Total one-minute bars committed to the store",
			},
			[]string{"symbol"},
		),
		gapsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexcore_gaps_total",
				Help: "Gaps seen by the analyzer, by disposition",
			},
			[]string{"symbol", "disposition"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forexcore_update_cycle_duration_seconds",
				Help:    "Duration of per-symbol update cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol", "state"},
		),
		coverage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forexcore_coverage_ratio",
				Help: "Fraction of expected market-hours minutes present",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexcore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordBarsStored records bars committed for a symbol.
func (r *Recorder) RecordBarsStored(symbol string, n int) {
	if n > 0 {
		r.barsStored.WithLabelValues(symbol).Add(float64(n))
	}
}

// RecordGaps records what the gap scan found and what happened to it.
func (r *Recorder) RecordGaps(symbol string, found, filled, skipped int) {
	r.gapsTotal.WithLabelValues(symbol, "found").Add(float64(found))
	r.gapsTotal.WithLabelValues(symbol, "filled").Add(float64(filled))
	r.gapsTotal.WithLabelValues(symbol, "skipped").Add(float64(skipped))
}

// RecordCycle records one finished update cycle.
func (r *Recorder) RecordCycle(symbol string, state models.CycleState, seconds float64) {
	r.cycleDuration.WithLabelValues(symbol, string(state)).Observe(seconds)
}

// RecordCoverage records the market-hours coverage fraction.
func (r *Recorder) RecordCoverage(symbol string, fraction float64) {
	r.coverage.WithLabelValues(symbol).Set(fraction)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
