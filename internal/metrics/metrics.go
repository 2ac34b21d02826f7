// Package metrics provides Prometheus metrics for the map engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeScriptError  = "script_error"
	OutcomeOverflow     = "overflow"
	OutcomeUnregistered = "unregistered"
)

// Load outcomes, counted once per worker.
const (
	LoadRegistered = "registered"
	LoadMissing    = "missing"
	LoadFailed     = "failed"
)

// Metrics holds all Prometheus metrics for the map engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	RoutesTotal   *prometheus.CounterVec
	RouteDuration *prometheus.HistogramVec
	EmittedTokens prometheus.Histogram
	ScriptLoads   *prometheus.CounterVec
	Workers       prometheus.Gauge
	registerer    prometheus.Registerer
}

// New creates the metrics and registers them on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	m := &Metrics{registerer: reg}

	m.RoutesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapengine_routes_total",
			Help: "Total number of routed documents",
		},
		[]string{"worker", "outcome"},
	)

	m.RouteDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapengine_route_duration_seconds",
			Help:    "Duration of one mapping invocation in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, 1},
		},
		[]string{"backend"},
	)

	m.EmittedTokens = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mapengine_emitted_tokens",
			Help:    "Number of tokens produced by one invocation",
			Buckets: prometheus.LinearBuckets(0, 4, 16),
		},
	)

	m.ScriptLoads = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapengine_script_loads_total",
			Help: "Per-worker script load attempts by outcome",
		},
		[]string{"outcome"},
	)

	m.Workers = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapengine_workers",
			Help: "Number of script workers in the pool",
		},
	)

	return m
}

// Registerer returns the registerer the metrics were created on.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return nil
	}
	return m.registerer
}

// RecordRoute records one routed invocation.
func (m *Metrics) RecordRoute(worker int, outcome, backend string, tokens int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RoutesTotal.WithLabelValues(strconv.Itoa(worker), outcome).Inc()
	m.RouteDuration.WithLabelValues(backend).Observe(duration.Seconds())
	m.EmittedTokens.Observe(float64(tokens))
}

// RecordLoad records one per-worker load attempt.
func (m *Metrics) RecordLoad(outcome string) {
	if m == nil {
		return
	}
	m.ScriptLoads.WithLabelValues(outcome).Inc()
}

// SetWorkers updates the worker gauge.
func (m *Metrics) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.Workers.Set(float64(n))
}
