// Package metrics holds the Prometheus collectors of the simulation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution sources.
const (
	SourceStored  = "stored"
	SourceDefault = "default"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Resolutions         *prometheus.CounterVec
	Calculations        *prometheus.CounterVec
	CalculationDuration *prometheus.HistogramVec
	Validations         *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxtabil_ruleset_resolutions_total",
				Help: "Active rule set resolutions by simulator key and source",
			},
			[]string{"key", "source"}, // source: stored, default
		),

		Calculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxtabil_calculations_total",
				Help: "Simulations run by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: ok, error
		),

		CalculationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maxtabil_calculation_duration_seconds",
				Help:    "Time spent resolving configuration and calculating a simulation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxtabil_ruleset_validations_total",
				Help: "Rule set payload validations by key and outcome",
			},
			[]string{"key", "outcome"}, // outcome: valid, invalid
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxtabil_ruleset_cache_lookups_total",
				Help: "Rule set cache lookups by result",
			},
			[]string{"result"}, // result: hit, miss, error
		),
	}
}

// ObserveResolution counts one resolution of key.
func (m *Metrics) ObserveResolution(key string, fallback bool) {
	if m == nil {
		return
	}
	source := SourceStored
	if fallback {
		source = SourceDefault
	}
	m.Resolutions.WithLabelValues(key, source).Inc()
}

// ObserveCalculation counts one simulation and records its duration.
func (m *Metrics) ObserveCalculation(kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Calculations.WithLabelValues(kind, outcome).Inc()
	m.CalculationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// ObserveValidation counts one payload validation.
func (m *Metrics) ObserveValidation(key string, ok bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !ok {
		outcome = "invalid"
	}
	m.Validations.WithLabelValues(key, outcome).Inc()
}

// ObserveCacheLookup counts one cache lookup; result is hit, miss, stale or error.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
