// Package http provides the operational HTTP server for the fuel price watcher.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the watcher. It satisfies the
// recorder interfaces of both the API client and the engine.
type Metrics struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	RefreshTotal    *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec

	CachedStations prometheus.Gauge
	CachedPrices   prometheus.Gauge

	MatchedCandidates *prometheus.GaugeVec
	CheapestPence     *prometheus.GaugeVec
}

// NewMetrics creates and registers metrics on the default registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting registers on a throwaway registry so tests can
// create metrics repeatedly without duplicate-registration panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelwatch_api_requests_total",
				Help: "Total number of provider API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelwatch_api_request_duration_seconds",
				Help:    "Provider API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelwatch_refresh_total",
				Help: "Total refresh cycles by outcome (success, degraded, failure)",
			},
			[]string{"outcome"},
		),
		RefreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelwatch_refresh_duration_seconds",
				Help:    "Refresh cycle duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{},
		),
		CachedStations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fuelwatch_cached_stations",
				Help: "Number of station records in the in-memory cache",
			},
		),
		CachedPrices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fuelwatch_cached_prices",
				Help: "Number of price records in the in-memory cache",
			},
		),
		MatchedCandidates: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelwatch_matched_candidates",
				Help: "Stations with a valid price in the last cycle by fuel type",
			},
			[]string{"fuel_type"},
		),
		CheapestPence: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelwatch_cheapest_pence_per_litre",
				Help: "Cheapest price found in the last cycle by fuel type",
			},
			[]string{"fuel_type"},
		),
	}
}

// RecordAPIRequest records one provider API request.
func (m *Metrics) RecordAPIRequest(endpoint, outcome string, seconds float64) {
	m.APIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordRefresh records the outcome and duration of a refresh cycle.
func (m *Metrics) RecordRefresh(outcome string, seconds float64) {
	m.RefreshTotal.WithLabelValues(outcome).Inc()
	m.RefreshDuration.WithLabelValues().Observe(seconds)
}

// RecordCacheSize records the cache sizes after a merge.
func (m *Metrics) RecordCacheSize(stations, prices int) {
	m.CachedStations.Set(float64(stations))
	m.CachedPrices.Set(float64(prices))
}

// RecordFuelResult records the per-fuel-type result of a cycle.
func (m *Metrics) RecordFuelResult(fuelType string, candidates int, cheapest *float64) {
	m.MatchedCandidates.WithLabelValues(fuelType).Set(float64(candidates))
	if cheapest != nil {
		m.CheapestPence.WithLabelValues(fuelType).Set(*cheapest)
	}
}
