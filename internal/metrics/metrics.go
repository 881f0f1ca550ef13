package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcaster_weather_fetches_total",
			Help: "Total forecast provider fetches",
		},
		[]string{"status"},
	)

	WeatherFetchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campcaster_weather_fetch_latency_seconds",
			Help:    "Forecast provider fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WeatherCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcaster_weather_cache_hits_total",
			Help: "Weather cache hits by tier (memory, persistent)",
		},
		[]string{"tier"},
	)

	AvailabilityRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcaster_availability_refreshes_total",
			Help: "Total availability snapshot refreshes",
		},
		[]string{"status"},
	)

	AvailabilityMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcaster_availability_matches_total",
			Help: "Site-to-entry reconciliation outcomes by method (slug, token, none)",
		},
		[]string{"method"},
	)

	FilterEvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campcaster_filter_evaluations_total",
			Help: "Total full visible-set recomputations",
		},
	)

	AlertFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcaster_alert_fetches_total",
			Help: "Total VicEmergency feed fetches",
		},
		[]string{"status"},
	)

	FireDangerFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcaster_fire_danger_fetches_total",
			Help: "Total CFA fire danger feed fetches",
		},
		[]string{"status"},
	)
)
