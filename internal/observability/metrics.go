package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	searchRequestsTotal   *prometheus.CounterVec
	searchLatencySeconds  *prometheus.HistogramVec
	listingSessionsActive prometheus.Gauge
	programSubmissions    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nest_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nest_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nest_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		searchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nest_search_requests_total",
			Help: "Search requests per index labelled by outcome.",
		}, []string{"index", "outcome"})

		searchLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nest_search_latency_seconds",
			Help:    "Latency of search backend calls per index.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"index"})

		listingSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nest_listing_sessions_active",
			Help: "Number of open listing websocket sessions.",
		})

		programSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nest_program_submissions_total",
			Help: "Program form submissions labelled by mode and outcome.",
		}, []string{"mode", "outcome"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			searchRequestsTotal,
			searchLatencySeconds,
			listingSessionsActive,
			programSubmissions,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SearchRequests counts search calls by index and outcome (hit, miss, success, error).
func SearchRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return searchRequestsTotal
}

// SearchLatency tracks backend search latency per index.
func SearchLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return searchLatencySeconds
}

// ListingSessionsActive tracks open listing sessions.
func ListingSessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return listingSessionsActive
}

// ProgramSubmissions counts program form submissions.
func ProgramSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return programSubmissions
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
