package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Links created, partitioned by kind (custom, generated)
	LinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_links_created_total",
			Help: "Total number of short links created",
		},
		[]string{"kind"},
	)

	// Generated codes that hit the unique constraint and were retried
	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_code_collisions_total",
			Help: "Generated short codes rejected by the store as duplicates",
		},
	)

	// Creations that gave up after the attempt bound
	CreateExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_create_exhausted_total",
			Help: "Creations that exceeded the generated-code attempt bound",
		},
	)

	// Redirect resolutions partitioned by outcome (found, not_found, error)
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_resolutions_total",
			Help: "Short code resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// Click writes partitioned by result (ok, failed)
	ClicksRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_clicks_recorded_total",
			Help: "Click event writes by result",
		},
		[]string{"result"},
	)

	// Link cache lookups partitioned by result (hit, miss, error)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_cache_lookups_total",
			Help: "Link cache lookups by result",
		},
		[]string{"result"},
	)

	// Total HTTP requests partitioned by method, route, and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)
