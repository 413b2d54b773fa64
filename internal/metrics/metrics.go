// Package metrics provides Prometheus instrumentation for fraudwatch.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ClassifyAttemptsTotal counts HTTP attempts against the classifier by
	// endpoint variant and status bucket.
	ClassifyAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Subsystem: "classifier",
			Name:      "attempts_total",
			Help:      "Total classification HTTP attempts by variant and status bucket.",
		},
		[]string{"variant", "status"},
	)

	// ColdStartRetriesTotal counts retries caused by a sleeping backend (503).
	ColdStartRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Subsystem: "classifier",
			Name:      "cold_start_retries_total",
			Help:      "Total retries after a 503 cold-start response.",
		},
		[]string{"variant"},
	)

	// ClassifyOutcomesTotal counts finished classifications by outcome
	// ("approved", "flagged" or an error kind).
	ClassifyOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Subsystem: "classifier",
			Name:      "outcomes_total",
			Help:      "Total classifications by outcome.",
		},
		[]string{"variant", "outcome"},
	)

	// ClassifyDuration observes the end-to-end latency of a classification,
	// retries included.
	ClassifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudwatch",
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Classification latency in seconds including cold-start retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"variant"},
	)

	// FeedEntries tracks the number of feed entries per status.
	FeedEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fraudwatch",
			Subsystem: "feed",
			Name:      "entries",
			Help:      "Current number of feed entries by status.",
		},
		[]string{"status"},
	)

	// ActiveStreamClients tracks connected websocket stream clients.
	ActiveStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudwatch",
		Name:      "active_stream_clients",
		Help:      "Number of connected feed stream websocket clients.",
	})

	// HTTPRequestsTotal counts API requests by method, route and status bucket.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ClassifyAttemptsTotal,
		ColdStartRetriesTotal,
		ClassifyOutcomesTotal,
		ClassifyDuration,
		FeedEntries,
		ActiveStreamClients,
		HTTPRequestsTotal,
	)
}

// Middleware returns a gin middleware that counts API requests.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			StatusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// StatusBucket groups HTTP status codes into 1xx..5xx. Zero means no response.
func StatusBucket(code int) string {
	switch {
	case code == 0:
		return "none"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
