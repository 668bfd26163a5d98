package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		callbackRequests,
		httpDuration,
	)
}

var (
	// result: applied|stale|unknown_intent|requery_failed|bad_request
	callbackRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_requests_total",
			Help: "Redirect callbacks ingested, by result.",
		},
		[]string{"result"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of API handlers in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "status"},
	)
)

func IncCallback(result string) {
	callbackRequests.WithLabelValues(norm(result)).Inc()
}

func ObserveHTTP(path, status string, seconds float64) {
	httpDuration.WithLabelValues(path, status).Observe(seconds)
}
