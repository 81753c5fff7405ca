package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimemap_requests_total",
		Help: "Total number of API requests",
	}, []string{"path", "status"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crimemap_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	QueriesSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crimemap_queries_suppressed_total",
		Help: "Total drill-down queries withheld by the privacy threshold",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDurationMs,
		QueriesSuppressedTotal,
	)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
