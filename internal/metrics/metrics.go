package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for summarization traffic on a private
// registry, so several servers (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    prometheus.Histogram
	rateLimited prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summarizer_requests_total",
			Help: "Summarization requests by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "summarizer_request_duration_seconds",
			Help:    "Time spent producing a summary, upstream call included",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "summarizer_rate_limited_total",
			Help: "Summarization requests rejected by the rate limiter",
		}),
	}
}

// ObserveSummary records one finished summarization.
func (m *Metrics) ObserveSummary(outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
