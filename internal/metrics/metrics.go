// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private registry plus the collectors the service records
// into. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	providerLatency prometheus.Histogram
	quizParses      *prometheus.CounterVec
	interactions    *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studynotion",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studynotion",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studynotion",
			Name:      "provider_calls_total",
			Help:      "Chat-completion calls by outcome.",
		}, []string{"outcome"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "studynotion",
			Name:      "provider_call_duration_seconds",
			Help:      "Chat-completion call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		quizParses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studynotion",
			Name:      "quiz_parse_total",
			Help:      "Quiz replies by parse result (parsed or raw).",
		}, []string{"result"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studynotion",
			Name:      "interactions_total",
			Help:      "Recorded AI interactions by type.",
		}, []string{"type"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studynotion",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.providerCalls, m.providerLatency,
		m.quizParses, m.interactions, m.rateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveProvider records one outbound call. outcome is ok, http_error,
// network_error or config_error.
func (m *Metrics) ObserveProvider(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(outcome).Inc()
	if outcome != "config_error" {
		m.providerLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) QuizParsed(result string) {
	if m == nil {
		return
	}
	m.quizParses.WithLabelValues(result).Inc()
}

func (m *Metrics) Interaction(entryType string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(entryType).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
