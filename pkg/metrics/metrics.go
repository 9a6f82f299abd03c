package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "account_service"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Metrics owns a private registry so tests can build as many as they like.
// All recording methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	pushTokens   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Account operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_jobs_total",
			Help:      "Notification jobs by queue, job name and outcome.",
		}, []string{"queue", "job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_job_duration_seconds",
			Help:      "Time spent processing one notification job attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "job"}),
		pushTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_total",
			Help:      "Per device token push deliveries by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.authEvents,
		m.jobs,
		m.jobDuration,
		m.pushTokens,
	)
	return m
}

// Registry is exposed for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) AuthEvent(operation, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) JobOutcome(queue, job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(queue, job, outcome).Inc()
	m.jobDuration.WithLabelValues(queue, job).Observe(elapsed.Seconds())
}

func (m *Metrics) PushTokens(success, failure int) {
	if m == nil {
		return
	}
	m.pushTokens.WithLabelValues(OutcomeSuccess).Add(float64(success))
	m.pushTokens.WithLabelValues(OutcomeFailure).Add(float64(failure))
}
