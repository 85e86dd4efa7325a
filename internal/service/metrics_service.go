package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and every collector the engine reports to.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec
	cacheLatency prometheus.Histogram
	cacheWrite   prometheus.Histogram

	queueDepth        prometheus.Gauge
	queueTaskDuration *prometheus.HistogramVec
	queueTasks        *prometheus.CounterVec

	seatOperations *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	suggestions    *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestion_cache_lookups_total",
			Help: "Suggestion cache lookups by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suggestion_cache_read_seconds",
			Help:    "Latency of suggestion cache reads",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suggestion_cache_write_seconds",
			Help:    "Latency of suggestion cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mutation_queue_depth",
			Help: "Tasks waiting in the mutation queue",
		}),
		queueTaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mutation_queue_task_duration_seconds",
			Help:    "Execution time of mutation queue tasks",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"task"}),
		queueTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mutation_queue_tasks_total",
			Help: "Mutation queue tasks by outcome",
		}, []string{"task", "outcome"}),
		seatOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_operations_total",
			Help: "Seat ledger operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_transitions_total",
			Help: "Successful enrollment status transitions",
		}, []string{"from", "to"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_suggestions_total",
			Help: "Auto-assign decisions by outcome",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_conflicts_total",
			Help: "Rejected schedule writes by dimension",
		}, []string{"dimension"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLookups, m.cacheLatency, m.cacheWrite,
		m.queueDepth, m.queueTaskDuration, m.queueTasks,
		m.seatOperations, m.transitions, m.suggestions, m.conflicts,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request latency and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveQueueTask implements jobs.Observer.
func (m *MetricsService) ObserveQueueTask(name string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.queueTaskDuration.WithLabelValues(name).Observe(duration.Seconds())
	m.queueTasks.WithLabelValues(name, outcomeLabel(err)).Inc()
}

// SetQueueDepth implements jobs.Observer.
func (m *MetricsService) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordSeatOperation counts a seat ledger call.
func (m *MetricsService) RecordSeatOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.seatOperations.WithLabelValues(operation, outcomeLabel(err)).Inc()
}

// RecordTransition counts a committed enrollment status change.
func (m *MetricsService) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordSuggestion counts an auto-assign decision: accepted, rejected or empty.
func (m *MetricsService) RecordSuggestion(outcome string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(outcome).Inc()
}

// RecordScheduleConflict counts a rejected session write.
func (m *MetricsService) RecordScheduleConflict(dimension string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(dimension).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
