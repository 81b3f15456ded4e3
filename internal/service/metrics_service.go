package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uniport/uap-leave-api/internal/models"
)

const metricsNamespace = "uap_leave"

// MetricsService owns the Prometheus registry. Alongside the scrape endpoint
// it keeps cheap atomic aggregates so the admin snapshot never has to read
// back from the registry. All methods are nil-receiver safe.
type MetricsService struct {
	handler http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	leaveEvents  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	cacheLatency prometheus.Histogram
	cacheWrites  prometheus.Histogram

	hits         uint64
	misses       uint64
	requests     uint64
	requestNanos uint64
}

// NewMetricsService builds and registers the collectors on a private
// registry, keeping the scrape output free of default process noise beyond
// the explicit goroutine gauge.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		leaveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "leave_events_total",
			Help:      "Committed leave application transitions by event type.",
		}, []string{"event"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by outcome.",
		}, []string{"outcome"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_read_seconds",
			Help:      "Cache read latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrites: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_write_seconds",
			Help:      "Cache write latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Current goroutine count.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	registry := prometheus.NewRegistry()
	registry.MustRegister(m.httpDuration, m.httpTotal, m.leaveEvents,
		m.cacheLookups, m.cacheLatency, m.cacheWrites, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	atomic.AddUint64(&m.requests, 1)
	atomic.AddUint64(&m.requestNanos, uint64(duration.Nanoseconds()))
}

// RecordLeaveEvent counts a committed leave transition.
func (m *MetricsService) RecordLeaveEvent(eventType models.LeaveEventType) {
	if m == nil {
		return
	}
	m.leaveEvents.WithLabelValues(string(eventType)).Inc()
}

// RecordCacheOperation records one cache lookup and its outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.hits, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.misses, 1)
	}
}

// ObserveCacheWrite records the latency of one cache set.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// Snapshot aggregates the atomic counters for the admin system endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{GeneratedAt: time.Now().UTC()}
	}
	hits := atomic.LoadUint64(&m.hits)
	misses := atomic.LoadUint64(&m.misses)
	requests := atomic.LoadUint64(&m.requests)
	nanos := atomic.LoadUint64(&m.requestNanos)

	snapshot := models.SystemMetrics{
		CacheHits:     hits,
		CacheMisses:   misses,
		RequestsTotal: requests,
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
	if lookups := hits + misses; lookups > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(lookups)
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(nanos) / float64(requests) / float64(time.Millisecond)
	}
	return snapshot
}
