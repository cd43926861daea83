// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Plan configuration load outcomes.
const (
	OutcomeHit    = "hit"
	OutcomeReady  = "ready"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

const namespace = "benefits"

var (
	registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	configLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_config_loads_total",
		Help:      "Plan configuration loads by source and outcome.",
	}, []string{"source", "outcome"})

	staleLoads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_config_stale_loads_total",
		Help:      "Plan configuration responses dropped because a newer load was issued.",
	})

	premiumLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "premium_lookups_total",
		Help:      "Premium matrix lookups by result.",
	}, []string{"result"})

	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollment_submissions_total",
		Help:      "Enrollment submissions by result kind.",
	}, []string{"kind"})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by scope.",
	}, []string{"scope"})

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "enrollment_sessions",
		Help:      "Enrollment sessions currently held in memory.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		configLoads,
		staleLoads,
		premiumLookups,
		submissions,
		rateLimited,
		activeSessions,
	)
}

// Registry returns the service registry.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveConfigLoad counts one plan configuration load.
func ObserveConfigLoad(source, outcome string) {
	configLoads.WithLabelValues(source, outcome).Inc()
}

// ObserveStaleLoad counts one dropped stale load response.
func ObserveStaleLoad() {
	staleLoads.Inc()
}

// ObservePremiumLookup counts one premium lookup.
func ObservePremiumLookup(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	premiumLookups.WithLabelValues(result).Inc()
}

// ObserveSubmission counts one enrollment submission result.
func ObserveSubmission(kind string) {
	submissions.WithLabelValues(kind).Inc()
}

// ObserveRateLimited counts one rejected request.
func ObserveRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

// SetActiveSessions records the live session count.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
