package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Billing metrics
	SubscriptionsCreatedTotal   *prometheus.CounterVec
	SubscriptionsActivatedTotal *prometheus.CounterVec
	SubscriptionsCanceledTotal  prometheus.Counter
	SubscriptionsExpiredTotal   *prometheus.CounterVec
	ProrationsComputedTotal     prometheus.Counter
	ExpirySweepRunsTotal        *prometheus.CounterVec
	ExpirySweepFlipped          prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		SubscriptionsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_subscriptions_created_total",
				Help: "Total number of subscription create attempts",
			},
			[]string{"status"},
		),
		SubscriptionsActivatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_subscriptions_activated_total",
				Help: "Total number of subscription activation attempts",
			},
			[]string{"status"},
		),
		SubscriptionsCanceledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tally_subscriptions_canceled_total",
				Help: "Total number of canceled subscriptions",
			},
		),
		SubscriptionsExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_subscriptions_expired_total",
				Help: "Total number of subscriptions flipped to expired",
			},
			[]string{"trigger"},
		),
		ProrationsComputedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tally_prorations_computed_total",
				Help: "Total number of proration quotes computed",
			},
		),
		ExpirySweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_expiry_sweep_runs_total",
				Help: "Total number of expiry sweep runs",
			},
			[]string{"status"},
		),
		ExpirySweepFlipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tally_expiry_sweep_flipped_total",
				Help: "Total number of subscriptions expired by the sweep",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SubscriptionsCreatedTotal,
		m.SubscriptionsActivatedTotal,
		m.SubscriptionsCanceledTotal,
		m.SubscriptionsExpiredTotal,
		m.ProrationsComputedTotal,
		m.ExpirySweepRunsTotal,
		m.ExpirySweepFlipped,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
