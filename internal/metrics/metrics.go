package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "exam_engine"

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	AttemptsStarted *prometheus.CounterVec
	AttemptsClosed  *prometheus.CounterVec

	SweepDuration prometheus.Histogram
	SweepFailures prometheus.Counter
	SweepSkipped  prometheus.Counter
	OpenAttempts  prometheus.Gauge
}

// NewMetrics registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AttemptsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "attempts",
				Name:      "started_total",
				Help:      "Attempts started",
			},
			[]string{"exam_id"},
		),
		AttemptsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "attempts",
				Name:      "closed_total",
				Help:      "Attempts closed, by reason",
			},
			[]string{"reason"},
		),
		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of expiry sweeper cycles",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SweepFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "cycle_failures_total",
				Help:      "Sweeper cycles that ended with an error",
			},
		),
		SweepSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "cycles_skipped_total",
				Help:      "Sweeper cycles skipped because another replica held the lease",
			},
		),
		OpenAttempts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "open_attempts",
				Help:      "Open attempts observed by the last sweeper cycle",
			},
		),
	}
}

// ObserveClose is safe on a nil receiver so services can run without metrics.
func (m *Metrics) ObserveClose(reason string) {
	if m == nil {
		return
	}
	m.AttemptsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveStart(examID uint) {
	if m == nil {
		return
	}
	m.AttemptsStarted.WithLabelValues(strconv.FormatUint(uint64(examID), 10)).Inc()
}

// GinMiddleware records count, duration and in-flight requests per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
