// Package telemetry exposes Prometheus metrics for the HTTP surface, the
// insight generator and the state toggle.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "healthwatch"

// Metrics groups every collector the service records. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	insights     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	syncs        *prometheus.CounterVec
}

// NewMetrics creates and registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_generated_total",
			Help:      "Insights produced, by patient state and text source (llm or fallback).",
		}, []string{"state", "source"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Text-generation call latency by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15, 20},
		}, []string{"outcome"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_syncs_total",
			Help:      "State toggles by resulting state.",
		}, []string{"to_state"}),
	}
	reg.MustRegister(m.httpRequests, m.httpLatency, m.insights, m.llmLatency, m.syncs)
	return m
}

// RecordInsight counts one generated insight.
func (m *Metrics) RecordInsight(state, source string) {
	if m == nil {
		return
	}
	m.insights.WithLabelValues(state, source).Inc()
}

// ObserveLLM records the duration of one text-generation call.
func (m *Metrics) ObserveLLM(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordSync counts one state toggle.
func (m *Metrics) RecordSync(toState string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(toState).Inc()
}

// Middleware records request counts and latency keyed by the matched route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus exposition format for g.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
