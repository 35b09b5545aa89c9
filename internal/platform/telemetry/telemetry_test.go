package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordInsight("risk", "fallback")
	m.ObserveLLM("ok", time.Second)
	m.RecordSync("risk")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := m.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	require.NoError(t, err)
}

func TestMetrics_RecordInsightAndSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordInsight("risk", "fallback")
	m.RecordInsight("risk", "fallback")
	m.RecordInsight("stable", "llm")
	m.RecordSync("risk")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.insights.WithLabelValues("risk", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.insights.WithLabelValues("stable", "llm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncs.WithLabelValues("risk")))
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/vitals", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/patient", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})

	for _, path := range []string{"/api/vitals", "/api/vitals", "/api/patient"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/vitals", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/patient", "404")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordSync("stable")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	require.NoError(t, Handler(reg)(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `healthwatch_state_syncs_total{to_state="stable"} 1`))
}
