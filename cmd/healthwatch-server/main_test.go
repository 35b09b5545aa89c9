package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthwatch/healthwatch/internal/config"
	"github.com/healthwatch/healthwatch/internal/domain/insight"
	"github.com/healthwatch/healthwatch/internal/domain/monitoring"
	"github.com/healthwatch/healthwatch/internal/platform/auth"
	"github.com/healthwatch/healthwatch/internal/platform/db"
	"github.com/healthwatch/healthwatch/internal/platform/events"
	"github.com/healthwatch/healthwatch/internal/platform/llm"
	"github.com/healthwatch/healthwatch/internal/platform/telemetry"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type stubChecker struct{}

func (stubChecker) Ping(context.Context) error { return nil }
func (stubChecker) Stats() *db.PoolStats      { return &db.PoolStats{TotalConns: 1, Healthy: true} }

func productionConfig() *config.Config {
	return &config.Config{
		Env:                   "production",
		PatientID:             config.DefaultPatientID,
		AIMaxTokens:           150,
		AITimeoutSeconds:      20,
		RequestTimeoutSeconds: 30,
		AuthSigningKey:        testSigningKey,
	}
}

func newTestEcho(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	gen := insight.NewGenerator(nil, zerolog.Nop(), metrics)
	svc := monitoring.NewService(uuid.MustParse(cfg.PatientID), monitoring.Repositories{}, gen)
	return newEcho(serverDeps{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		reg:     reg,
		metrics: metrics,
		checker: stubChecker{},
		handler: monitoring.NewHandler(svc),
	})
}

func signToken(t *testing.T, roles ...string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "caregiver-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return s
}

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Str("k", "v").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "v", entry["k"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewLogger_DevelopmentIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("development", &buf)
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestParsePatientID(t *testing.T) {
	id, err := parsePatientID(config.DefaultPatientID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPatientID, id.String())

	_, err = parsePatientID("patient-1")
	assert.Error(t, err)
}

func TestBuildCompleter(t *testing.T) {
	cfg := productionConfig()
	assert.Nil(t, buildCompleter(cfg))

	cfg.HFAPIKey = "your_hf_api_key_here"
	assert.Nil(t, buildCompleter(cfg))

	cfg.HFAPIKey = "hf_abcdefghijklmnop"
	cfg.AIModel = "test-model"
	c := buildCompleter(cfg)
	require.NotNil(t, c)
	client, ok := c.(*llm.Client)
	require.True(t, ok)
	assert.Equal(t, "test-model", client.Model())
}

func TestBuildPublisher_NopWithoutBrokers(t *testing.T) {
	p := buildPublisher(productionConfig(), zerolog.Nop())
	assert.IsType(t, events.NopPublisher{}, p)

	cfg := productionConfig()
	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaTopic = "patient-state-changes"
	p = buildPublisher(cfg, zerolog.Nop())
	_, ok := p.(*events.KafkaPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}

func TestPrintStatuses(t *testing.T) {
	at := time.Date(2025, 1, 14, 8, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatuses(&buf, []db.MigrationStatus{
		{Version: 1, Name: "core", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "extra"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "applied")
	assert.Contains(t, lines[2], "2025-01-14 08:30:00")
	assert.Contains(t, lines[3], "pending")
}

func TestServer_HealthIsPublic(t *testing.T) {
	h := newTestEcho(t, productionConfig())

	for _, path := range []string{"/health", "/health/db", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	h := newTestEcho(t, productionConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vitals", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing authorization header", body["error"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ViewerCannotSync(t *testing.T) {
	h := newTestEcho(t, productionConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, auth.RoleViewer))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	h := newTestEcho(t, productionConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, auth.RoleCaregiver))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
