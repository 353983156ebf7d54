package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/requestlog"
	"github.com/edgegate/edgegate/internal/core/store"
	"github.com/edgegate/edgegate/internal/core/telemetry"
	apperrors "github.com/edgegate/edgegate/internal/errors"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMetricsDaily(t *testing.T) {
	mem := store.NewMemory()
	aggregator := telemetry.NewAggregator(mem, zap.NewNop(), 0)
	aggregator.Record(context.Background(), telemetry.Outcome{
		Method: "GET", Path: "/api/widgets", StatusCode: 200, Duration: 12 * time.Millisecond,
	})
	aggregator.Record(context.Background(), telemetry.Outcome{
		Method: "POST", Path: "/api/widgets", StatusCode: 500, Duration: 20 * time.Millisecond,
	})

	h := NewMetrics(aggregator)
	rec := httptest.NewRecorder()
	h.Daily(rec, httptest.NewRequest("GET", "/ops/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary telemetry.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(2), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.Errors)
	assert.InDelta(t, 50.0, summary.ErrorRate, 0.001)
}

func TestMetricsDailyRejectsBadDate(t *testing.T) {
	h := NewMetrics(telemetry.NewAggregator(store.NewMemory(), zap.NewNop(), 0))

	rec := httptest.NewRecorder()
	h.Daily(rec, httptest.NewRequest("GET", "/ops/metrics?date=yesterday", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, decodeError(t, rec).Error.Code)
}

func TestMetricsHourlyValidatesHour(t *testing.T) {
	h := NewMetrics(telemetry.NewAggregator(store.NewMemory(), zap.NewNop(), 0))

	for _, hour := range []string{"", "-1", "24", "noon"} {
		rec := httptest.NewRecorder()
		h.Hourly(rec, httptest.NewRequest("GET", "/ops/metrics/hourly?hour="+hour, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, "hour=%q", hour)
	}

	rec := httptest.NewRecorder()
	h.Hourly(rec, httptest.NewRequest("GET", "/ops/metrics/hourly?hour=13", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary telemetry.HourlySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 13, summary.Hour)
	assert.Zero(t, summary.Requests)
}

func requestsRouter(h *Requests) http.Handler {
	r := chi.NewRouter()
	r.Get("/ops/requests/{requestID}", h.Get)
	return r
}

func TestRequestsGet(t *testing.T) {
	mem := store.NewMemory()
	correlator := requestlog.NewCorrelator(mem, zap.NewNop(), requestlog.DefaultConfig())

	id := requestlog.NewRequestID()
	seed := httptest.NewRequest("POST", "/api/widgets", nil)
	seed.RemoteAddr = "192.0.2.1:1234"
	correlator.Begin(context.Background(), id, seed, "u-1")

	router := requestsRouter(NewRequests(correlator))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ops/requests/"+id, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var record requestlog.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, id, record.RequestID)
	assert.Equal(t, "POST", record.Method)
	assert.Equal(t, "u-1", record.UserID)
}

func TestRequestsGetUnknownID(t *testing.T) {
	correlator := requestlog.NewCorrelator(store.NewMemory(), zap.NewNop(), requestlog.DefaultConfig())
	router := requestsRouter(NewRequests(correlator))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ops/requests/"+requestlog.NewRequestID(), nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, rec).Error.Code)
}

func TestHealthAggregatesCheckers(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("store", HealthCheckerFunc(func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	hm.HealthHandler(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "healthy", resp.Checks["store"])
}

func TestHealthReportsUnhealthyChecker(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("store", HealthCheckerFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	hm.HealthHandler(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.CodeUnavailable, decodeError(t, rec).Error.Code)
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("store", HealthCheckerFunc(func(ctx context.Context) error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	hm.LivenessHandler(rec, httptest.NewRequest("GET", "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessFailsWhenStoreIsDown(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("store", HealthCheckerFunc(func(ctx context.Context) error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	hm.ReadinessHandler(rec, httptest.NewRequest("GET", "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersionHandler(t *testing.T) {
	SetVersionInfo("9.9.9", "abc1234", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest("GET", "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "edgegate", resp.App.Name)
	assert.Equal(t, "9.9.9", resp.App.Version)
	assert.Equal(t, "abc1234", resp.App.Commit)
	assert.NotZero(t, resp.Runtime.NumCPU)
}
