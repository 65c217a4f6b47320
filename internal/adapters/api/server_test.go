package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/straddlebot/internal/adapters/api"
	"github.com/alejandrodnm/straddlebot/internal/adapters/storage"
	"github.com/alejandrodnm/straddlebot/internal/application/backtest"
	"github.com/alejandrodnm/straddlebot/internal/application/session"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/observability"
	"github.com/alejandrodnm/straddlebot/internal/ports"
	"github.com/alejandrodnm/straddlebot/internal/strategy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func flatBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100,
			Volume: 1000, Volatility: 0.5,
			SMA20: 100, SMA50: 100, RSI: 50, VolumeRatio: 1,
		}
	}
	return bars
}

var never = strategy.SignalFunc(func([]domain.Bar) (bool, strategy.SignalInfo) {
	return false, strategy.SignalInfo{}
})

func newServer(t *testing.T, store ports.RunStorage, bars []domain.Bar) (*api.Server, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetrics()
	sess := session.New(store, nil, m, backtest.WithSignal(never))
	return api.NewServer(api.Deps{
		Session:        sess,
		Storage:        store,
		Metrics:        m,
		Dataset:        api.Dataset{Symbol: "BTCUSDT", Interval: "1h", Bars: bars},
		Base:           domain.DefaultParams(),
		Profile:        "BALANCED",
		AllowedOrigins: []string{"http://localhost:3000"},
	}), m
}

func newStore(t *testing.T) ports.RunStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, srv *api.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, nil, flatBars(130))
	w := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "BTCUSDT", body["symbol"])
	assert.Equal(t, 130.0, body["bars"])
}

func TestProfiles(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	w := do(t, srv, http.MethodGet, "/api/v1/profiles", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Default  string `json:"default"`
		Profiles []struct {
			Name         string  `json:"name"`
			RiskPerTrade float64 `json:"risk_per_trade"`
		} `json:"profiles"`
	}](t, w)
	assert.Equal(t, "BALANCED", body.Default)
	require.Len(t, body.Profiles, 3)
	assert.Equal(t, "AGGRESSIVE", body.Profiles[0].Name)
	assert.Equal(t, 0.02, body.Profiles[0].RiskPerTrade)
}

func TestBacktest_RunsPersistsAndLists(t *testing.T) {
	store := newStore(t)
	srv, _ := newServer(t, store, flatBars(130))

	w := do(t, srv, http.MethodPost, "/api/v1/backtests",
		`{"profile":"conservative","label":"api","overrides":{"max_contracts":10},"include_trades":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[api.BacktestResponse](t, w)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Stored)
	assert.Equal(t, "CONSERVATIVE", created.Profile)
	assert.Equal(t, "BTCUSDT", created.Symbol)
	assert.Equal(t, 30, created.BarsProcessed)
	assert.Equal(t, 2, created.Params.MaxPositions)
	assert.Equal(t, 10, created.Params.MaxContracts)
	assert.Equal(t, 0, created.Metrics.TotalTrades)
	assert.Equal(t, t0, created.Window.Start)
	assert.Equal(t, t0.Add(129*time.Hour), created.Window.End)

	w = do(t, srv, http.MethodGet, "/api/v1/runs/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[domain.RunRecord](t, w)
	assert.Equal(t, "api", rec.Label)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 10000.0, rec.Result.Metrics.FinalCapital)

	w = do(t, srv, http.MethodPost, "/api/v1/backtests", "")
	require.Equal(t, http.StatusCreated, w.Code, "empty body runs the base profile")
	assert.Equal(t, "BALANCED", decode[api.BacktestResponse](t, w).Profile)

	w = do(t, srv, http.MethodGet, "/api/v1/runs?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.RunsResponse](t, w)
	assert.Equal(t, 2, list.Count)
}

func TestBacktest_Errors(t *testing.T) {
	srv, _ := newServer(t, nil, flatBars(130))

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"profile":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown profile", `{"profile":"yolo"}`, http.StatusBadRequest, "INVALID_PROFILE"},
		{"unknown override", `{"overrides":{"leverage":3}}`, http.StatusBadRequest, "INVALID_OVERRIDE"},
		{"invalid params", `{"overrides":{"risk_per_trade":0.5,"max_positions":0}}`, http.StatusUnprocessableEntity, "INVALID_PARAMS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/backtests", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decode[api.ErrorResponse](t, w).Error.Code)
		})
	}

	t.Run("problems listed", func(t *testing.T) {
		w := do(t, srv, http.MethodPost, "/api/v1/backtests", `{"overrides":{"risk_per_trade":0.5,"max_positions":0}}`)
		body := decode[api.ErrorResponse](t, w)
		problems, ok := body.Error.Details["problems"].([]any)
		require.True(t, ok)
		assert.Len(t, problems, 2)
	})
}

func TestBacktest_NoData(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/backtests", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRuns_Errors(t *testing.T) {
	srv, _ := newServer(t, newStore(t), nil)

	w := do(t, srv, http.MethodGet, "/api/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RUN_NOT_FOUND", decode[api.ErrorResponse](t, w).Error.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[api.RunsResponse](t, w).Count)

	noStore, _ := newServer(t, nil, nil)
	w = do(t, noStore, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newServer(t, nil, flatBars(130))
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/v1/backtests", `{}`).Code)

	w := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `straddle_backtest_runs_total{status="ok"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/backtests", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNoRoute(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	w := do(t, srv, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "NOT_FOUND"))
}

