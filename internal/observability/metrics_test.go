package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

func TestObserveRun(t *testing.T) {
	m := NewMetrics()
	res := &domain.BacktestResult{
		Trades: []domain.TradeResult{
			{ExitReason: domain.ExitTakeProfit},
			{ExitReason: domain.ExitTakeProfit},
			{ExitReason: domain.ExitStopLoss},
		},
		HedgeEvents: []domain.HedgeEvent{{Urgency: domain.UrgencyHigh}},
		Halt:        domain.Halt{Halted: true},
		Metrics:     domain.Metrics{TotalReturnPct: 3.5},
	}

	m.ObserveRun(res, 20*time.Millisecond, nil)
	m.ObserveRun(nil, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("TAKE_PROFIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HedgesTotal.WithLabelValues("HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HaltsTotal))
	assert.Equal(t, 3.5, testutil.ToFloat64(m.LastRunReturn))
}

func TestObserveTrial(t *testing.T) {
	m := NewMetrics()
	m.ObserveTrial(nil)
	m.ObserveTrial(nil)
	m.ObserveTrial(errors.New("invalid"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrialsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrialsTotal.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveTrial(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "straddle_optimize_trials_total")
}

func TestNewMetrics_Independent(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
