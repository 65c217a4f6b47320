package session_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/straddlebot/internal/application/backtest"
	"github.com/alejandrodnm/straddlebot/internal/application/session"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/strategy"
)

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

type fakeStorage struct {
	saved []domain.RunRecord
	err   error
}

func (f *fakeStorage) SaveRun(_ context.Context, run domain.RunRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, run)
	return nil
}
func (f *fakeStorage) GetRun(context.Context, string) (domain.RunRecord, error) {
	return domain.RunRecord{}, domain.ErrRunNotFound
}
func (f *fakeStorage) ListRuns(context.Context, int) ([]domain.RunSummary, error) { return nil, nil }
func (f *fakeStorage) Close() error                                                 { return nil }

type fakeReporter struct {
	calls int
	err   error
}

func (f *fakeReporter) Report(context.Context, *domain.BacktestResult) error {
	f.calls++
	return f.err
}

type fakeObserver struct {
	runs []error
}

func (f *fakeObserver) ObserveRun(_ *domain.BacktestResult, _ time.Duration, err error) {
	f.runs = append(f.runs, err)
}

func TestExecute_PersistsAndReports(t *testing.T) {
	store, rep, obs := &fakeStorage{}, &fakeReporter{}, &fakeObserver{}
	s := session.New(store, rep, obs, backtest.WithSignal(never), backtest.WithRunID("run-1"))

	out, err := s.Execute(context.Background(), session.Request{
		Params: domain.DefaultParams(), Label: "smoke", Profile: "BALANCED", Symbol: "BTCUSDT",
	}, flatBars(130))
	require.NoError(t, err)

	assert.True(t, out.Stored)
	assert.Equal(t, "run-1", out.Record.ID)
	assert.Equal(t, "smoke", out.Record.Label)
	assert.Equal(t, 1, rep.calls)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "BTCUSDT", store.saved[0].Symbol)
	require.Len(t, obs.runs, 1)
	assert.NoError(t, obs.runs[0])
	assert.Equal(t, 30, out.Record.Result.BarsProcessed)
}

func TestExecute_StorageFailureKeepsResult(t *testing.T) {
	store := &fakeStorage{err: errors.New("disk full")}
	rep := &fakeReporter{err: errors.New("closed pipe")}
	s := session.New(store, rep, nil, backtest.WithSignal(never))

	out, err := s.Execute(context.Background(), session.Request{Params: domain.DefaultParams()}, flatBars(130))
	require.NoError(t, err)
	assert.False(t, out.Stored)
	assert.NotNil(t, out.Record.Result)
}

func TestExecute_InvalidParamsPersistNothing(t *testing.T) {
	store, rep, obs := &fakeStorage{}, &fakeReporter{}, &fakeObserver{}
	s := session.New(store, rep, obs)

	p := domain.DefaultParams()
	p.RiskPerTrade = 0.5
	_, err := s.Execute(context.Background(), session.Request{Params: p}, flatBars(130))

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, store.saved)
	assert.Zero(t, rep.calls)
	require.Len(t, obs.runs, 1)
	assert.Error(t, obs.runs[0])
}

func TestExecute_BarErrorPersistsNothing(t *testing.T) {
	store := &fakeStorage{}
	s := session.New(store, nil, nil, backtest.WithSignal(never))

	bars := flatBars(130)
	bars[125].Close = math.NaN()
	_, err := s.Execute(context.Background(), session.Request{Params: domain.DefaultParams()}, bars)

	var berr *domain.BarError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 125, berr.Index)
	assert.Empty(t, store.saved)
}

func TestExecute_WithoutDependencies(t *testing.T) {
	s := session.New(nil, nil, nil, backtest.WithSignal(never))
	out, err := s.Execute(context.Background(), session.Request{Params: domain.DefaultParams()}, flatBars(130))
	require.NoError(t, err)
	assert.False(t, out.Stored)
}
