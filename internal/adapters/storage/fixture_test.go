package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// makeRun construye un run pequeño pero completo: dos trades, curva y una cobertura.
func makeRun(id string, started time.Time, ret float64) domain.RunRecord {
	trades := []domain.TradeResult{
		{
			PositionID: id + "-p1", EntryTime: t0, ExitTime: t0.Add(19 * time.Hour),
			EntryPrice: 50000, ExitPrice: 51000, Strike: 50000, PremiumPaid: 1234.5678,
			ExitValue: 1604.9381, Commission: 2.4691, PnL: 367.9012, PnLPct: 29.8,
			Contracts: 3, ExitReason: domain.ExitTakeProfit, Confidence: domain.ConfidenceHigh,
			HoldingHours: 19, HedgeCount: 1,
		},
		{
			PositionID: id + "-p2", EntryTime: t0.Add(30 * time.Hour), ExitTime: t0.Add(40 * time.Hour),
			EntryPrice: 51000, ExitPrice: 51020, Strike: 51000, PremiumPaid: 800,
			ExitValue: 300, Commission: 1.6, PnL: -501.6, PnLPct: -62.7,
			Contracts: 2, ExitReason: domain.ExitStopLoss, Confidence: domain.ConfidenceMedium,
			HoldingHours: 10,
		},
	}
	curve := []domain.EquitySnapshot{
		{Timestamp: t0, Capital: 8765.4322, PositionsValue: 1234.5678, TotalValue: 10000, OpenPositions: 1},
		{Timestamp: t0.Add(time.Hour), Capital: 8765.4322, PositionsValue: 1300, TotalValue: 10065.4322, TotalPnL: 65.4322, OpenPositions: 1, ActiveHedges: 1},
		{Timestamp: t0.Add(40 * time.Hour), Capital: 9866.3012, TotalValue: 9866.3012, TotalPnL: -133.6988},
	}
	hedges := []domain.HedgeEvent{{
		Timestamp: t0.Add(5 * time.Hour), PositionID: id + "-p1", HedgeID: id + "-h1",
		Direction: domain.HedgeShort, SizeRatio: 0.2, Price: 55000,
		Reason: "move +10.0%, vol change +0.0%", Urgency: domain.UrgencyHigh, ReturnPct: 7.27,
	}}

	res := &domain.BacktestResult{
		RunID:         id,
		Params:        domain.DefaultParams(),
		Trades:        trades,
		EquityCurve:   curve,
		HedgeEvents:   hedges,
		Metrics:       domain.ComputeMetrics(trades, curve, hedges, 10000),
		Warnings:      []string{"risk_per_trade above 5%"},
		BarsProcessed: 41,
		FirstBar:      t0,
		LastBar:       t0.Add(40 * time.Hour),
		StartedAt:     started,
		FinishedAt:    started.Add(2 * time.Second),
	}
	res.Metrics.TotalReturnPct = ret
	return domain.RunRecord{ID: id, Label: "test " + id, Profile: "BALANCED", Symbol: "BTCUSDT", Result: res}
}

// exerciseRunStorage es la batería común a todos los backends.
func exerciseRunStorage(t *testing.T, s ports.RunStorage) {
	t.Helper()
	ctx := context.Background()

	run := makeRun("run-a", t0.Add(48*time.Hour), -1.34)
	require.NoError(t, s.SaveRun(ctx, run))

	t.Run("round trip", func(t *testing.T) {
		got, err := s.GetRun(ctx, "run-a")
		require.NoError(t, err)
		assert.Equal(t, run.Label, got.Label)
		assert.Equal(t, run.Profile, got.Profile)
		assert.Equal(t, run.Symbol, got.Symbol)

		want, res := run.Result, got.Result
		require.Len(t, res.Trades, 2)
		for i := range want.Trades {
			w, g := want.Trades[i], res.Trades[i]
			assert.Equal(t, w.PositionID, g.PositionID)
			assert.True(t, w.EntryTime.Equal(g.EntryTime))
			assert.True(t, w.ExitTime.Equal(g.ExitTime))
			assert.InDelta(t, w.PremiumPaid, g.PremiumPaid, 1e-6)
			assert.InDelta(t, w.PnL, g.PnL, 1e-6)
			assert.Equal(t, w.ExitReason, g.ExitReason)
			assert.Equal(t, w.Confidence, g.Confidence)
			assert.Equal(t, w.Contracts, g.Contracts)
			assert.Equal(t, w.HedgeCount, g.HedgeCount)
		}

		require.Len(t, res.EquityCurve, 3)
		assert.InDelta(t, 10065.4322, res.EquityCurve[1].TotalValue, 1e-6)
		assert.Equal(t, 1, res.EquityCurve[1].ActiveHedges)
		assert.True(t, t0.Add(time.Hour).Equal(res.EquityCurve[1].Timestamp))

		require.Len(t, res.HedgeEvents, 1)
		assert.Equal(t, domain.HedgeShort, res.HedgeEvents[0].Direction)
		assert.Equal(t, domain.UrgencyHigh, res.HedgeEvents[0].Urgency)
		assert.InDelta(t, 7.27, res.HedgeEvents[0].ReturnPct, 1e-9)

		assert.Equal(t, want.Params, res.Params)
		assert.Equal(t, want.Warnings, res.Warnings)
		assert.Equal(t, want.Metrics.TotalTrades, res.Metrics.TotalTrades)
		assert.Equal(t, want.Metrics.ExitBreakdown, res.Metrics.ExitBreakdown)
		assert.InDelta(t, -1.34, res.Metrics.TotalReturnPct, 1e-9)
		assert.Equal(t, 41, res.BarsProcessed)
		assert.False(t, res.Halt.Halted)
		assert.True(t, res.Halt.Timestamp.IsZero())
	})

	t.Run("duplicate", func(t *testing.T) {
		err := s.SaveRun(ctx, run)
		assert.ErrorIs(t, err, domain.ErrDuplicateRun)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		older := makeRun("run-b", t0, 3.5)
		halted := makeRun("run-c", t0.Add(96*time.Hour), 0)
		halted.Result.Halt = domain.Halt{Halted: true, Reason: "max consecutive losses reached (3)", Timestamp: t0.Add(40 * time.Hour)}
		halted.Result.Metrics.ProfitFactor = math.Inf(1)
		require.NoError(t, s.SaveRun(ctx, older))
		require.NoError(t, s.SaveRun(ctx, halted))

		list, err := s.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "run-c", list[0].ID)
		assert.Equal(t, "run-a", list[1].ID)
		assert.Equal(t, "run-b", list[2].ID)
		assert.True(t, list[0].Halted)
		assert.InDelta(t, 3.5, list[2].TotalReturn, 1e-9)
		assert.Equal(t, 2, list[2].TotalTrades)

		top, err := s.ListRuns(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, top, 2)

		got, err := s.GetRun(ctx, "run-c")
		require.NoError(t, err)
		assert.True(t, got.Result.Halt.Halted)
		assert.True(t, t0.Add(40*time.Hour).Equal(got.Result.Halt.Timestamp))
		assert.True(t, math.IsInf(got.Result.Metrics.ProfitFactor, 1))
	})
}
