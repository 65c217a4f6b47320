package backtest

import (
	"testing"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var l0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func ledgerPos(id string, premium float64) *domain.Position {
	return &domain.Position{
		ID:           id,
		EntryTime:    l0,
		EntryPrice:   100,
		Strike:       100,
		Contracts:    2,
		PremiumPaid:  premium,
		CurrentValue: premium,
		Confidence:   domain.ConfidenceMedium,
	}
}

func TestLedger_OpenAndClose(t *testing.T) {
	l := NewLedger(1000, 0.001)

	pos := ledgerPos("a", 100)
	require.NoError(t, l.Open(pos))
	assert.Equal(t, 900.0, l.Capital())
	assert.Equal(t, 100.0, l.PositionsValue())

	pos.CurrentValue = 150
	tr := l.Close(0, l0.Add(10*time.Hour), 104, domain.ExitTakeProfit)

	assert.InDelta(t, 0.2, tr.Commission, 1e-12)
	assert.InDelta(t, 49.8, tr.PnL, 1e-12)
	assert.InDelta(t, 49.8, tr.PnLPct, 1e-12)
	assert.InDelta(t, 10, tr.HoldingHours, 1e-12)
	assert.InDelta(t, 1049.8, l.Capital(), 1e-9)
	assert.Equal(t, 0, l.ConsecutiveLosses())
	assert.Empty(t, l.Positions())
	assert.InDelta(t, l.Capital(), 1000-l.Debited()+l.Credited(), 1e-9)
}

func TestLedger_CommissionCappedAtExitValue(t *testing.T) {
	l := NewLedger(1000, 0.01)
	pos := ledgerPos("a", 100)
	require.NoError(t, l.Open(pos))

	pos.CurrentValue = 0.5
	tr := l.Close(0, l0, 100, domain.ExitStopLoss)
	assert.Equal(t, 0.5, tr.Commission)
	assert.Equal(t, -100.0, tr.PnL)
	assert.Equal(t, 900.0, l.Capital())
	assert.Equal(t, 1, l.ConsecutiveLosses())
}

func TestLedger_OpenRejectsOverCapital(t *testing.T) {
	l := NewLedger(50, 0)
	assert.Error(t, l.Open(ledgerPos("a", 60)))
	assert.Equal(t, 50.0, l.Capital())
}

func TestLedger_LossStreakResetsOnWin(t *testing.T) {
	l := NewLedger(1000, 0)
	for i, v := range []float64{50, 90, 150} {
		pos := ledgerPos(string(rune('a'+i)), 100)
		require.NoError(t, l.Open(pos))
		pos.CurrentValue = v
		l.Close(0, l0, 100, domain.ExitTimeout)
		if i == 1 {
			assert.Equal(t, 2, l.ConsecutiveLosses())
		}
	}
	assert.Equal(t, 0, l.ConsecutiveLosses())
}

func TestLedger_ClosesHedgesWithParent(t *testing.T) {
	l := NewLedger(1000, 0)
	pos := ledgerPos("a", 100)
	require.NoError(t, l.Open(pos))

	h := &domain.HedgePosition{
		ID:         "h1",
		ParentID:   "a",
		Direction:  domain.HedgeShort,
		EntryTime:  l0,
		EntryPrice: 100,
		SizeRatio:  0.2,
		Active:     true,
	}
	pos.Hedges = append(pos.Hedges, h)
	l.RecordHedge(pos, h)
	assert.Equal(t, 1, l.ActiveHedges())

	snap := l.Snapshot(l0)
	assert.Equal(t, 1, snap.ActiveHedges)
	assert.Equal(t, 1, snap.OpenPositions)

	tr := l.Close(0, l0.Add(time.Hour), 90, domain.ExitTimeout)
	assert.Equal(t, 1, tr.HedgeCount)
	assert.False(t, h.Active)
	assert.Equal(t, 0, l.ActiveHedges())

	// short con caída del 10% y tamaño 0.2 → +2%
	events := l.Hedges()
	require.Len(t, events, 1)
	assert.InDelta(t, 2.0, events[0].ReturnPct, 1e-9)
	assert.Equal(t, 1000.0, l.Capital(), "hedges never move capital")
}
