package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams_AreValid(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Empty(t, p.Warnings())
	assert.InDelta(t, 120.0, p.MaxRiskPerTrade(), 1e-9)
	assert.InDelta(t, 30.0, p.TakeProfitPct(), 1e-9)
	assert.InDelta(t, -60.0, p.StopLossPct(), 1e-9)
}

func TestValidate_ListsEveryProblem(t *testing.T) {
	p := DefaultParams()
	p.TakeProfitMultiplier = 0.5
	p.StopLossMultiplier = 0.6
	p.RiskPerTrade = 0.2
	p.MaxPositions = 0

	err := p.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 3)
	assert.Contains(t, err.Error(), "take_profit_multiplier")
	assert.Contains(t, err.Error(), "risk_per_trade")
	assert.Contains(t, err.Error(), "max_positions")
}

func TestValidate_RiskBounds(t *testing.T) {
	p := DefaultParams()

	p.RiskPerTrade = 0.1
	assert.NoError(t, p.Validate())

	p.RiskPerTrade = 0
	assert.Error(t, p.Validate())

	p.RiskPerTrade = -0.01
	assert.Error(t, p.Validate())
}

func TestValidate_EqualMultipliersRejected(t *testing.T) {
	p := DefaultParams()
	p.TakeProfitMultiplier = 0.6
	p.StopLossMultiplier = 0.6
	assert.Error(t, p.Validate())
}

func TestWarnings(t *testing.T) {
	p := DefaultParams()
	p.VolatilityThreshold = 20
	p.MaxHedgeRatio = 0.6
	p.RiskPerTrade = 0.08

	w := p.Warnings()
	require.Len(t, w, 3)
	assert.Contains(t, w[0], "volatility_threshold")
	assert.Contains(t, w[1], "max_hedge_ratio")
	assert.Contains(t, w[2], "risk_per_trade")
}

func TestBarCheck(t *testing.T) {
	ok := Bar{Close: 100, High: 101, Low: 99, Volatility: 0.5}
	assert.Empty(t, ok.Check())

	bad := ok
	bad.Close = 0
	assert.NotEmpty(t, bad.Check())

	bad = ok
	bad.High = 98
	assert.NotEmpty(t, bad.Check())

	bad = ok
	bad.Volatility = -1
	assert.NotEmpty(t, bad.Check())
}
