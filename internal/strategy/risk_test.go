package strategy_test

import (
	"testing"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/strategy"
	"github.com/stretchr/testify/assert"
)

func TestGovernor_ShouldHalt(t *testing.T) {
	g := strategy.NewGovernor(domain.DefaultParams())

	halt, reason := g.ShouldHalt(10000, 0)
	assert.False(t, halt)
	assert.Empty(t, reason)

	halt, reason = g.ShouldHalt(10000, 3)
	assert.True(t, halt)
	assert.Contains(t, reason, "consecutive losses")

	halt, _ = g.ShouldHalt(9600, 2)
	assert.False(t, halt, "4% loss is under the 5% limit")

	halt, reason = g.ShouldHalt(9400, 0)
	assert.True(t, halt)
	assert.Contains(t, reason, "max loss")
}

func TestGovernor_InsufficientCapital(t *testing.T) {
	p := domain.DefaultParams()
	p.MaxDailyLoss = 1
	g := strategy.NewGovernor(p)

	halt, reason := g.ShouldHalt(239, 0)
	assert.True(t, halt)
	assert.Contains(t, reason, "insufficient capital")

	halt, _ = g.ShouldHalt(241, 0)
	assert.False(t, halt)
}
