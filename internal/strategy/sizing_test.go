package strategy_test

import (
	"math"
	"testing"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/strategy"
	"github.com/stretchr/testify/assert"
)

// sizingParams da un presupuesto por trade de 200.
func sizingParams() domain.StrategyParams {
	p := domain.DefaultParams()
	p.RiskPerTrade = 0.02
	return p
}

func TestSizer_Size(t *testing.T) {
	s := strategy.NewSizer(sizingParams())

	tests := []struct {
		name    string
		price   float64
		quality float64
		losses  int
		want    int
	}{
		{"base", 50, 0.5, 0, 4},
		{"high quality rounds down", 50, 0.9, 0, 4},
		{"high quality capped by risk budget", 20, 0.9, 0, 10},
		{"after two losses", 50, 0.9, 2, 2},
		{"clamped to max contracts", 1, 0.5, 0, 20},
		{"never below one", 500, 0.5, 0, 1},
		{"halved to zero floors to one", 150, 0.5, 3, 1},
		{"invalid price", 0, 0.5, 0, 1},
		{"nan price", math.NaN(), 0.5, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Size(tc.price, tc.quality, tc.losses))
		})
	}
}

func TestSizer_PremiumWithinBudget(t *testing.T) {
	p := domain.DefaultParams()
	s := strategy.NewSizer(p)

	for _, price := range []float64{1, 7.3, 18.24, 33, 59.9, 119} {
		for _, quality := range []float64{0.5, 0.8, 0.86, 0.9, 1} {
			n := s.Size(price, quality, 0)
			assert.LessOrEqual(t, price*float64(n), p.MaxRiskPerTrade(), "price %.2f quality %.2f", price, quality)
			assert.True(t, s.Affordable(price*float64(n), p.InitialCapital), "price %.2f quality %.2f", price, quality)
		}
	}

	// el tamaño con calidad alta nunca baja del de calidad media
	assert.Equal(t, s.Size(18.24, 0.8, 0), s.Size(18.24, 0.9, 0))
}

func TestSizer_NonAdaptive(t *testing.T) {
	p := sizingParams()
	p.AdaptiveSizing = false
	s := strategy.NewSizer(p)

	assert.Equal(t, 10, s.Size(20, 0.95, 0))
	assert.Equal(t, 10, s.Size(20, 0.5, 5))
}

func TestSizer_Affordable(t *testing.T) {
	s := strategy.NewSizer(sizingParams())

	assert.True(t, s.Affordable(200, 10000))
	assert.False(t, s.Affordable(201, 10000), "over risk budget")
	assert.False(t, s.Affordable(150, 100), "over capital")
}
