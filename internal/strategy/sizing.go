package strategy

import (
	"math"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Sizer calcula el número de contratos de una entrada.
type Sizer struct {
	p domain.StrategyParams
}

// NewSizer crea un Sizer.
func NewSizer(p domain.StrategyParams) *Sizer {
	return &Sizer{p: p}
}

// Size devuelve los contratos para un straddle de precio unitario price.
// El resultado está siempre en [1, MaxContracts] y, salvo con un solo
// contrato, su prima cabe en MaxRiskPerTrade. Un precio no válido da 1 y
// la comprobación de presupuesto (Affordable) decide si se entra.
func (s *Sizer) Size(price, quality float64, consecutiveLosses int) int {
	if !(price > 0) || math.IsInf(price, 0) {
		return 1
	}

	budget := math.Floor(s.p.MaxRiskPerTrade() / price)
	contracts := budget
	if s.p.AdaptiveSizing {
		switch {
		case consecutiveLosses >= 2:
			contracts *= 0.5
		case quality > s.p.HighQualitySizeUp:
			contracts *= 1.2
		}
		// el aumento por calidad nunca supera el riesgo por trade
		contracts = math.Min(math.Floor(contracts), budget)
	}

	n := int(math.Min(contracts, float64(s.p.MaxContracts)))
	return max(1, n)
}

// Affordable indica si una prima total cabe en el capital y en el riesgo por trade.
// Una entrada que no cabe se descarta; no se redimensiona.
func (s *Sizer) Affordable(premium, capital float64) bool {
	return premium <= capital && premium <= s.p.MaxRiskPerTrade()
}
