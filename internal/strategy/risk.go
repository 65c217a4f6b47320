package strategy

import (
	"fmt"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Governor detiene la operativa cuando se rompen los límites de riesgo.
type Governor struct {
	p domain.StrategyParams
}

// NewGovernor crea un Governor.
func NewGovernor(p domain.StrategyParams) *Governor {
	return &Governor{p: p}
}

// ShouldHalt devuelve true y el motivo si hay que parar el backtest.
func (g *Governor) ShouldHalt(capital float64, consecutiveLosses int) (bool, string) {
	if consecutiveLosses >= g.p.MaxConsecutiveLosses {
		return true, fmt.Sprintf("max consecutive losses reached (%d)", consecutiveLosses)
	}

	initial := g.p.InitialCapital
	if initial > 0 {
		if loss := (initial - capital) / initial; loss > g.p.MaxDailyLoss {
			return true, fmt.Sprintf("max loss exceeded (%.2f%% > %.2f%%)", loss*100, g.p.MaxDailyLoss*100)
		}
	}

	if minCapital := 2 * g.p.MaxRiskPerTrade(); capital < minCapital {
		return true, fmt.Sprintf("insufficient capital (%.2f < %.2f)", capital, minCapital)
	}
	return false, ""
}
