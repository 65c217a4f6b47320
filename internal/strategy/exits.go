package strategy

import (
	"math"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Action es el resultado de gestionar una posición: HOLD o un motivo de salida.
type Action string

// ActionHold mantiene la posición abierta.
const ActionHold Action = "HOLD"

// ExitAction convierte un motivo de salida en Action.
func ExitAction(r domain.ExitReason) Action { return Action(r) }

// IsExit indica si la acción cierra la posición.
func (a Action) IsExit() bool { return a != ActionHold && a != "" }

// Reason devuelve el motivo de salida; vacío para HOLD.
func (a Action) Reason() domain.ExitReason {
	if !a.IsExit() {
		return ""
	}
	return domain.ExitReason(a)
}

// ExitInfo describe la evaluación que produjo la acción.
type ExitInfo struct {
	Reason       string
	PnLPct       float64
	HoldingHours float64
	Threshold    float64
	TimeToExpiry float64 // años
	VolRatio     float64
}

// Manager aplica las reglas de salida en orden fijo; la primera que se cumple gana.
type Manager struct {
	p      domain.StrategyParams
	hedges *HedgeEngine
}

// NewManager crea un Manager con su propio HedgeEngine.
func NewManager(p domain.StrategyParams) *Manager {
	return &Manager{p: p, hedges: NewHedgeEngine(p)}
}

// Manage revaloriza pos en t y decide si se cierra.
// Si se abre una cobertura devuelve la decisión; la cobertura queda registrada en pos.Hedges.
func (m *Manager) Manage(pos *domain.Position, price float64, t time.Time, vol float64, consecutiveLosses int) (Action, ExitInfo, *HedgeDecision) {
	p := m.p

	tte := pos.RevalueYears(t)
	q := domain.PriceStraddle(price, pos.Strike, vol, tte, p.InterestRate, p.MinVolatility, p.MaxVolatility)
	pos.Revalue(q)

	info := ExitInfo{
		PnLPct:       pos.PnLPct,
		HoldingHours: pos.HoursHeld(t),
		TimeToExpiry: tte,
		VolRatio:     math.NaN(),
	}
	if pos.EntryVolatility > 0 {
		info.VolRatio = vol / pos.EntryVolatility
	}

	var opened *HedgeDecision
	if d := m.hedges.Decide(pos, price, vol); d.Recommended {
		m.hedges.Open(pos, d, t, price)
		opened = &d
	}

	if tp := p.TakeProfitPct(); pos.PnLPct >= tp {
		info.Threshold = tp
		info.Reason = "take profit"
		return ExitAction(domain.ExitTakeProfit), info, opened
	}

	if sl := m.stopLoss(q, consecutiveLosses); pos.PnLPct <= sl {
		info.Threshold = sl
		info.Reason = "stop loss"
		return ExitAction(domain.ExitStopLoss), info, opened
	}

	if tte < p.MinTimeToExpiry && pos.PnLPct < p.TimeDecayLossPct {
		info.Threshold = p.TimeDecayLossPct
		info.Reason = "time decay near expiry"
		return ExitAction(domain.ExitTimeDecay), info, opened
	}

	timeout := p.TradeTimeoutHours
	if pos.Confidence == domain.ConfidenceHigh {
		timeout *= p.HighConfidenceTimeoutMult
	}
	if info.HoldingHours >= timeout {
		info.Threshold = timeout
		info.Reason = "timeout"
		return ExitAction(domain.ExitTimeout), info, opened
	}

	if info.VolRatio < p.VolCollapseRatio {
		info.Threshold = p.VolCollapseRatio
		info.Reason = "volatility collapse"
		return ExitAction(domain.ExitVolCollapse), info, opened
	}

	return ActionHold, info, opened
}

// stopLoss devuelve el umbral (negativo) de stop, apretado si el valor temporal
// ya es poco o si venimos de pérdidas.
func (m *Manager) stopLoss(q domain.StraddleQuote, consecutiveLosses int) float64 {
	sl := m.p.StopLossPct()
	if !m.p.DynamicStopLoss {
		return sl
	}
	if q.TimeValueShare() < 0.3 {
		sl *= 0.8
	}
	if consecutiveLosses >= 2 {
		sl *= 0.7
	}
	return sl
}
