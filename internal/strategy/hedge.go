package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// HedgeDecision es la recomendación de cobertura para una posición.
type HedgeDecision struct {
	Recommended bool
	Direction   domain.HedgeDirection
	SizeRatio   float64
	Urgency     domain.Urgency
	Reason      string
	Move        float64 // (precio − entrada) / entrada
	VolChange   float64
}

// HedgeEngine decide coberturas direccionales. Son solo informativas:
// se registran en la posición pero nunca mueven capital.
type HedgeEngine struct {
	p domain.StrategyParams
}

// NewHedgeEngine crea un HedgeEngine.
func NewHedgeEngine(p domain.StrategyParams) *HedgeEngine {
	return &HedgeEngine{p: p}
}

// Decide evalúa si pos necesita cobertura al precio y volatilidad actuales.
func (h *HedgeEngine) Decide(pos *domain.Position, price, vol float64) HedgeDecision {
	none := HedgeDecision{Direction: domain.HedgeNone}
	if !h.p.EnableHedging || pos == nil || pos.EntryPrice <= 0 {
		return none
	}
	if pos.HasActiveHedge() {
		none.Reason = "hedge already active"
		return none
	}

	move := (price - pos.EntryPrice) / pos.EntryPrice
	none.Move = move
	if math.IsNaN(move) || math.Abs(move) < h.p.HedgeThreshold {
		return none
	}

	d := HedgeDecision{
		Recommended: true,
		Direction:   domain.HedgeLong,
		SizeRatio:   math.Min(h.p.MaxHedgeRatio, math.Abs(move)*2),
		Urgency:     domain.UrgencyMedium,
		Move:        move,
	}
	if move > 0 {
		d.Direction = domain.HedgeShort
	}

	if pos.EntryVolatility > 0 && !math.IsNaN(vol) {
		d.VolChange = (vol - pos.EntryVolatility) / pos.EntryVolatility
		if h.p.VolatilityHedge && d.VolChange < h.p.VolDropHedgeTrigger {
			d.SizeRatio = math.Min(h.p.MaxHedgeRatio, d.SizeRatio*h.p.VolDropHedgeBoost)
		}
	}

	if math.Abs(move) > h.p.HedgeHighUrgencyMove {
		d.Urgency = domain.UrgencyHigh
	}
	d.Reason = fmt.Sprintf("move %+.1f%%, vol change %+.1f%%", move*100, d.VolChange*100)
	return d
}

// Open registra la cobertura recomendada en pos y la devuelve.
// Devuelve nil si la decisión no es una recomendación.
func (h *HedgeEngine) Open(pos *domain.Position, d HedgeDecision, t time.Time, price float64) *domain.HedgePosition {
	if !d.Recommended || pos == nil {
		return nil
	}
	hp := &domain.HedgePosition{
		ID:         hedgeID(pos.ID, len(pos.Hedges)),
		ParentID:   pos.ID,
		Direction:  d.Direction,
		EntryTime:  t,
		EntryPrice: price,
		SizeRatio:  d.SizeRatio,
		Reason:     d.Reason,
		Urgency:    d.Urgency,
		Active:     true,
	}
	pos.Hedges = append(pos.Hedges, hp)
	return hp
}

// hedgeID es determinista: mismo padre y ordinal, mismo ID.
func hedgeID(parentID string, n int) string {
	ns, err := uuid.Parse(parentID)
	if err != nil {
		ns = uuid.NameSpaceOID
	}
	return uuid.NewSHA1(ns, fmt.Appendf(nil, "%s/hedge/%d", parentID, n)).String()
}
