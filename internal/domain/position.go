package domain

import (
	"math"
	"time"
)

// Confidence is the qualitative tier of an entry signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// HedgeDirection is the side of a directional hedge.
type HedgeDirection string

const (
	HedgeLong  HedgeDirection = "LONG"
	HedgeShort HedgeDirection = "SHORT"
	HedgeNone  HedgeDirection = "NONE"
)

// Urgency grades how far price has drifted when a hedge is recommended.
type Urgency string

const (
	UrgencyHigh   Urgency = "HIGH"
	UrgencyMedium Urgency = "MEDIUM"
)

// Position is an open long straddle.
type Position struct {
	ID              string
	EntryTime       time.Time
	ExpiryTime      time.Time
	EntryPrice      float64
	Strike          float64 // igual al spot de entrada
	EntryVolatility float64
	Contracts       int
	PremiumPaid     float64 // pérdida máxima de la posición
	CurrentValue    float64 // valor de modelo, se actualiza cada barra
	UnrealizedPnL   float64
	PnLPct          float64
	Confidence      Confidence
	SignalQuality   float64
	Hedges          []*HedgePosition
}

// Revalue marks the position to the given quote. CurrentValue is never negative.
func (p *Position) Revalue(q StraddleQuote) {
	p.CurrentValue = math.Max(0, q.Straddle*float64(p.Contracts))
	p.UnrealizedPnL = p.CurrentValue - p.PremiumPaid
	if p.PremiumPaid > 0 {
		p.PnLPct = p.UnrealizedPnL / p.PremiumPaid * 100
	} else {
		p.PnLPct = 0
	}
}

// HasActiveHedge reports whether one of the position's hedges is still open.
func (p *Position) HasActiveHedge() bool {
	for _, h := range p.Hedges {
		if h.Active {
			return true
		}
	}
	return false
}

// HoursHeld returns the elapsed holding time at t.
func (p *Position) HoursHeld(t time.Time) float64 {
	return t.Sub(p.EntryTime).Hours()
}

// YearsToExpiry returns the remaining life at t in years (may be negative).
func (p *Position) YearsToExpiry(t time.Time) float64 {
	return HoursToYears(p.ExpiryTime.Sub(t).Hours())
}

// MinRevalueYears floors the time to expiry used to mark an open position.
const MinRevalueYears = 0.001

// RevalueYears is YearsToExpiry floored at MinRevalueYears. Every mark of an
// open position uses it, whether the position is managed or force-closed.
func (p *Position) RevalueYears(t time.Time) float64 {
	return math.Max(MinRevalueYears, p.YearsToExpiry(t))
}

// HedgePosition is an advisory directional hedge attached to a straddle.
// It never moves capital; its result is only reported.
type HedgePosition struct {
	ID         string
	ParentID   string
	Direction  HedgeDirection
	EntryTime  time.Time
	EntryPrice float64
	SizeRatio  float64 // fracción del nocional
	Reason     string
	Urgency    Urgency
	Active     bool
	ClosedAt   *time.Time
	ExitPrice  float64
}

// Close marks the hedge inactive at the parent's exit.
func (h *HedgePosition) Close(t time.Time, price float64) {
	if !h.Active {
		return
	}
	h.Active = false
	h.ClosedAt = &t
	h.ExitPrice = price
}

// ReturnPct is the hedge's notional return in percent, scaled by its size ratio.
// It is 0 while the hedge is open.
func (h *HedgePosition) ReturnPct() float64 {
	if h.Active || h.EntryPrice <= 0 {
		return 0
	}
	move := (h.ExitPrice - h.EntryPrice) / h.EntryPrice
	if h.Direction == HedgeShort {
		move = -move
	}
	return move * h.SizeRatio * 100
}
