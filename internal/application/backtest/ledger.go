package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Ledger es el único que escribe el capital. Guarda las posiciones abiertas,
// las coberturas registradas y la racha de pérdidas.
type Ledger struct {
	initial        float64
	capital        float64
	commissionRate float64

	positions []*domain.Position
	hedges    []domain.HedgeEvent
	hedgeIdx  map[string]int // hedge ID → índice en hedges

	consecutiveLosses int
	debited           float64 // Σ primas
	credited          float64 // Σ (valor de salida − comisión)
}

// NewLedger crea un Ledger con el capital inicial y la comisión por lado.
func NewLedger(initial, commissionRate float64) *Ledger {
	return &Ledger{
		initial:        initial,
		capital:        initial,
		commissionRate: commissionRate,
		hedgeIdx:       make(map[string]int),
	}
}

// Open adeuda la prima de pos y la añade al libro.
func (l *Ledger) Open(pos *domain.Position) error {
	if pos.PremiumPaid > l.capital {
		return fmt.Errorf("ledger.Open: premium %.2f exceeds capital %.2f", pos.PremiumPaid, l.capital)
	}
	l.capital -= pos.PremiumPaid
	l.debited += pos.PremiumPaid
	l.positions = append(l.positions, pos)
	return nil
}

// RecordHedge registra una cobertura abierta sobre pos. No mueve capital.
func (l *Ledger) RecordHedge(pos *domain.Position, h *domain.HedgePosition) {
	l.hedgeIdx[h.ID] = len(l.hedges)
	l.hedges = append(l.hedges, domain.HedgeEvent{
		Timestamp:  h.EntryTime,
		PositionID: pos.ID,
		HedgeID:    h.ID,
		Direction:  h.Direction,
		SizeRatio:  h.SizeRatio,
		Price:      h.EntryPrice,
		Reason:     h.Reason,
		Urgency:    h.Urgency,
	})
}

// Close cierra la posición i a su valor actual (ya revalorizado) y
// devuelve el trade. Las coberturas activas se cierran al mismo precio.
func (l *Ledger) Close(i int, t time.Time, price float64, reason domain.ExitReason) domain.TradeResult {
	pos := l.positions[i]
	l.positions = append(l.positions[:i], l.positions[i+1:]...)

	exitValue := math.Max(0, pos.CurrentValue)
	commission := math.Min(2*l.commissionRate*pos.PremiumPaid, exitValue)
	pnl := exitValue - commission - pos.PremiumPaid

	l.capital += exitValue - commission
	l.credited += exitValue - commission

	if pnl > 0 {
		l.consecutiveLosses = 0
	} else {
		l.consecutiveLosses++
	}

	for _, h := range pos.Hedges {
		if !h.Active {
			continue
		}
		h.Close(t, price)
		if idx, ok := l.hedgeIdx[h.ID]; ok {
			l.hedges[idx].ReturnPct = h.ReturnPct()
		}
	}

	pnlPct := 0.0
	if pos.PremiumPaid > 0 {
		pnlPct = pnl / pos.PremiumPaid * 100
	}

	return domain.TradeResult{
		PositionID:   pos.ID,
		EntryTime:    pos.EntryTime,
		ExitTime:     t,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    price,
		Strike:       pos.Strike,
		PremiumPaid:  pos.PremiumPaid,
		ExitValue:    exitValue,
		Commission:   commission,
		PnL:          pnl,
		PnLPct:       pnlPct,
		Contracts:    pos.Contracts,
		ExitReason:   reason,
		Confidence:   pos.Confidence,
		HoldingHours: pos.HoursHeld(t),
		HedgeCount:   len(pos.Hedges),
	}
}

// Positions devuelve las posiciones abiertas. El slice es del Ledger; no modificar.
func (l *Ledger) Positions() []*domain.Position { return l.positions }

// Capital is the cash not tied up in open premiums.
func (l *Ledger) Capital() float64 { return l.capital }

// ConsecutiveLosses is the current streak of non-positive trades.
func (l *Ledger) ConsecutiveLosses() int { return l.consecutiveLosses }

// Debited is the sum of every premium paid.
func (l *Ledger) Debited() float64 { return l.debited }

// Credited is the sum of every exit value net of commission.
func (l *Ledger) Credited() float64 { return l.credited }

// Hedges devuelve una copia de los eventos de cobertura.
func (l *Ledger) Hedges() []domain.HedgeEvent {
	return append([]domain.HedgeEvent(nil), l.hedges...)
}

// PositionsValue suma el valor de modelo de las posiciones abiertas.
func (l *Ledger) PositionsValue() float64 {
	total := 0.0
	for _, p := range l.positions {
		total += p.CurrentValue
	}
	return total
}

// ActiveHedges cuenta las coberturas abiertas.
func (l *Ledger) ActiveHedges() int {
	n := 0
	for _, p := range l.positions {
		for _, h := range p.Hedges {
			if h.Active {
				n++
			}
		}
	}
	return n
}

// Snapshot toma un punto de la curva de equity en t.
func (l *Ledger) Snapshot(t time.Time) domain.EquitySnapshot {
	pv := l.PositionsValue()
	return domain.EquitySnapshot{
		Timestamp:      t,
		Capital:        l.capital,
		PositionsValue: pv,
		TotalValue:     l.capital + pv,
		TotalPnL:       l.capital + pv - l.initial,
		OpenPositions:  len(l.positions),
		ActiveHedges:   l.ActiveHedges(),
	}
}
