package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Metrics is the summary of one backtest.
//
// SharpeLike is mean/stdev of per-trade pnl%. It is not annualised and ignores
// holding time, so it only ranks runs against each other.
type Metrics struct {
	TotalTrades          int                `json:"total_trades"`
	Wins                 int                `json:"wins"`
	Losses               int                `json:"losses"`
	WinRate              float64            `json:"win_rate"` // fracción en [0,1]
	AvgPnLPct            float64            `json:"avg_pnl_pct"`
	BestPnLPct           float64            `json:"best_pnl_pct"`
	WorstPnLPct          float64            `json:"worst_pnl_pct"`
	AvgWinPct            float64            `json:"avg_win_pct"`
	AvgLossPct           float64            `json:"avg_loss_pct"`
	GrossProfit          float64            `json:"gross_profit"`
	GrossLoss            float64            `json:"gross_loss"`
	ProfitFactor         float64            `json:"profit_factor"` // +Inf sin pérdidas
	SharpeLike           float64            `json:"sharpe_like"`
	MaxDrawdownPct       float64            `json:"max_drawdown_pct"` // <= 0
	FinalCapital         float64            `json:"final_capital"`
	TotalReturnPct       float64            `json:"total_return_pct"`
	TotalCommission      float64            `json:"total_commission"`
	AvgHoldingHours      float64            `json:"avg_holding_hours"`
	MaxConsecutiveLosses int                `json:"max_consecutive_losses"`
	ExitBreakdown        map[ExitReason]int `json:"exit_breakdown"`
	Hedges               HedgeSummary       `json:"hedges"`
}

// HedgeSummary aggregates the advisory hedge records of a run.
type HedgeSummary struct {
	Total          int                    `json:"total"`
	ByUrgency      map[Urgency]int        `json:"by_urgency"`
	ByDirection    map[HedgeDirection]int `json:"by_direction"`
	AvgSizeRatio   float64                `json:"avg_size_ratio"`
	DaysWithHedges int                    `json:"days_with_hedges"`
	MaxPerDay      int                    `json:"max_per_day"`
	HedgedTrades   int                    `json:"hedged_trades"`
	AvgReturnPct   float64                `json:"avg_return_pct"`
}

// MarshalJSON encodes an infinite profit factor as null; encoding/json rejects Inf.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	out := struct {
		plain
		ProfitFactor *float64 `json:"profit_factor"`
	}{plain: plain(m)}
	if !math.IsInf(m.ProfitFactor, 0) && !math.IsNaN(m.ProfitFactor) {
		pf := m.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a null profit factor as +Inf.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	type plain Metrics
	in := struct {
		*plain
		ProfitFactor *float64 `json:"profit_factor"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.ProfitFactor != nil {
		m.ProfitFactor = *in.ProfitFactor
	} else if m.Wins > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	return nil
}

// ComputeMetrics summarises trades and the equity curve of a run.
func ComputeMetrics(trades []TradeResult, curve []EquitySnapshot, hedges []HedgeEvent, initialCapital float64) Metrics {
	m := Metrics{
		TotalTrades:   len(trades),
		FinalCapital:  initialCapital,
		ExitBreakdown: make(map[ExitReason]int),
	}

	if n := len(curve); n > 0 {
		m.FinalCapital = curve[n-1].TotalValue
	}
	if initialCapital > 0 {
		m.TotalReturnPct = (m.FinalCapital - initialCapital) / initialCapital * 100
	}
	m.MaxDrawdownPct = MaxDrawdownPct(curve)
	m.Hedges = summarizeHedges(hedges, trades)

	if len(trades) == 0 {
		return m
	}

	pcts := make([]float64, len(trades))
	var sumWinPct, sumLossPct, sumHours float64
	streak := 0
	m.BestPnLPct = math.Inf(-1)
	m.WorstPnLPct = math.Inf(1)

	for i, t := range trades {
		pcts[i] = t.PnLPct
		m.ExitBreakdown[t.ExitReason]++
		m.TotalCommission += t.Commission
		sumHours += t.HoldingHours
		m.BestPnLPct = math.Max(m.BestPnLPct, t.PnLPct)
		m.WorstPnLPct = math.Min(m.WorstPnLPct, t.PnLPct)

		if t.PnL > 0 {
			m.Wins++
			m.GrossProfit += t.PnL
			sumWinPct += t.PnLPct
			streak = 0
		} else {
			m.Losses++
			m.GrossLoss += math.Abs(t.PnL)
			sumLossPct += t.PnLPct
			streak++
			m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, streak)
		}
	}

	n := float64(len(trades))
	m.WinRate = float64(m.Wins) / n
	m.AvgPnLPct = mean(pcts)
	m.AvgHoldingHours = sumHours / n
	if m.Wins > 0 {
		m.AvgWinPct = sumWinPct / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossPct = sumLossPct / float64(m.Losses)
	}

	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	case m.GrossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	}

	if len(pcts) > 1 {
		if sd := stddev(pcts); sd > 0 {
			m.SharpeLike = m.AvgPnLPct / sd
		}
	}

	return m
}

// MaxDrawdownPct returns the deepest peak-to-trough decline of the curve in percent (<= 0).
func MaxDrawdownPct(curve []EquitySnapshot) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, s := range curve {
		if s.TotalValue > peak {
			peak = s.TotalValue
		}
		if peak > 0 {
			worst = math.Min(worst, (s.TotalValue-peak)/peak*100)
		}
	}
	return worst
}

func summarizeHedges(hedges []HedgeEvent, trades []TradeResult) HedgeSummary {
	s := HedgeSummary{
		Total:       len(hedges),
		ByUrgency:   make(map[Urgency]int),
		ByDirection: make(map[HedgeDirection]int),
	}
	for _, t := range trades {
		if t.HedgeCount > 0 {
			s.HedgedTrades++
		}
	}
	if len(hedges) == 0 {
		return s
	}

	perDay := make(map[time.Time]int)
	var sumSize, sumRet float64
	for _, h := range hedges {
		s.ByUrgency[h.Urgency]++
		s.ByDirection[h.Direction]++
		sumSize += h.SizeRatio
		sumRet += h.ReturnPct
		day := h.Timestamp.UTC().Truncate(24 * time.Hour)
		perDay[day]++
	}
	s.AvgSizeRatio = sumSize / float64(len(hedges))
	s.AvgReturnPct = sumRet / float64(len(hedges))
	s.DaysWithHedges = len(perDay)
	for _, c := range perDay {
		s.MaxPerDay = max(s.MaxPerDay, c)
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev es la desviación poblacional.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
