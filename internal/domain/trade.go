package domain

import "time"

// ExitReason is the closed set of ways a straddle leaves the book.
type ExitReason string

const (
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitTimeDecay   ExitReason = "TIME_DECAY"
	ExitTimeout     ExitReason = "TIMEOUT"
	ExitVolCollapse ExitReason = "VOL_COLLAPSE"
	ExitBacktestEnd ExitReason = "BACKTEST_END"
)

// ExitReasons lists every reason in evaluation order, BACKTEST_END last.
var ExitReasons = []ExitReason{
	ExitTakeProfit, ExitStopLoss, ExitTimeDecay, ExitTimeout, ExitVolCollapse, ExitBacktestEnd,
}

// Valid reports whether r is one of the known reasons.
func (r ExitReason) Valid() bool {
	for _, known := range ExitReasons {
		if r == known {
			return true
		}
	}
	return false
}

func (r ExitReason) String() string { return string(r) }

// TradeResult es el registro inmutable de una posición cerrada.
type TradeResult struct {
	PositionID   string     `json:"position_id"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     time.Time  `json:"exit_time"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	Strike       float64    `json:"strike"`
	PremiumPaid  float64    `json:"premium_paid"`
	ExitValue    float64    `json:"exit_value"`
	Commission   float64    `json:"commission"`
	PnL          float64    `json:"pnl"`     // neto de comisión
	PnLPct       float64    `json:"pnl_pct"` // sobre la prima pagada
	Contracts    int        `json:"contracts"`
	ExitReason   ExitReason `json:"exit_reason"`
	Confidence   Confidence `json:"confidence"`
	HoldingHours float64    `json:"holding_hours"`
	HedgeCount   int        `json:"hedge_count"`
}

// Credited is the amount returned to capital when the trade closed.
func (t TradeResult) Credited() float64 {
	return t.ExitValue - t.Commission
}

// EquitySnapshot is one point of the equity curve.
type EquitySnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Capital        float64   `json:"capital"`
	PositionsValue float64   `json:"positions_value"`
	TotalValue     float64   `json:"total_value"`
	TotalPnL       float64   `json:"total_pnl"`
	OpenPositions  int       `json:"open_positions"`
	ActiveHedges   int       `json:"active_hedges"`
}

// HedgeEvent is the audit record of a hedge recommendation that was acted on.
type HedgeEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	PositionID string         `json:"position_id"`
	HedgeID    string         `json:"hedge_id"`
	Direction  HedgeDirection `json:"direction"`
	SizeRatio  float64        `json:"size_ratio"`
	Price      float64        `json:"price"`
	Reason     string         `json:"reason"`
	Urgency    Urgency        `json:"urgency"`
	ReturnPct  float64        `json:"return_pct"` // se completa al cerrar la posición madre
}

// Halt records why and when the risk governor stopped a run.
type Halt struct {
	Halted    bool      `json:"halted"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// BacktestResult is everything one run produces.
type BacktestResult struct {
	RunID         string           `json:"run_id"`
	Params        StrategyParams   `json:"params"`
	Trades        []TradeResult    `json:"trades"`
	EquityCurve   []EquitySnapshot `json:"equity_curve"`
	HedgeEvents   []HedgeEvent     `json:"hedge_events"`
	Halt          Halt             `json:"halt"`
	Metrics       Metrics          `json:"metrics"`
	Warnings      []string         `json:"warnings,omitempty"`
	BarsProcessed int              `json:"bars_processed"`
	FirstBar      time.Time        `json:"first_bar"`
	LastBar       time.Time        `json:"last_bar"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// RunRecord is a persisted backtest with its labels.
type RunRecord struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Profile string          `json:"profile"`
	Symbol  string          `json:"symbol"`
	Result  *BacktestResult `json:"result"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Profile     string    `json:"profile"`
	Symbol      string    `json:"symbol"`
	StartedAt   time.Time `json:"started_at"`
	TotalTrades int       `json:"total_trades"`
	TotalReturn float64   `json:"total_return_pct"`
	SharpeLike  float64   `json:"sharpe_like"`
	MaxDrawdown float64   `json:"max_drawdown_pct"`
	Halted      bool      `json:"halted"`
}
