package api

import (
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// BacktestRequest es el cuerpo de POST /api/v1/backtests.
type BacktestRequest struct {
	Profile       string             `json:"profile"`
	Label         string             `json:"label"`
	Overrides     map[string]float64 `json:"overrides"`
	IncludeTrades bool               `json:"include_trades"`
}

// BacktestResponse resume un run recién ejecutado.
type BacktestResponse struct {
	ID            string                `json:"id"`
	Stored        bool                  `json:"stored"`
	Profile       string                `json:"profile"`
	Symbol        string                `json:"symbol"`
	Window        TimeWindow            `json:"window"`
	BarsProcessed int                   `json:"bars_processed"`
	Params        domain.StrategyParams `json:"params"`
	Metrics       domain.Metrics        `json:"metrics"`
	Halt          domain.Halt           `json:"halt"`
	Warnings      []string              `json:"warnings,omitempty"`
	Trades        []domain.TradeResult  `json:"trades,omitempty"`
}

// TimeWindow es el tramo simulado.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RunsResponse es la respuesta de GET /api/v1/runs.
type RunsResponse struct {
	Runs  []domain.RunSummary `json:"runs"`
	Count int                 `json:"count"`
}

// ErrorResponse es el formato común de error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contiene la información del error.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func newBacktestResponse(rec domain.RunRecord, stored, withTrades bool) BacktestResponse {
	res := rec.Result
	out := BacktestResponse{
		ID:            rec.ID,
		Stored:        stored,
		Profile:       rec.Profile,
		Symbol:        rec.Symbol,
		Window:        TimeWindow{Start: res.FirstBar, End: res.LastBar},
		BarsProcessed: res.BarsProcessed,
		Params:        res.Params,
		Metrics:       res.Metrics,
		Halt:          res.Halt,
		Warnings:      res.Warnings,
	}
	if withTrades {
		out.Trades = res.Trades
	}
	return out
}
