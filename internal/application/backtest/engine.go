package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/strategy"
)

// positionNamespace deriva IDs de posición reproducibles a partir del run ID.
var positionNamespace = uuid.MustParse("7d1c2f8e-3b0a-5e7c-9a41-2f6d8b3c5e10")

// Option configura un Engine.
type Option func(*Engine)

// WithSignal reemplaza el evaluador de entradas por defecto.
func WithSignal(s strategy.Signal) Option {
	return func(e *Engine) { e.signal = s }
}

// WithClock fija el reloj usado para StartedAt/FinishedAt.
// No interviene en ninguna decisión de trading.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunID fija el ID del run; con el mismo ID los IDs de posición se repiten.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// Engine reproduce la estrategia de straddles barra a barra.
// Es reutilizable: cada Run parte de un Ledger nuevo.
type Engine struct {
	params   domain.StrategyParams
	signal   strategy.Signal
	sizer    *strategy.Sizer
	manager  *strategy.Manager
	governor *strategy.Governor
	now      func() time.Time
	runID    string
}

// New valida params y construye los componentes de la estrategia.
func New(params domain.StrategyParams, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}

	e := &Engine{
		params:   params,
		signal:   strategy.NewEvaluator(params),
		sizer:    strategy.NewSizer(params),
		manager:  strategy.NewManager(params),
		governor: strategy.NewGovernor(params),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	return e, nil
}

// RunID returns the ID stamped on every result of this engine.
func (e *Engine) RunID() string { return e.runID }

// Run simula bars en orden y devuelve el resultado completo.
// Un bar inválido aborta con *domain.BarError; sin bars devuelve domain.ErrNoBars.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar) (*domain.BacktestResult, error) {
	if len(bars) == 0 {
		return nil, domain.ErrNoBars
	}

	p := e.params
	ledger := NewLedger(p.InitialCapital, p.CommissionRate)
	res := &domain.BacktestResult{
		RunID:     e.runID,
		Params:    p,
		Warnings:  p.Warnings(),
		FirstBar:  bars[0].Timestamp,
		StartedAt: e.now(),
	}

	var (
		trades  []domain.TradeResult
		curve   []domain.EquitySnapshot
		entries int
		last    = -1
	)

	// el histórico previo también debe venir ordenado
	for i := 1; i < min(p.MinHistoryBars, len(bars)); i++ {
		if err := checkOrder(bars, i); err != nil {
			return nil, err
		}
	}

	for i := p.MinHistoryBars; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest.Run: %w", err)
		}

		bar := bars[i]
		if reason := bar.Check(); reason != "" {
			return nil, &domain.BarError{Index: i, Timestamp: bar.Timestamp, Reason: reason}
		}
		if err := checkOrder(bars, i); err != nil {
			return nil, err
		}
		last = i
		res.BarsProcessed++

		if halt, reason := e.governor.ShouldHalt(ledger.Capital(), ledger.ConsecutiveLosses()); halt {
			res.Halt = domain.Halt{Halted: true, Reason: reason, Timestamp: bar.Timestamp}
			slog.Warn("backtest halted",
				"run_id", e.runID,
				"at", bar.Timestamp,
				"reason", reason,
				"capital", ledger.Capital(),
			)
			break
		}

		trades = append(trades, e.manage(ledger, bar)...)

		if pos := e.enter(ledger, bars[:i+1], entries); pos != nil {
			entries++
		}

		curve = append(curve, ledger.Snapshot(bar.Timestamp))
	}

	// cierre forzado en la última barra procesada (la del halt si lo hubo)
	ref := last
	if ref < 0 {
		ref = len(bars) - 1
	}
	final := bars[ref]
	trades = append(trades, e.forceClose(ledger, final)...)
	curve = append(curve, ledger.Snapshot(final.Timestamp))

	res.Trades = trades
	res.EquityCurve = curve
	res.HedgeEvents = ledger.Hedges()
	res.LastBar = final.Timestamp
	res.Metrics = domain.ComputeMetrics(trades, curve, res.HedgeEvents, p.InitialCapital)
	res.FinishedAt = e.now()

	slog.Info("backtest finished",
		"run_id", e.runID,
		"bars", res.BarsProcessed,
		"trades", res.Metrics.TotalTrades,
		"return_pct", fmt.Sprintf("%.2f", res.Metrics.TotalReturnPct),
		"halted", res.Halt.Halted,
	)
	return res, nil
}

// manage aplica las reglas de salida a cada posición abierta.
func (e *Engine) manage(l *Ledger, bar domain.Bar) []domain.TradeResult {
	var closed []domain.TradeResult
	for i := 0; i < len(l.Positions()); {
		pos := l.Positions()[i]
		action, info, hedge := e.manager.Manage(pos, bar.Close, bar.Timestamp, bar.Volatility, l.ConsecutiveLosses())

		if hedge != nil {
			h := pos.Hedges[len(pos.Hedges)-1]
			l.RecordHedge(pos, h)
			slog.Debug("hedge recommended",
				"position", pos.ID,
				"direction", h.Direction,
				"size_ratio", h.SizeRatio,
				"urgency", h.Urgency,
			)
		}

		if !action.IsExit() {
			i++
			continue
		}

		tr := l.Close(i, bar.Timestamp, bar.Close, action.Reason())
		slog.Debug("position closed",
			"position", tr.PositionID,
			"reason", tr.ExitReason,
			"pnl_pct", fmt.Sprintf("%.1f", info.PnLPct),
			"hours", fmt.Sprintf("%.0f", info.HoldingHours),
		)
		closed = append(closed, tr)
	}
	return closed
}

// enter abre un straddle ATM si pasan todos los filtros de entrada.
func (e *Engine) enter(l *Ledger, window []domain.Bar, n int) *domain.Position {
	p := e.params
	if len(l.Positions()) >= p.MaxPositions {
		return nil
	}

	ok, info := e.signal.Evaluate(window)
	if !ok {
		return nil
	}
	if l.Capital() <= p.MaxRiskPerTrade() {
		return nil
	}

	bar := window[len(window)-1]
	expiry := time.Duration(p.DefaultExpiryDays * 24 * float64(time.Hour))
	tte := domain.HoursToYears(expiry.Hours())
	q := domain.PriceStraddle(bar.Close, bar.Close, bar.Volatility, tte, p.InterestRate, p.MinVolatility, p.MaxVolatility)
	if q.Straddle <= 0 {
		return nil
	}

	contracts := e.sizer.Size(q.Straddle, info.Quality, l.ConsecutiveLosses())
	premium := q.Straddle * float64(contracts)
	if !e.sizer.Affordable(premium, l.Capital()) {
		slog.Debug("entry skipped: premium over budget",
			"at", bar.Timestamp,
			"premium", fmt.Sprintf("%.2f", premium),
			"capital", fmt.Sprintf("%.2f", l.Capital()),
		)
		return nil
	}

	confidence := info.Confidence
	if confidence == "" {
		confidence = domain.ConfidenceLow
	}
	pos := &domain.Position{
		ID:              positionID(e.runID, n),
		EntryTime:       bar.Timestamp,
		ExpiryTime:      bar.Timestamp.Add(expiry),
		EntryPrice:      bar.Close,
		Strike:          bar.Close,
		EntryVolatility: bar.Volatility,
		Contracts:       contracts,
		PremiumPaid:     premium,
		CurrentValue:    premium,
		Confidence:      confidence,
		SignalQuality:   info.Quality,
	}
	if err := l.Open(pos); err != nil {
		slog.Warn("entry rejected by ledger", "err", err)
		return nil
	}

	slog.Debug("position opened",
		"position", pos.ID,
		"at", bar.Timestamp,
		"price", bar.Close,
		"contracts", contracts,
		"premium", fmt.Sprintf("%.2f", premium),
		"quality", fmt.Sprintf("%.2f", info.Quality),
	)
	return pos
}

// forceClose revaloriza y cierra todo lo abierto con BACKTEST_END.
func (e *Engine) forceClose(l *Ledger, bar domain.Bar) []domain.TradeResult {
	p := e.params
	var closed []domain.TradeResult
	for len(l.Positions()) > 0 {
		pos := l.Positions()[0]
		tte := pos.RevalueYears(bar.Timestamp)
		pos.Revalue(domain.PriceStraddle(bar.Close, pos.Strike, bar.Volatility, tte, p.InterestRate, p.MinVolatility, p.MaxVolatility))
		closed = append(closed, l.Close(0, bar.Timestamp, bar.Close, domain.ExitBacktestEnd))
	}
	return closed
}

// checkOrder exige que bars[i] sea estrictamente posterior a bars[i-1].
func checkOrder(bars []domain.Bar, i int) error {
	if i == 0 || bars[i].Timestamp.After(bars[i-1].Timestamp) {
		return nil
	}
	return &domain.BarError{Index: i, Timestamp: bars[i].Timestamp, Reason: "timestamp not after previous bar"}
}

func positionID(runID string, n int) string {
	return uuid.NewSHA1(positionNamespace, fmt.Appendf(nil, "%s/%d", runID, n)).String()
}
