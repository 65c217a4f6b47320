package storage

// sqlite.go: almacenamiento por defecto, un fichero local sin servidor.
//
//   - `runs`: una fila por backtest con las métricas resumidas en columnas
//     (para listar y ordenar) y el detalle en JSON.
//   - `trades`, `equity`, `hedges`: filas hijas por run_id.
//   - Instantes en milisegundos UTC; SQLite no tiene tipo fecha propio.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    label            TEXT    NOT NULL DEFAULT '',
    profile          TEXT    NOT NULL DEFAULT '',
    symbol           TEXT    NOT NULL DEFAULT '',
    started_at       INTEGER NOT NULL,
    finished_at      INTEGER NOT NULL,
    first_bar        INTEGER NOT NULL DEFAULT 0,
    last_bar         INTEGER NOT NULL DEFAULT 0,
    bars_processed   INTEGER NOT NULL DEFAULT 0,
    halted           INTEGER NOT NULL DEFAULT 0,
    halt_reason      TEXT    NOT NULL DEFAULT '',
    halt_at          INTEGER NOT NULL DEFAULT 0,
    total_trades     INTEGER NOT NULL DEFAULT 0,
    total_return_pct REAL    NOT NULL DEFAULT 0,
    sharpe_like      REAL    NOT NULL DEFAULT 0,
    max_drawdown_pct REAL    NOT NULL DEFAULT 0,
    final_capital    REAL    NOT NULL DEFAULT 0,
    params_json      TEXT    NOT NULL,
    metrics_json     TEXT    NOT NULL,
    warnings_json    TEXT    NOT NULL DEFAULT 'null'
);

CREATE TABLE IF NOT EXISTS trades (
    run_id        TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq           INTEGER NOT NULL,
    position_id   TEXT    NOT NULL,
    entry_time    INTEGER NOT NULL,
    exit_time     INTEGER NOT NULL,
    entry_price   REAL    NOT NULL,
    exit_price    REAL    NOT NULL,
    strike        REAL    NOT NULL,
    premium_paid  REAL    NOT NULL,
    exit_value    REAL    NOT NULL,
    commission    REAL    NOT NULL,
    pnl           REAL    NOT NULL,
    pnl_pct       REAL    NOT NULL,
    contracts     INTEGER NOT NULL,
    exit_reason   TEXT    NOT NULL,
    confidence    TEXT    NOT NULL,
    holding_hours REAL    NOT NULL,
    hedge_count   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
    run_id          TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq             INTEGER NOT NULL,
    ts              INTEGER NOT NULL,
    capital         REAL    NOT NULL,
    positions_value REAL    NOT NULL,
    total_value     REAL    NOT NULL,
    total_pnl       REAL    NOT NULL,
    open_positions  INTEGER NOT NULL,
    active_hedges   INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS hedges (
    run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    ts          INTEGER NOT NULL,
    position_id TEXT    NOT NULL,
    hedge_id    TEXT    NOT NULL,
    direction   TEXT    NOT NULL,
    size_ratio  REAL    NOT NULL,
    price       REAL    NOT NULL,
    reason      TEXT    NOT NULL,
    urgency     TEXT    NOT NULL,
    return_pct  REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// SQLiteStorage implementa ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.RunStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun persiste el run completo en una sola transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunRecord) error {
	if err := prepareRun(&run); err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}
	h, err := encodeHeader(run)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, h.ID).Scan(&exists); err != nil {
		return fmt.Errorf("storage.SaveRun: check %s: %w", h.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("storage.SaveRun: %s: %w", h.ID, domain.ErrDuplicateRun)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, label, profile, symbol, started_at, finished_at, first_bar, last_bar,
			 bars_processed, halted, halt_reason, halt_at, total_trades, total_return_pct,
			 sharpe_like, max_drawdown_pct, final_capital, params_json, metrics_json, warnings_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Label, h.Profile, h.Symbol,
		unixMilli(h.StartedAt), unixMilli(h.FinishedAt), unixMilli(h.FirstBar), unixMilli(h.LastBar),
		h.BarsProcessed, boolInt(h.Halted), h.HaltReason, unixMilli(h.HaltAt),
		h.TotalTrades, h.TotalReturn, h.SharpeLike, h.MaxDrawdown, h.FinalCapital,
		h.ParamsJSON, h.MetricsJSON, h.WarningsJSON,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	if err := insertTrades(ctx, tx, h.ID, run.Result.Trades); err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}
	if err := insertEquity(ctx, tx, h.ID, run.Result.EquityCurve); err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}
	if err := insertHedges(ctx, tx, h.ID, run.Result.HedgeEvents); err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	slog.Debug("storage: run saved", "id", h.ID, "trades", len(run.Result.Trades))
	return nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, runID string, trades []domain.TradeResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
			(run_id, seq, position_id, entry_time, exit_time, entry_price, exit_price, strike,
			 premium_paid, exit_value, commission, pnl, pnl_pct, contracts, exit_reason,
			 confidence, holding_hours, hedge_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer stmt.Close()

	for i, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			runID, i, t.PositionID, unixMilli(t.EntryTime), unixMilli(t.ExitTime),
			t.EntryPrice, t.ExitPrice, t.Strike, t.PremiumPaid, t.ExitValue, t.Commission,
			t.PnL, t.PnLPct, t.Contracts, string(t.ExitReason), string(t.Confidence),
			t.HoldingHours, t.HedgeCount,
		); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.PositionID, err)
		}
	}
	return nil
}

func insertEquity(ctx context.Context, tx *sql.Tx, runID string, curve []domain.EquitySnapshot) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity
			(run_id, seq, ts, capital, positions_value, total_value, total_pnl, open_positions, active_hedges)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare equity: %w", err)
	}
	defer stmt.Close()

	for i, e := range curve {
		if _, err := stmt.ExecContext(ctx,
			runID, i, unixMilli(e.Timestamp), e.Capital, e.PositionsValue, e.TotalValue,
			e.TotalPnL, e.OpenPositions, e.ActiveHedges,
		); err != nil {
			return fmt.Errorf("insert equity %d: %w", i, err)
		}
	}
	return nil
}

func insertHedges(ctx context.Context, tx *sql.Tx, runID string, hedges []domain.HedgeEvent) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hedges
			(run_id, seq, ts, position_id, hedge_id, direction, size_ratio, price, reason, urgency, return_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare hedges: %w", err)
	}
	defer stmt.Close()

	for i, h := range hedges {
		if _, err := stmt.ExecContext(ctx,
			runID, i, unixMilli(h.Timestamp), h.PositionID, h.HedgeID, string(h.Direction),
			h.SizeRatio, h.Price, h.Reason, string(h.Urgency), h.ReturnPct,
		); err != nil {
			return fmt.Errorf("insert hedge %s: %w", h.HedgeID, err)
		}
	}
	return nil
}

const runColumns = `id, label, profile, symbol, started_at, finished_at, first_bar, last_bar,
	bars_processed, halted, halt_reason, halt_at, total_trades, total_return_pct,
	sharpe_like, max_drawdown_pct, final_capital, params_json, metrics_json, warnings_json`

// rowScanner cubre *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHeader(row rowScanner) (runHeader, error) {
	var h runHeader
	var started, finished, first, last, haltAt int64
	var halted int
	if err := row.Scan(
		&h.ID, &h.Label, &h.Profile, &h.Symbol, &started, &finished, &first, &last,
		&h.BarsProcessed, &halted, &h.HaltReason, &haltAt, &h.TotalTrades, &h.TotalReturn,
		&h.SharpeLike, &h.MaxDrawdown, &h.FinalCapital, &h.ParamsJSON, &h.MetricsJSON, &h.WarningsJSON,
	); err != nil {
		return runHeader{}, err
	}
	h.StartedAt, h.FinishedAt = fromMilli(started), fromMilli(finished)
	h.FirstBar, h.LastBar = fromMilli(first), fromMilli(last)
	h.Halted, h.HaltAt = halted == 1, fromMilli(haltAt)
	return h, nil
}

// GetRun devuelve el run con trades, curva de equity y coberturas.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	h, err := scanHeader(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, fmt.Errorf("storage.GetRun: %s: %w", id, domain.ErrRunNotFound)
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("storage.GetRun: scan run: %w", err)
	}
	run, err := h.decode()
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	if run.Result.Trades, err = s.loadTrades(ctx, id); err != nil {
		return domain.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}
	if run.Result.EquityCurve, err = s.loadEquity(ctx, id); err != nil {
		return domain.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}
	if run.Result.HedgeEvents, err = s.loadHedges(ctx, id); err != nil {
		return domain.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}
	return run, nil
}

func (s *SQLiteStorage) loadTrades(ctx context.Context, runID string) ([]domain.TradeResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, entry_time, exit_time, entry_price, exit_price, strike,
		       premium_paid, exit_value, commission, pnl, pnl_pct, contracts, exit_reason,
		       confidence, holding_hours, hedge_count
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeResult
	for rows.Next() {
		var t domain.TradeResult
		var entry, exit int64
		var reason, conf string
		if err := rows.Scan(
			&t.PositionID, &entry, &exit, &t.EntryPrice, &t.ExitPrice, &t.Strike,
			&t.PremiumPaid, &t.ExitValue, &t.Commission, &t.PnL, &t.PnLPct, &t.Contracts,
			&reason, &conf, &t.HoldingHours, &t.HedgeCount,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.EntryTime, t.ExitTime = fromMilli(entry), fromMilli(exit)
		t.ExitReason, t.Confidence = domain.ExitReason(reason), domain.Confidence(conf)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadEquity(ctx context.Context, runID string) ([]domain.EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, capital, positions_value, total_value, total_pnl, open_positions, active_hedges
		FROM equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var out []domain.EquitySnapshot
	for rows.Next() {
		var e domain.EquitySnapshot
		var ts int64
		if err := rows.Scan(&ts, &e.Capital, &e.PositionsValue, &e.TotalValue,
			&e.TotalPnL, &e.OpenPositions, &e.ActiveHedges); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		e.Timestamp = fromMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadHedges(ctx context.Context, runID string) ([]domain.HedgeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, position_id, hedge_id, direction, size_ratio, price, reason, urgency, return_pct
		FROM hedges WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query hedges: %w", err)
	}
	defer rows.Close()

	var out []domain.HedgeEvent
	for rows.Next() {
		var h domain.HedgeEvent
		var ts int64
		var dir, urg string
		if err := rows.Scan(&ts, &h.PositionID, &h.HedgeID, &dir, &h.SizeRatio,
			&h.Price, &h.Reason, &urg, &h.ReturnPct); err != nil {
			return nil, fmt.Errorf("scan hedge: %w", err)
		}
		h.Timestamp = fromMilli(ts)
		h.Direction, h.Urgency = domain.HedgeDirection(dir), domain.Urgency(urg)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListRuns devuelve los runs más recientes primero.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		out = append(out, h.summary())
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
