package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// Importes en NUMERIC para que los totales sumen exactos en SQL.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    label            TEXT        NOT NULL DEFAULT '',
    profile          TEXT        NOT NULL DEFAULT '',
    symbol           TEXT        NOT NULL DEFAULT '',
    started_at       TIMESTAMPTZ NOT NULL,
    finished_at      TIMESTAMPTZ NOT NULL,
    first_bar        TIMESTAMPTZ,
    last_bar         TIMESTAMPTZ,
    bars_processed   INTEGER     NOT NULL DEFAULT 0,
    halted           BOOLEAN     NOT NULL DEFAULT FALSE,
    halt_reason      TEXT        NOT NULL DEFAULT '',
    halt_at          TIMESTAMPTZ,
    total_trades     INTEGER     NOT NULL DEFAULT 0,
    total_return_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
    sharpe_like      DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_drawdown_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
    final_capital    NUMERIC(20, 8)   NOT NULL DEFAULT 0,
    params_json      JSONB       NOT NULL,
    metrics_json     JSONB       NOT NULL,
    warnings_json    JSONB,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trades (
    run_id        TEXT           NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq           INTEGER        NOT NULL,
    position_id   TEXT           NOT NULL,
    entry_time    TIMESTAMPTZ    NOT NULL,
    exit_time     TIMESTAMPTZ    NOT NULL,
    entry_price   NUMERIC(20, 8) NOT NULL,
    exit_price    NUMERIC(20, 8) NOT NULL,
    strike        NUMERIC(20, 8) NOT NULL,
    premium_paid  NUMERIC(20, 8) NOT NULL,
    exit_value    NUMERIC(20, 8) NOT NULL,
    commission    NUMERIC(20, 8) NOT NULL,
    pnl           NUMERIC(20, 8) NOT NULL,
    pnl_pct       DOUBLE PRECISION NOT NULL,
    contracts     INTEGER        NOT NULL,
    exit_reason   TEXT           NOT NULL,
    confidence    TEXT           NOT NULL,
    holding_hours DOUBLE PRECISION NOT NULL,
    hedge_count   INTEGER        NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
    run_id          TEXT           NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq             INTEGER        NOT NULL,
    ts              TIMESTAMPTZ    NOT NULL,
    capital         NUMERIC(20, 8) NOT NULL,
    positions_value NUMERIC(20, 8) NOT NULL,
    total_value     NUMERIC(20, 8) NOT NULL,
    total_pnl       NUMERIC(20, 8) NOT NULL,
    open_positions  INTEGER        NOT NULL,
    active_hedges   INTEGER        NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS hedges (
    run_id      TEXT           NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq         INTEGER        NOT NULL,
    ts          TIMESTAMPTZ    NOT NULL,
    position_id TEXT           NOT NULL,
    hedge_id    TEXT           NOT NULL,
    direction   TEXT           NOT NULL,
    size_ratio  DOUBLE PRECISION NOT NULL,
    price       NUMERIC(20, 8) NOT NULL,
    reason      TEXT           NOT NULL,
    urgency     TEXT           NOT NULL,
    return_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// PostgreSQL error codes
const pgErrUniqueViolation = "23505"

// PostgresStorage implementa ports.RunStorage sobre un pool de pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ ports.RunStorage = (*PostgresStorage)(nil)

// NewPostgresStorage conecta, verifica con ping y aplica el schema.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: apply schema: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// SaveRun inserta el run y sus filas hijas en una transacción con un único batch.
func (s *PostgresStorage) SaveRun(ctx context.Context, run domain.RunRecord) error {
	if err := prepareRun(&run); err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}
	h, err := encodeHeader(run)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs
			(id, label, profile, symbol, started_at, finished_at, first_bar, last_bar,
			 bars_processed, halted, halt_reason, halt_at, total_trades, total_return_pct,
			 sharpe_like, max_drawdown_pct, final_capital, params_json, metrics_json, warnings_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		h.ID, h.Label, h.Profile, h.Symbol, h.StartedAt, h.FinishedAt,
		nullTime(h.FirstBar), nullTime(h.LastBar), h.BarsProcessed, h.Halted, h.HaltReason,
		nullTime(h.HaltAt), h.TotalTrades, h.TotalReturn, h.SharpeLike, h.MaxDrawdown,
		money(h.FinalCapital), h.ParamsJSON, h.MetricsJSON, h.WarningsJSON,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("storage.SaveRun: %s: %w", h.ID, domain.ErrDuplicateRun)
		}
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	res := run.Result
	b := &pgx.Batch{}
	for i, t := range res.Trades {
		b.Queue(`
			INSERT INTO trades
				(run_id, seq, position_id, entry_time, exit_time, entry_price, exit_price, strike,
				 premium_paid, exit_value, commission, pnl, pnl_pct, contracts, exit_reason,
				 confidence, holding_hours, hedge_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			h.ID, i, t.PositionID, t.EntryTime.UTC(), t.ExitTime.UTC(),
			money(t.EntryPrice), money(t.ExitPrice), money(t.Strike), money(t.PremiumPaid),
			money(t.ExitValue), money(t.Commission), money(t.PnL), t.PnLPct, t.Contracts,
			string(t.ExitReason), string(t.Confidence), t.HoldingHours, t.HedgeCount,
		)
	}
	for i, e := range res.EquityCurve {
		b.Queue(`
			INSERT INTO equity
				(run_id, seq, ts, capital, positions_value, total_value, total_pnl, open_positions, active_hedges)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			h.ID, i, e.Timestamp.UTC(), money(e.Capital), money(e.PositionsValue),
			money(e.TotalValue), money(e.TotalPnL), e.OpenPositions, e.ActiveHedges,
		)
	}
	for i, ev := range res.HedgeEvents {
		b.Queue(`
			INSERT INTO hedges
				(run_id, seq, ts, position_id, hedge_id, direction, size_ratio, price, reason, urgency, return_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			h.ID, i, ev.Timestamp.UTC(), ev.PositionID, ev.HedgeID, string(ev.Direction),
			ev.SizeRatio, money(ev.Price), ev.Reason, string(ev.Urgency), ev.ReturnPct,
		)
	}
	if b.Len() > 0 {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("storage.SaveRun: insert rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	slog.Debug("storage: run saved", "id", h.ID, "backend", "postgres", "rows", b.Len())
	return nil
}

const pgRunColumns = `id, label, profile, symbol, started_at, finished_at, first_bar, last_bar,
	bars_processed, halted, halt_reason, halt_at, total_trades, total_return_pct,
	sharpe_like, max_drawdown_pct, final_capital::text, params_json::text, metrics_json::text,
	COALESCE(warnings_json::text, '')`

func scanPgHeader(row pgx.Row) (runHeader, error) {
	var h runHeader
	var first, last, haltAt *time.Time
	var capital string
	if err := row.Scan(
		&h.ID, &h.Label, &h.Profile, &h.Symbol, &h.StartedAt, &h.FinishedAt, &first, &last,
		&h.BarsProcessed, &h.Halted, &h.HaltReason, &haltAt, &h.TotalTrades, &h.TotalReturn,
		&h.SharpeLike, &h.MaxDrawdown, &capital, &h.ParamsJSON, &h.MetricsJSON, &h.WarningsJSON,
	); err != nil {
		return runHeader{}, err
	}
	h.FirstBar, h.LastBar, h.HaltAt = derefTime(first), derefTime(last), derefTime(haltAt)
	var err error
	if h.FinalCapital, err = parseMoney(capital); err != nil {
		return runHeader{}, err
	}
	return h, nil
}

// GetRun devuelve el run completo.
func (s *PostgresStorage) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	h, err := scanPgHeader(s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStorage) loadTrades(ctx context.Context, runID string) ([]domain.TradeResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position_id, entry_time, exit_time, entry_price::text, exit_price::text, strike::text,
		       premium_paid::text, exit_value::text, commission::text, pnl::text, pnl_pct, contracts,
		       exit_reason, confidence, holding_hours, hedge_count
		FROM trades WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeResult
	for rows.Next() {
		var t domain.TradeResult
		var m [7]string
		var reason, conf string
		if err := rows.Scan(
			&t.PositionID, &t.EntryTime, &t.ExitTime, &m[0], &m[1], &m[2], &m[3], &m[4], &m[5], &m[6],
			&t.PnLPct, &t.Contracts, &reason, &conf, &t.HoldingHours, &t.HedgeCount,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if err := parseMoneyInto(m[:], &t.EntryPrice, &t.ExitPrice, &t.Strike, &t.PremiumPaid,
			&t.ExitValue, &t.Commission, &t.PnL); err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.PositionID, err)
		}
		t.EntryTime, t.ExitTime = t.EntryTime.UTC(), t.ExitTime.UTC()
		t.ExitReason, t.Confidence = domain.ExitReason(reason), domain.Confidence(conf)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) loadEquity(ctx context.Context, runID string) ([]domain.EquitySnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, capital::text, positions_value::text, total_value::text, total_pnl::text,
		       open_positions, active_hedges
		FROM equity WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var out []domain.EquitySnapshot
	for rows.Next() {
		var e domain.EquitySnapshot
		var m [4]string
		if err := rows.Scan(&e.Timestamp, &m[0], &m[1], &m[2], &m[3], &e.OpenPositions, &e.ActiveHedges); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		if err := parseMoneyInto(m[:], &e.Capital, &e.PositionsValue, &e.TotalValue, &e.TotalPnL); err != nil {
			return nil, fmt.Errorf("equity: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) loadHedges(ctx context.Context, runID string) ([]domain.HedgeEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, position_id, hedge_id, direction, size_ratio, price::text, reason, urgency, return_pct
		FROM hedges WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query hedges: %w", err)
	}
	defer rows.Close()

	var out []domain.HedgeEvent
	for rows.Next() {
		var h domain.HedgeEvent
		var price, dir, urg string
		if err := rows.Scan(&h.Timestamp, &h.PositionID, &h.HedgeID, &dir, &h.SizeRatio,
			&price, &h.Reason, &urg, &h.ReturnPct); err != nil {
			return nil, fmt.Errorf("scan hedge: %w", err)
		}
		if h.Price, err = parseMoney(price); err != nil {
			return nil, fmt.Errorf("hedge %s: %w", h.HedgeID, err)
		}
		h.Timestamp = h.Timestamp.UTC()
		h.Direction, h.Urgency = domain.HedgeDirection(dir), domain.Urgency(urg)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListRuns devuelve los runs más recientes primero. LIMIT NULL = sin límite.
func (s *PostgresStorage) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRunColumns+` FROM runs ORDER BY started_at DESC, id LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		h, err := scanPgHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		out = append(out, h.summary())
	}
	return out, rows.Err()
}

// Close cierra el pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKeyError detecta violaciones de unicidad.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// money formatea un importe para una columna NUMERIC.
func money(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	}
	return decimal.NewFromFloat(x).Round(8).String()
}

func parseMoney(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

func parseMoneyInto(src []string, dst ...*float64) error {
	for i, s := range src {
		v, err := parseMoney(s)
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
