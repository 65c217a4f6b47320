package csvfeed

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/straddlebot/internal/application/optimize"
	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// WriteCSV escribe header y rows en path de forma atómica: primero a un
// temporal del mismo directorio y después rename. Un fallo no deja ficheros a medias.
func WriteCSV(path string, header []string, rows [][]string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csvfeed.WriteCSV: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("csvfeed.WriteCSV: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(header); err != nil {
		return fmt.Errorf("csvfeed.WriteCSV: header: %w", err)
	}
	if err = w.WriteAll(rows); err != nil {
		return fmt.Errorf("csvfeed.WriteCSV: rows: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("csvfeed.WriteCSV: close: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csvfeed.WriteCSV: rename: %w", err)
	}
	return nil
}

// WriteTrades exporta los trades cerrados.
func WriteTrades(path string, trades []domain.TradeResult) error {
	header := []string{
		"position_id", "entry_time", "exit_time", "entry_price", "exit_price", "strike",
		"contracts", "premium_paid", "exit_value", "commission", "pnl", "pnl_pct",
		"exit_reason", "confidence", "holding_hours", "hedge_count",
	}
	rows := make([][]string, len(trades))
	for i, t := range trades {
		rows[i] = []string{
			t.PositionID,
			ts(t.EntryTime),
			ts(t.ExitTime),
			Money(t.EntryPrice),
			Money(t.ExitPrice),
			Money(t.Strike),
			strconv.Itoa(t.Contracts),
			Money(t.PremiumPaid),
			Money(t.ExitValue),
			Money(t.Commission),
			Money(t.PnL),
			Pct(t.PnLPct),
			string(t.ExitReason),
			string(t.Confidence),
			Pct(t.HoldingHours),
			strconv.Itoa(t.HedgeCount),
		}
	}
	return WriteCSV(path, header, rows)
}

// WriteEquity exporta la curva de equity.
func WriteEquity(path string, curve []domain.EquitySnapshot) error {
	header := []string{
		"timestamp", "capital", "positions_value", "total_value", "total_pnl", "open_positions", "active_hedges",
	}
	rows := make([][]string, len(curve))
	for i, s := range curve {
		rows[i] = []string{
			ts(s.Timestamp),
			Money(s.Capital),
			Money(s.PositionsValue),
			Money(s.TotalValue),
			Money(s.TotalPnL),
			strconv.Itoa(s.OpenPositions),
			strconv.Itoa(s.ActiveHedges),
		}
	}
	return WriteCSV(path, header, rows)
}

// WriteHedges exporta los eventos de cobertura.
func WriteHedges(path string, hedges []domain.HedgeEvent) error {
	header := []string{
		"timestamp", "position_id", "hedge_id", "direction", "size_ratio", "price", "urgency", "return_pct", "reason",
	}
	rows := make([][]string, len(hedges))
	for i, h := range hedges {
		rows[i] = []string{
			ts(h.Timestamp),
			h.PositionID,
			h.HedgeID,
			string(h.Direction),
			Pct(h.SizeRatio),
			Money(h.Price),
			string(h.Urgency),
			Pct(h.ReturnPct),
			h.Reason,
		}
	}
	return WriteCSV(path, header, rows)
}

// WriteTrials exporta los resultados de un grid search en el orden recibido.
// Los trials fallidos llevan el error y métricas vacías.
func WriteTrials(path string, results []optimize.TrialResult) error {
	header := []string{
		"rank", "trial_id", "params", "trades", "win_rate", "return_pct", "sharpe_like",
		"max_drawdown_pct", "profit_factor", "halted", "error",
	}
	rows := make([][]string, len(results))
	for i, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		m := r.Metrics
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(r.Trial.ID),
			r.Trial.Label(),
			strconv.Itoa(m.TotalTrades),
			Pct(m.WinRate * 100),
			Pct(m.TotalReturnPct),
			Pct(m.SharpeLike),
			Pct(m.MaxDrawdownPct),
			Pct(m.ProfitFactor),
			strconv.FormatBool(r.Halted),
			errText,
		}
	}
	return WriteCSV(path, header, rows)
}

// Money formatea un importe con 4 decimales exactos.
func Money(x float64) string {
	if s, ok := nonFinite(x); ok {
		return s
	}
	return decimal.NewFromFloat(x).Round(4).String()
}

// Pct formatea un porcentaje o ratio con 2 decimales.
func Pct(x float64) string {
	if s, ok := nonFinite(x); ok {
		return s
	}
	return decimal.NewFromFloat(x).StringFixed(2)
}

// decimal no admite NaN ni ±Inf.
func nonFinite(x float64) (string, bool) {
	switch {
	case math.IsNaN(x):
		return "", true
	case math.IsInf(x, 1):
		return "inf", true
	case math.IsInf(x, -1):
		return "-inf", true
	}
	return "", false
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
