package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/straddlebot/internal/application/optimize"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// Console implementa ports.Reporter escribiendo tablas en texto.
type Console struct {
	out       io.Writer
	trades    bool // imprimir la tabla de trades completa
	maxTrades int
}

var _ ports.Reporter = (*Console)(nil)

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(trades bool) *Console {
	return &Console{out: os.Stdout, trades: trades, maxTrades: 50}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, trades bool) *Console {
	return &Console{out: w, trades: trades, maxTrades: 50}
}

// Report imprime resumen, métricas, salidas, coberturas y avisos.
func (c *Console) Report(_ context.Context, res *domain.BacktestResult) error {
	if res == nil {
		fmt.Fprintln(c.out, "\n  No backtest result available.")
		return nil
	}

	c.printHeader(res)
	c.printSummary(res)
	c.printExitBreakdown(res.Metrics)
	c.printHedges(res.Metrics.Hedges)
	if c.trades {
		c.printTrades(res.Trades)
	}
	c.printWarnings(res)
	return nil
}

func (c *Console) printHeader(res *domain.BacktestResult) {
	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║  STRADDLE BACKTEST  %-45s║\n", shortID(res.RunID))
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════════╝\n")
	if !res.FirstBar.IsZero() {
		fmt.Fprintf(c.out, "  Period: %s → %s (%d bars)\n\n",
			res.FirstBar.Format("2006-01-02 15:04"), res.LastBar.Format("2006-01-02 15:04"), res.BarsProcessed)
	}
}

func (c *Console) printSummary(res *domain.BacktestResult) {
	m := res.Metrics
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")

	table.Append("Initial capital", fmt.Sprintf("$%.2f", res.Params.InitialCapital))
	table.Append("Final capital", fmt.Sprintf("$%.2f", m.FinalCapital))
	table.Append("Total return", fmt.Sprintf("%+.2f%%", m.TotalReturnPct))
	table.Append("Trades", fmt.Sprintf("%d (%dW / %dL)", m.TotalTrades, m.Wins, m.Losses))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100))
	table.Append("Avg P&L", fmt.Sprintf("%+.2f%%", m.AvgPnLPct))
	table.Append("Best / worst", fmt.Sprintf("%+.2f%% / %+.2f%%", m.BestPnLPct, m.WorstPnLPct))
	table.Append("Avg win / loss", fmt.Sprintf("%+.2f%% / %+.2f%%", m.AvgWinPct, m.AvgLossPct))
	table.Append("Profit factor", ratioLabel(m.ProfitFactor))
	table.Append("Sharpe-like", fmt.Sprintf("%.3f", m.SharpeLike))
	table.Append("Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdownPct))
	table.Append("Max consecutive losses", fmt.Sprintf("%d", m.MaxConsecutiveLosses))
	table.Append("Avg holding", fmt.Sprintf("%.1fh", m.AvgHoldingHours))
	table.Append("Commission", fmt.Sprintf("$%.2f", m.TotalCommission))
	table.Render()

	if res.Halt.Halted {
		fmt.Fprintf(c.out, "\n  ⚠ HALTED at %s: %s\n",
			res.Halt.Timestamp.Format("2006-01-02 15:04"), res.Halt.Reason)
	}
}

func (c *Console) printExitBreakdown(m domain.Metrics) {
	if m.TotalTrades == 0 {
		fmt.Fprintln(c.out, "\n  No trades executed.")
		return
	}
	fmt.Fprintln(c.out, "\n=== EXITS ===")
	table := tablewriter.NewWriter(c.out)
	table.Header("Reason", "Count", "Share")
	for _, r := range domain.ExitReasons {
		n := m.ExitBreakdown[r]
		if n == 0 {
			continue
		}
		table.Append(string(r), fmt.Sprintf("%d", n),
			fmt.Sprintf("%.1f%%", float64(n)/float64(m.TotalTrades)*100))
	}
	table.Render()
}

func (c *Console) printHedges(h domain.HedgeSummary) {
	if h.Total == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n=== HEDGES (advisory) ===")
	fmt.Fprintf(c.out, "  Total: %d | hedged trades: %d | avg size: %.0f%% | avg return: %+.2f%%\n",
		h.Total, h.HedgedTrades, h.AvgSizeRatio*100, h.AvgReturnPct)
	fmt.Fprintf(c.out, "  Days with hedges: %d | max per day: %d\n", h.DaysWithHedges, h.MaxPerDay)
	fmt.Fprintf(c.out, "  By urgency: %s\n", countsLabel(h.ByUrgency))
	fmt.Fprintf(c.out, "  By direction: %s\n", countsLabel(h.ByDirection))
}

func (c *Console) printTrades(trades []domain.TradeResult) {
	if len(trades) == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n=== TRADES ===")
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Entry", "Exit", "Strike", "Qty", "Premium", "P&L", "P&L%", "Held", "Reason", "Conf")

	shown := trades
	if c.maxTrades > 0 && len(shown) > c.maxTrades {
		shown = shown[len(shown)-c.maxTrades:]
	}
	offset := len(trades) - len(shown)
	for i, t := range shown {
		table.Append(
			fmt.Sprintf("%d", offset+i+1),
			t.EntryTime.Format("01-02 15:04"),
			t.ExitTime.Format("01-02 15:04"),
			fmt.Sprintf("%.2f", t.Strike),
			fmt.Sprintf("%d", t.Contracts),
			fmt.Sprintf("$%.2f", t.PremiumPaid),
			fmt.Sprintf("$%+.2f", t.PnL),
			fmt.Sprintf("%+.1f%%", t.PnLPct),
			fmt.Sprintf("%.0fh", t.HoldingHours),
			string(t.ExitReason),
			string(t.Confidence),
		)
	}
	table.Render()
	if offset > 0 {
		fmt.Fprintf(c.out, "  (%d earlier trades not shown)\n", offset)
	}
}

func (c *Console) printWarnings(res *domain.BacktestResult) {
	if len(res.Warnings) == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n=== WARNINGS ===")
	for _, w := range res.Warnings {
		fmt.Fprintf(c.out, "  ⚠ %s\n", w)
	}
}

// PrintLeaderboard imprime los mejores trials de un grid ya ordenado.
func (c *Console) PrintLeaderboard(ranked []optimize.TrialResult, obj optimize.Objective, total int) {
	fmt.Fprintf(c.out, "\n=== GRID SEARCH: %d/%d valid trials, ranked by %s ===\n", len(ranked), total, obj)
	if len(ranked) == 0 {
		fmt.Fprintln(c.out, "  No valid trials.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Trial", "Params", "Trades", "Win%", "Return", "Sharpe", "MaxDD", "PF", "Halted")
	for i, r := range ranked {
		m := r.Metrics
		halted := ""
		if r.Halted {
			halted = "yes"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", r.Trial.ID),
			truncate(r.Trial.Label(), 60),
			fmt.Sprintf("%d", m.TotalTrades),
			fmt.Sprintf("%.1f", m.WinRate*100),
			fmt.Sprintf("%+.2f%%", m.TotalReturnPct),
			fmt.Sprintf("%.3f", m.SharpeLike),
			fmt.Sprintf("%.2f%%", m.MaxDrawdownPct),
			ratioLabel(m.ProfitFactor),
			halted,
		)
	}
	table.Render()
}

// PrintRuns lista runs guardados.
func (c *Console) PrintRuns(runs []domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "\n  No stored runs.")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Started", "Label", "Profile", "Symbol", "Trades", "Return", "Sharpe", "MaxDD", "Halted")
	for _, r := range runs {
		halted := ""
		if r.Halted {
			halted = "yes"
		}
		table.Append(
			shortID(r.ID),
			r.StartedAt.Format("2006-01-02 15:04"),
			truncate(r.Label, 30),
			r.Profile,
			r.Symbol,
			fmt.Sprintf("%d", r.TotalTrades),
			fmt.Sprintf("%+.2f%%", r.TotalReturn),
			fmt.Sprintf("%.3f", r.SharpeLike),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown),
			halted,
		)
	}
	table.Render()
}

// --- helpers ---

func ratioLabel(x float64) string {
	if math.IsInf(x, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", x)
}

func countsLabel[K ~string](counts map[K]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[K(k)])
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
