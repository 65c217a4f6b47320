package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://bot:***@db:5432/straddle", redactDSN("postgres://bot:s3cret@db:5432/straddle"))
	assert.Equal(t, "clickhouse://host:9000/db", redactDSN("clickhouse://host:9000/db"))
	assert.Equal(t, "straddle.db", redactDSN("straddle.db"))
}

func TestExportRun(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.BacktestResult{
		RunID:       "run-42",
		Trades:      []domain.TradeResult{{PositionID: "p1", EntryTime: ts, ExitTime: ts.Add(time.Hour), ExitReason: domain.ExitTakeProfit}},
		EquityCurve: []domain.EquitySnapshot{{Timestamp: ts, Capital: 10000, TotalValue: 10000}},
	}

	require.NoError(t, exportRun(dir, res))

	for _, name := range []string{"run-42_trades.csv", "run-42_equity.csv", "run-42_hedges.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, strings.TrimSpace(string(data)))
	}
}

func TestExportRun_FailureLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	// un directorio en la ruta de coberturas hace fallar la tercera escritura
	require.NoError(t, os.Mkdir(filepath.Join(dir, "run-7_hedges.csv"), 0o755))

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.BacktestResult{
		RunID:       "run-7",
		Trades:      []domain.TradeResult{{PositionID: "p1", EntryTime: ts, ExitTime: ts.Add(time.Hour), ExitReason: domain.ExitTimeout}},
		EquityCurve: []domain.EquitySnapshot{{Timestamp: ts, Capital: 10000, TotalValue: 10000}},
	}

	err := exportRun(dir, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export hedges")

	for _, name := range []string{"run-7_trades.csv", "run-7_equity.csv"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(statErr), name)
	}
}
