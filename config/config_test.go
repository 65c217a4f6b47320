package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/straddlebot/config"
	"github.com/alejandrodnm/straddlebot/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "data:\n  csv_path: candles.csv\n"))
	require.NoError(t, err)

	assert.Equal(t, config.ProfileBalanced, cfg.Profile)
	assert.Equal(t, domain.DefaultParams(), cfg.StrategyParams())
	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, "BTCUSDT", cfg.Data.Symbol)
	assert.Equal(t, "1h", cfg.Data.Interval)
	assert.Equal(t, 14*24*time.Hour, cfg.Lookback())
	assert.Equal(t, "sharpe", cfg.Optimize.Objective)
	assert.Equal(t, 10, cfg.Optimize.Top)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "straddle.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "output", cfg.Export.Dir)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProfileThenExplicitKeys(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
profile: aggressive
strategy:
  max_positions: 4
  commission_rate: 0.0005
`))
	require.NoError(t, err)

	p := cfg.StrategyParams()
	assert.Equal(t, config.ProfileAggressive, cfg.Profile)
	assert.Equal(t, 0.020, p.RiskPerTrade)
	assert.Equal(t, 40.0, p.VolatilityThreshold)
	assert.Equal(t, 1.5, p.TakeProfitMultiplier)
	assert.Equal(t, 0.8, p.StopLossMultiplier)
	assert.Equal(t, 4, p.MaxPositions, "explicit key wins over the profile")
	assert.Equal(t, 0.0005, p.CommissionRate)
	assert.Equal(t, 20, p.MaxContracts, "untouched keys keep their default")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("STRADDLE_DSN", "postgres://u:p@db/straddle")
	t.Setenv("STRADDLE_PROFILE", "conservative")
	t.Setenv("STRADDLE_API_ADDR", ":9090")
	t.Setenv("STRADDLE_DATA_CSV", "/data/btc.csv")

	cfg, err := config.Load(writeConfig(t, "profile: AGGRESSIVE\ndata:\n  source: binance\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres://u:p@db/straddle", cfg.Storage.DSN)
	assert.Equal(t, config.ProfileConservative, cfg.Profile)
	assert.Equal(t, 2, cfg.Strategy.MaxPositions)
	assert.Equal(t, ":9090", cfg.API.Addr)
	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, "/data/btc.csv", cfg.Data.CSVPath)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(writeConfig(t, "strategy: [1, 2"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "profile: reckless\n"))
	assert.ErrorContains(t, err, "unknown profile")
}

func TestBarRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Start = "2023-06-01"
	cfg.Data.End = "2024-10-31"

	req, err := cfg.BarRequest()
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), req.From)
	assert.Equal(t, time.Date(2024, 10, 31, 23, 59, 59, 999_000_000, time.UTC), req.To)

	cfg.Data.End = "2023-05-01"
	_, err = cfg.BarRequest()
	assert.Error(t, err)

	cfg.Data.End = "31/10/2024"
	_, err = cfg.BarRequest()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Source = "csv"
	assert.ErrorContains(t, cfg.Validate(), "csv_path")

	cfg.Data.Source = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown data.source")

	cfg.Data.Source = "binance"
	cfg.Strategy.RiskPerTrade = 0.5
	var verr *domain.ValidationError
	assert.True(t, errors.As(cfg.Validate(), &verr))
}

func TestApplyProfile(t *testing.T) {
	base := domain.DefaultParams()

	same, err := config.ApplyProfile(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, same)

	balanced, err := config.ApplyProfile(base, "Balanced")
	require.NoError(t, err)
	assert.Equal(t, base, balanced, "BALANCED matches the defaults")

	for _, p := range config.Profiles() {
		params, err := config.ApplyProfile(base, p.Name)
		require.NoError(t, err)
		assert.NoError(t, params.Validate(), p.Name)
	}

	_, err = config.ApplyProfile(base, "YOLO")
	assert.Error(t, err)
}

func TestProfiles_Sorted(t *testing.T) {
	ps := config.Profiles()
	require.Len(t, ps, 3)
	assert.Equal(t, config.ProfileAggressive, ps[0].Name)
	assert.Equal(t, config.ProfileBalanced, ps[1].Name)
	assert.Equal(t, config.ProfileConservative, ps[2].Name)
}
