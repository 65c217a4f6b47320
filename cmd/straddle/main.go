package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alejandrodnm/straddlebot/config"
	"github.com/alejandrodnm/straddlebot/internal/adapters/binance"
	"github.com/alejandrodnm/straddlebot/internal/adapters/csvfeed"
	"github.com/alejandrodnm/straddlebot/internal/adapters/notify"
	"github.com/alejandrodnm/straddlebot/internal/adapters/storage"
	"github.com/alejandrodnm/straddlebot/internal/application/marketdata"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/observability"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// options son los flags que afectan a los modos.
type options struct {
	table   bool
	export  bool
	noStore bool
	label   string
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	profile := flag.String("profile", "", "risk profile: CONSERVATIVE|BALANCED|AGGRESSIVE (overrides config)")
	csvPath := flag.String("csv", "", "read candles from this CSV file instead of the configured source")
	fetch := flag.Bool("fetch", false, "download candles from Binance (overrides data.source)")
	optimizeMode := flag.Bool("optimize", false, "run the grid search in optimize.grid instead of a single backtest")
	serve := flag.Bool("serve", false, "load the series once and serve the HTTP API")
	list := flag.Bool("list", false, "print the last stored runs and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the trades table after the summary")
	export := flag.Bool("export", false, "write trades, equity and hedges CSV to export.dir")
	noStore := flag.Bool("no-store", false, "do not persist runs")
	label := flag.String("label", "", "label stored with the run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *profile != "" {
		params, err := config.ApplyProfile(cfg.Strategy, *profile)
		if err != nil {
			slog.Error("invalid profile", "err", err)
			os.Exit(1)
		}
		cfg.Strategy = params
		cfg.Profile = strings.ToUpper(*profile)
	}
	if *csvPath != "" {
		cfg.Data.Source = "csv"
		cfg.Data.CSVPath = *csvPath
	}
	if *fetch {
		cfg.Data.Source = "binance"
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("straddlebot starting",
		"config", *configPath,
		"profile", cfg.Profile,
		"source", cfg.Data.Source,
		"symbol", cfg.Data.Symbol,
		"interval", cfg.Data.Interval,
		"optimize", *optimizeMode,
		"serve", *serve,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store ports.RunStorage
	if !*noStore {
		store, err = storage.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", redactDSN(cfg.Storage.DSN))
			os.Exit(1)
		}
		defer store.Close()
	}

	console := notify.NewConsole(*table)

	if *list {
		if err := listRuns(ctx, store, console, cfg.Optimize.Top); err != nil {
			slog.Error("list runs failed", "err", err)
			os.Exit(1)
		}
		return
	}

	bars, err := loadBars(ctx, cfg)
	if err != nil {
		slog.Error("failed to load market data", "err", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	opts := options{table: *table, export: *export, noStore: *noStore, label: *label}

	switch {
	case *serve:
		err = runServe(ctx, cfg, bars, store, metrics)
	case *optimizeMode:
		err = runOptimize(ctx, cfg, bars, console, metrics, opts)
	default:
		err = runBacktest(ctx, cfg, bars, store, console, metrics, opts)
	}
	if err != nil {
		slog.Error("straddlebot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("straddlebot stopped cleanly")
}

// loadBars arma el pipeline con el proveedor configurado.
func loadBars(ctx context.Context, cfg *config.Config) ([]domain.Bar, error) {
	req, err := cfg.BarRequest()
	if err != nil {
		return nil, err
	}

	var provider ports.BarProvider
	switch cfg.Data.Source {
	case "csv":
		provider = csvfeed.NewLoader(cfg.Data.CSVPath)
	default:
		provider = binance.NewClient(cfg.Data.BinanceBase)
	}

	pipeline := marketdata.NewPipeline(provider, cfg.Lookback()).Annualize(cfg.Data.PeriodsPerYear)
	return pipeline.Load(ctx, req)
}

func listRuns(ctx context.Context, store ports.RunStorage, console *notify.Console, limit int) error {
	if store == nil {
		slog.Warn("storage disabled, nothing to list")
		return nil
	}
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	console.PrintRuns(runs)
	return nil
}

// redactDSN oculta la contraseña de un DSN con credenciales.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, _ := strings.Cut(userinfo, ":")
	return scheme + "://" + user + ":***@" + host
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
