package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/straddlebot/config"
	"github.com/alejandrodnm/straddlebot/internal/adapters/csvfeed"
	"github.com/alejandrodnm/straddlebot/internal/adapters/notify"
	"github.com/alejandrodnm/straddlebot/internal/application/session"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/observability"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

func runBacktest(
	ctx context.Context,
	cfg *config.Config,
	bars []domain.Bar,
	store ports.RunStorage,
	console *notify.Console,
	metrics *observability.Metrics,
	opts options,
) error {
	s := session.New(store, console, metrics)

	out, err := s.Execute(ctx, session.Request{
		Params:  cfg.StrategyParams(),
		Label:   opts.label,
		Profile: cfg.Profile,
		Symbol:  cfg.Data.Symbol,
	}, bars)
	if err != nil {
		return err
	}

	if opts.export {
		if err := exportRun(cfg.Export.Dir, out.Record.Result); err != nil {
			return err
		}
	}
	return nil
}

// exportRun escribe trades, equity y coberturas en dir/<run_id>_*.csv.
// Si una escritura falla borra los ficheros ya escritos: o los tres o ninguno.
func exportRun(dir string, res *domain.BacktestResult) error {
	prefix := filepath.Join(dir, res.RunID)
	files := []struct {
		name  string
		write func(path string) error
	}{
		{"trades", func(path string) error { return csvfeed.WriteTrades(path, res.Trades) }},
		{"equity", func(path string) error { return csvfeed.WriteEquity(path, res.EquityCurve) }},
		{"hedges", func(path string) error { return csvfeed.WriteHedges(path, res.HedgeEvents) }},
	}

	var written []string
	for _, f := range files {
		path := prefix + "_" + f.name + ".csv"
		if err := f.write(path); err != nil {
			for _, w := range written {
				if rmErr := os.Remove(w); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					slog.Warn("export cleanup failed", "path", w, "err", rmErr)
				}
			}
			return fmt.Errorf("export %s: %w", f.name, err)
		}
		written = append(written, path)
	}

	slog.Info("run exported",
		"dir", dir,
		"run_id", res.RunID,
		"trades", len(res.Trades),
		"equity_points", len(res.EquityCurve),
		"hedges", len(res.HedgeEvents),
	)
	return nil
}
