package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/alejandrodnm/straddlebot/config"
	"github.com/alejandrodnm/straddlebot/internal/adapters/csvfeed"
	"github.com/alejandrodnm/straddlebot/internal/adapters/notify"
	"github.com/alejandrodnm/straddlebot/internal/application/optimize"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/observability"
)

func runOptimize(
	ctx context.Context,
	cfg *config.Config,
	bars []domain.Bar,
	console *notify.Console,
	metrics *observability.Metrics,
	opts options,
) error {
	obj, err := optimize.ParseObjective(cfg.Optimize.Objective)
	if err != nil {
		return err
	}
	trials, err := optimize.Grid(cfg.Optimize.Grid).Trials(cfg.StrategyParams())
	if err != nil {
		return err
	}

	slog.Info("grid search starting",
		"trials", len(trials),
		"workers", cfg.Optimize.Workers,
		"objective", obj,
		"bars", len(bars),
	)
	start := time.Now()

	results := optimize.NewRunner(cfg.Optimize.Workers, metrics).Run(ctx, bars, trials)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("grid search interrupted: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			slog.Debug("trial rejected", "trial", r.Trial.ID, "params", r.Trial.Label(), "err", r.Err)
		}
	}

	ranked := optimize.Rank(results, obj)
	console.PrintLeaderboard(optimize.Top(ranked, cfg.Optimize.Top), obj, len(results))

	slog.Info("grid search complete",
		"trials", len(results),
		"valid", len(ranked),
		"failed", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if opts.export {
		// válidos primero (ya ordenados), fallidos al final
		all := append([]optimize.TrialResult{}, ranked...)
		for _, r := range results {
			if r.Err != nil {
				all = append(all, r)
			}
		}
		path := filepath.Join(cfg.Export.Dir, fmt.Sprintf("trials_%s.csv", time.Now().UTC().Format("20060102T150405")))
		if err := csvfeed.WriteTrials(path, all); err != nil {
			return fmt.Errorf("export trials: %w", err)
		}
		slog.Info("trials exported", "path", path)
	}
	return nil
}
