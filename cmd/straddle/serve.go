package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/straddlebot/config"
	"github.com/alejandrodnm/straddlebot/internal/adapters/api"
	"github.com/alejandrodnm/straddlebot/internal/application/session"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/observability"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

const shutdownTimeout = 10 * time.Second

// runServe sirve el API hasta que ctx se cancela (SIGINT/SIGTERM).
func runServe(
	ctx context.Context,
	cfg *config.Config,
	bars []domain.Bar,
	store ports.RunStorage,
	metrics *observability.Metrics,
) error {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := api.NewServer(api.Deps{
		Session:        session.New(store, nil, metrics),
		Storage:        store,
		Metrics:        metrics,
		Dataset:        api.Dataset{Symbol: cfg.Data.Symbol, Interval: cfg.Data.Interval, Bars: bars},
		Base:           cfg.StrategyParams(),
		Profile:        cfg.Profile,
		AllowedOrigins: cfg.API.AllowedOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api listening", "addr", cfg.API.Addr, "bars", len(bars))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("api shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
