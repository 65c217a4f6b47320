// Package session orquesta un backtest de punta a punta:
// engine → reporter → storage → métricas.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/application/backtest"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// RunObserver recibe el desenlace de cada run (Prometheus en producción).
type RunObserver interface {
	ObserveRun(res *domain.BacktestResult, elapsed time.Duration, err error)
}

// Request describe un run: parámetros ya resueltos más las etiquetas que se persisten.
type Request struct {
	Params  domain.StrategyParams
	Label   string
	Profile string
	Symbol  string
}

// Outcome es lo que devuelve Execute. Stored es false si no hay storage o falló al guardar.
type Outcome struct {
	Record domain.RunRecord
	Stored bool
}

// Session tiene todas las dependencias inyectadas; cualquiera puede ser nil salvo el engine.
type Session struct {
	storage    ports.RunStorage
	reporter   ports.Reporter
	observer   RunObserver
	engineOpts []backtest.Option
}

// New crea una Session. storage, reporter y observer son opcionales.
func New(storage ports.RunStorage, reporter ports.Reporter, observer RunObserver, engineOpts ...backtest.Option) *Session {
	return &Session{
		storage:    storage,
		reporter:   reporter,
		observer:   observer,
		engineOpts: engineOpts,
	}
}

// Execute corre el backtest sobre bars. Un error del engine (parámetros, barras,
// contexto) se devuelve tal cual y no deja nada persistido. Los fallos del
// reporter o del storage solo se registran: el resultado sigue siendo válido.
func (s *Session) Execute(ctx context.Context, req Request, bars []domain.Bar) (Outcome, error) {
	start := time.Now()

	res, err := s.run(ctx, req.Params, bars)
	if s.observer != nil {
		s.observer.ObserveRun(res, time.Since(start), err)
	}
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Record: domain.RunRecord{
		ID:      res.RunID,
		Label:   req.Label,
		Profile: req.Profile,
		Symbol:  req.Symbol,
		Result:  res,
	}}

	if s.reporter != nil {
		if err := s.reporter.Report(ctx, res); err != nil {
			slog.Warn("session: reporter error", "err", err)
		}
	}

	if s.storage != nil {
		if err := s.storage.SaveRun(ctx, out.Record); err != nil {
			slog.Warn("session: storage error", "run_id", res.RunID, "err", err)
		} else {
			out.Stored = true
		}
	}

	slog.Info("session: run complete",
		"run_id", res.RunID,
		"profile", req.Profile,
		"symbol", req.Symbol,
		"stored", out.Stored,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}

func (s *Session) run(ctx context.Context, params domain.StrategyParams, bars []domain.Bar) (*domain.BacktestResult, error) {
	engine, err := backtest.New(params, s.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("session.Execute: %w", err)
	}
	res, err := engine.Run(ctx, bars)
	if err != nil {
		return nil, fmt.Errorf("session.Execute: %w", err)
	}
	return res, nil
}
