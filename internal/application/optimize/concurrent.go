package optimize

// concurrent.go: worker pool de trials. Cada trial construye su propio Engine;
// las barras se comparten solo para lectura.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/application/backtest"
	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// TrialResult es el resultado de un trial. Err != nil si los parámetros no eran válidos
// o el backtest falló; en ese caso Metrics está vacío.
type TrialResult struct {
	Trial   Trial          `json:"trial"`
	Metrics domain.Metrics `json:"metrics"`
	Halted  bool           `json:"halted"`
	Err     error          `json:"-"`
	Elapsed time.Duration  `json:"elapsed"`
}

// Observer recibe el desenlace de cada trial (métricas Prometheus en producción).
type Observer interface {
	ObserveTrial(err error)
}

// Runner ejecuta trials en paralelo.
type Runner struct {
	workers    int
	observer   Observer
	engineOpts []backtest.Option
}

// NewRunner crea un Runner. Si workers <= 0 usa runtime.NumCPU() × 2.
// observer puede ser nil. engineOpts se aplican a cada Engine y deben ser
// seguras para uso concurrente (una Signal sin estado, por ejemplo).
func NewRunner(workers int, observer Observer, engineOpts ...backtest.Option) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	return &Runner{workers: workers, observer: observer, engineOpts: engineOpts}
}

// Run ejecuta todos los trials y devuelve los resultados en orden de Trial.ID.
// Si ctx se cancela los trials pendientes terminan con el error del contexto.
func (r *Runner) Run(ctx context.Context, bars []domain.Bar, trials []Trial) []TrialResult {
	workCh := make(chan Trial, len(trials))
	resultCh := make(chan TrialResult, len(trials))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workCh {
				res := r.runTrial(ctx, bars, t)
				if res.Err != nil {
					slog.Debug("optimize: trial failed", "trial", t.ID, "params", t.Label(), "err", res.Err)
				}
				if r.observer != nil {
					r.observer.ObserveTrial(res.Err)
				}
				resultCh <- res
			}
		}()
	}

	for _, t := range trials {
		workCh <- t
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]TrialResult, 0, len(trials))
	for res := range resultCh {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Trial.ID < results[j].Trial.ID })

	slog.Debug("optimize: trials complete", "trials", len(trials), "workers", r.workers)
	return results
}

func (r *Runner) runTrial(ctx context.Context, bars []domain.Bar, t Trial) TrialResult {
	start := time.Now()
	res := TrialResult{Trial: t}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	opts := append([]backtest.Option{backtest.WithRunID(fmt.Sprintf("trial-%d", t.ID))}, r.engineOpts...)
	engine, err := backtest.New(t.Params, opts...)
	if err != nil {
		res.Err = err
		return res
	}
	out, err := engine.Run(ctx, bars)
	if err != nil {
		res.Err = err
		return res
	}

	res.Metrics = out.Metrics
	res.Halted = out.Halt.Halted
	res.Elapsed = time.Since(start)
	return res
}

// Score devuelve el valor del objetivo para unas métricas.
func Score(m domain.Metrics, obj Objective) float64 {
	if obj == ObjectiveReturn {
		return m.TotalReturnPct
	}
	return m.SharpeLike
}

// Rank descarta los trials con error y ordena el resto por objetivo descendente;
// a igualdad gana el que tiene más trades, después el ID menor.
func Rank(results []TrialResult, obj Objective) []TrialResult {
	ranked := make([]TrialResult, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := Score(ranked[i].Metrics, obj), Score(ranked[j].Metrics, obj)
		if si != sj {
			return si > sj
		}
		if ranked[i].Metrics.TotalTrades != ranked[j].Metrics.TotalTrades {
			return ranked[i].Metrics.TotalTrades > ranked[j].Metrics.TotalTrades
		}
		return ranked[i].Trial.ID < ranked[j].Trial.ID
	})
	return ranked
}

// Top devuelve como mucho n resultados ya ordenados.
func Top(ranked []TrialResult, n int) []TrialResult {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
