package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// runHeader son las columnas de la tabla runs, comunes a los tres backends.
// Params, métricas y warnings viajan como JSON: cambian más que el schema.
type runHeader struct {
	ID            string
	Label         string
	Profile       string
	Symbol        string
	StartedAt     time.Time
	FinishedAt    time.Time
	FirstBar      time.Time
	LastBar       time.Time
	BarsProcessed int
	Halted        bool
	HaltReason    string
	HaltAt        time.Time
	TotalTrades   int
	TotalReturn   float64
	SharpeLike    float64
	MaxDrawdown   float64
	FinalCapital  float64
	ParamsJSON    string
	MetricsJSON   string
	WarningsJSON  string
}

// prepareRun valida el run y le asigna ID si no trae uno.
func prepareRun(run *domain.RunRecord) error {
	if run.Result == nil {
		return fmt.Errorf("run %q has no result", run.ID)
	}
	if run.ID == "" {
		run.ID = run.Result.RunID
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return nil
}

func encodeHeader(run domain.RunRecord) (runHeader, error) {
	res := run.Result
	params, err := json.Marshal(res.Params)
	if err != nil {
		return runHeader{}, fmt.Errorf("encode params: %w", err)
	}
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return runHeader{}, fmt.Errorf("encode metrics: %w", err)
	}
	warnings, err := json.Marshal(res.Warnings)
	if err != nil {
		return runHeader{}, fmt.Errorf("encode warnings: %w", err)
	}
	return runHeader{
		ID:            run.ID,
		Label:         run.Label,
		Profile:       run.Profile,
		Symbol:        run.Symbol,
		StartedAt:     res.StartedAt.UTC(),
		FinishedAt:    res.FinishedAt.UTC(),
		FirstBar:      res.FirstBar.UTC(),
		LastBar:       res.LastBar.UTC(),
		BarsProcessed: res.BarsProcessed,
		Halted:        res.Halt.Halted,
		HaltReason:    res.Halt.Reason,
		HaltAt:        res.Halt.Timestamp.UTC(),
		TotalTrades:   res.Metrics.TotalTrades,
		TotalReturn:   res.Metrics.TotalReturnPct,
		SharpeLike:    res.Metrics.SharpeLike,
		MaxDrawdown:   res.Metrics.MaxDrawdownPct,
		FinalCapital:  res.Metrics.FinalCapital,
		ParamsJSON:    string(params),
		MetricsJSON:   string(metrics),
		WarningsJSON:  string(warnings),
	}, nil
}

// decode reconstruye el RunRecord sin trades, curva ni coberturas.
func (h runHeader) decode() (domain.RunRecord, error) {
	res := &domain.BacktestResult{
		RunID:         h.ID,
		BarsProcessed: h.BarsProcessed,
		FirstBar:      h.FirstBar.UTC(),
		LastBar:       h.LastBar.UTC(),
		StartedAt:     h.StartedAt.UTC(),
		FinishedAt:    h.FinishedAt.UTC(),
		Halt:          domain.Halt{Halted: h.Halted, Reason: h.HaltReason},
	}
	if h.Halted {
		res.Halt.Timestamp = h.HaltAt.UTC()
	}
	if err := json.Unmarshal([]byte(h.ParamsJSON), &res.Params); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(h.MetricsJSON), &res.Metrics); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode metrics: %w", err)
	}
	if h.WarningsJSON != "" {
		if err := json.Unmarshal([]byte(h.WarningsJSON), &res.Warnings); err != nil {
			return domain.RunRecord{}, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return domain.RunRecord{
		ID:      h.ID,
		Label:   h.Label,
		Profile: h.Profile,
		Symbol:  h.Symbol,
		Result:  res,
	}, nil
}

func (h runHeader) summary() domain.RunSummary {
	return domain.RunSummary{
		ID:          h.ID,
		Label:       h.Label,
		Profile:     h.Profile,
		Symbol:      h.Symbol,
		StartedAt:   h.StartedAt.UTC(),
		TotalTrades: h.TotalTrades,
		TotalReturn: h.TotalReturn,
		SharpeLike:  h.SharpeLike,
		MaxDrawdown: h.MaxDrawdown,
		Halted:      h.Halted,
	}
}

// unixMilli / fromMilli: SQLite guarda instantes como enteros en ms UTC.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
