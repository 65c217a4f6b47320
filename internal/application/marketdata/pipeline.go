package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// Pipeline carga barras listas para el backtest: fetch → clean → enrich → warm-up → rango.
type Pipeline struct {
	provider ports.BarProvider
	lookback time.Duration
	periods  float64
}

// NewPipeline crea un Pipeline. lookback amplía el inicio pedido al proveedor
// para que los indicadores estén calientes en req.From.
func NewPipeline(provider ports.BarProvider, lookback time.Duration) *Pipeline {
	return &Pipeline{provider: provider, lookback: lookback}
}

// Annualize fija los periodos por año usados en la volatilidad. Con 0 se
// deducen del intervalo de la petición.
func (p *Pipeline) Annualize(periods float64) *Pipeline {
	p.periods = periods
	return p
}

// Load devuelve las barras enriquecidas de req.
func (p *Pipeline) Load(ctx context.Context, req ports.BarRequest) ([]domain.Bar, error) {
	fetch := req
	if !req.From.IsZero() && p.lookback > 0 {
		fetch.From = req.From.Add(-p.lookback)
	}

	raw, err := p.provider.FetchBars(ctx, fetch)
	if err != nil {
		return nil, fmt.Errorf("marketdata.Load: fetch %s: %w", req.Symbol, err)
	}

	cleaned, stats := Clean(raw)
	if stats.Removed() > 0 {
		slog.Info("marketdata: bars removed while cleaning",
			"removed", stats.Removed(),
			"unordered", stats.Unordered,
			"non_positive", stats.NonPositive,
			"inconsistent", stats.Inconsistent,
			"jumps", stats.Jumps,
		)
	}

	periods := p.periods
	if periods <= 0 {
		periods = PeriodsPerYear(req.Interval)
	}
	enriched := DropWarmup(Enrich(cleaned, periods))
	bars := FilterRange(enriched, req.From, req.To)
	if len(bars) == 0 {
		return nil, fmt.Errorf("marketdata.Load: %s: %w", req.Symbol, domain.ErrNoBars)
	}

	slog.Info("marketdata: bars ready",
		"symbol", req.Symbol,
		"raw", len(raw),
		"ready", len(bars),
		"from", bars[0].Timestamp,
		"to", bars[len(bars)-1].Timestamp,
	)
	return bars, nil
}
