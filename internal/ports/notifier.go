package ports

import (
	"context"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Reporter presenta el resultado de un backtest al usuario.
type Reporter interface {
	// Report imprime resumen, métricas, desglose de salidas y coberturas.
	Report(ctx context.Context, result *domain.BacktestResult) error
}
