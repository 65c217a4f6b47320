package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// BarRequest selecciona una serie OHLCV.
// From/To a cero significan sin límite por ese lado.
type BarRequest struct {
	Symbol   string
	Interval string // "1h", "4h", "1d"…
	From     time.Time
	To       time.Time
}

// BarProvider obtiene barras OHLCV crudas, ordenadas por tiempo.
// Los indicadores los calcula application/marketdata, no el proveedor.
type BarProvider interface {
	FetchBars(ctx context.Context, req BarRequest) ([]domain.Bar, error)
}
