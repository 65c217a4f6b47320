package ports

import (
	"context"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// RunStorage persiste los resultados de cada backtest.
type RunStorage interface {
	// SaveRun guarda el run completo (trades, equity y coberturas) en una transacción.
	// Devuelve domain.ErrDuplicateRun si el ID ya existe.
	SaveRun(ctx context.Context, run domain.RunRecord) error

	// GetRun devuelve el run con sus trades, curva y coberturas.
	// Devuelve domain.ErrRunNotFound si no existe.
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)

	// ListRuns devuelve los últimos runs, más recientes primero. limit <= 0 = todos.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
