package marketdata

import (
	"math"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// maxBarJump es el movimiento cierre a cierre a partir del cual una barra se considera un error de datos.
const maxBarJump = 0.5

// CleanStats cuenta lo descartado por cada regla.
type CleanStats struct {
	Input        int
	Unordered    int // timestamp duplicado o hacia atrás
	NonPositive  int
	Inconsistent int // high < max(open, close) o low > min(open, close)
	Jumps        int
	Output       int
}

// Removed devuelve el total de barras descartadas.
func (s CleanStats) Removed() int { return s.Input - s.Output }

// Clean descarta barras que no se pueden usar. La comparación de saltos y de
// orden se hace contra la última barra conservada.
func Clean(bars []domain.Bar) ([]domain.Bar, CleanStats) {
	stats := CleanStats{Input: len(bars)}
	out := make([]domain.Bar, 0, len(bars))

	var prev *domain.Bar
	for _, b := range bars {
		switch {
		case prev != nil && !b.Timestamp.After(prev.Timestamp):
			stats.Unordered++
			continue
		case !positive(b.Open, b.High, b.Low, b.Close):
			stats.NonPositive++
			continue
		case b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close):
			stats.Inconsistent++
			continue
		case prev != nil && math.Abs(b.Close/prev.Close-1) >= maxBarJump:
			stats.Jumps++
			continue
		}
		out = append(out, b)
		prev = &out[len(out)-1]
	}

	stats.Output = len(out)
	return out, stats
}

func positive(xs ...float64) bool {
	for _, x := range xs {
		if !(x > 0) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// FilterRange conserva las barras con from <= ts <= to. Un límite a cero no filtra.
func FilterRange(bars []domain.Bar, from, to time.Time) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
