package strategy

import (
	"math"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Evaluator puntúa la última barra de una ventana con los siete criterios del straddle.
type Evaluator struct {
	p domain.StrategyParams
}

// NewEvaluator crea un evaluador para los parámetros dados.
func NewEvaluator(p domain.StrategyParams) *Evaluator {
	return &Evaluator{p: p}
}

var _ Signal = (*Evaluator)(nil)

// Evaluate implementa Signal.
func (e *Evaluator) Evaluate(window []domain.Bar) (bool, SignalInfo) {
	p := e.p
	if len(window) < p.MinHistoryBars || len(window) == 0 {
		return false, SignalInfo{Confidence: domain.ConfidenceLow, Reason: "insufficient history"}
	}

	last := window[len(window)-1]
	info := SignalInfo{
		VolPercentile: last.VolPercentile,
		RSI:           last.RSI,
		VolumeRatio:   last.VolumeRatio,
		Volatility:    last.Volatility,
		PricePosition: last.PricePosition,
	}

	// 1. volatilidad alta respecto a su historia
	info.Criteria.Volatility = last.VolPercentile >= p.VolatilityThreshold

	// 2. consolidación: ni plano ni roto
	hi, lo := rangeOf(tail(window, p.RangeLookback))
	info.PriceRange = (hi - lo) / last.Close
	info.Criteria.Consolidation = info.PriceRange > p.ConsolidationMin && info.PriceRange < p.MaxPriceRange

	// 3. RSI neutral
	info.Criteria.RSINeutral = last.RSI > p.RSIMin && last.RSI < p.RSIMax

	// 4. volumen por encima de su media
	info.Criteria.Volume = last.VolumeRatio > p.MinVolumeRatio

	// 5. volatilidad en subida
	info.VolatilityMean = meanVolatility(tail(window, p.VolMomentumLookback))
	info.Criteria.VolMomentum = last.Volatility > info.VolatilityMean

	// 6. sin tendencia fuerte
	info.TrendDivergence = math.Abs(last.SMA20-last.SMA50) / last.Close
	if p.TrendFilter {
		info.Criteria.NoStrongTrend = info.TrendDivergence < p.MaxTrendDivergence
	} else {
		info.Criteria.NoStrongTrend = true
	}

	// 7. precio en mitad del rango
	info.Criteria.PricePosition = last.PricePosition > p.PricePositionMin && last.PricePosition < p.PricePositionMax

	info.CriteriaMet = info.Criteria.Met()
	info.Quality = float64(info.CriteriaMet) / TotalCriteria
	info.Confidence = e.tier(info.Quality)

	return info.Quality >= p.MinSignalQuality, info
}

func (e *Evaluator) tier(quality float64) domain.Confidence {
	switch {
	case quality >= e.p.HighConfidence:
		return domain.ConfidenceHigh
	case quality >= e.p.MediumConfidence:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func tail(bars []domain.Bar, n int) []domain.Bar {
	if n <= 0 || n >= len(bars) {
		return bars
	}
	return bars[len(bars)-n:]
}

func rangeOf(bars []domain.Bar) (hi, lo float64) {
	hi, lo = math.Inf(-1), math.Inf(1)
	for _, b := range bars {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	return hi, lo
}

// meanVolatility ignora los NaN del calentamiento, como una media móvil con datos parciales.
func meanVolatility(bars []domain.Bar) float64 {
	sum, n := 0.0, 0
	for _, b := range bars {
		if math.IsNaN(b.Volatility) {
			continue
		}
		sum += b.Volatility
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
