package marketdata

import (
	"math"

	indicatorv2 "github.com/c9s/bbgo/pkg/indicator/v2"
	"github.com/c9s/bbgo/pkg/types"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// HourlyPeriodsPerYear anualiza la volatilidad de barras horarias.
const HourlyPeriodsPerYear = 365 * 24

const (
	volWindow           = 20
	volPercentileWindow = 100
	volRankWindow       = 252
	rsiPeriod           = 14
	atrPeriod           = 14
	smaFast             = 20
	smaSlow             = 50
	volumeWindow        = 20
	rangeWindow         = 20
)

// PeriodsPerYear devuelve el factor de anualización de un intervalo tipo "1h", "4h", "1d".
// Intervalos desconocidos usan el horario.
func PeriodsPerYear(interval string) float64 {
	switch interval {
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "15m":
		return 365 * 24 * 4
	case "30m":
		return 365 * 24 * 2
	case "1h", "":
		return HourlyPeriodsPerYear
	case "2h":
		return 365 * 12
	case "4h":
		return 365 * 6
	case "12h":
		return 365 * 2
	case "1d":
		return 365
	}
	return HourlyPeriodsPerYear
}

// Enrich calcula todos los indicadores sobre una copia de bars.
// Las barras de calentamiento quedan con NaN; DropWarmup las elimina.
func Enrich(bars []domain.Bar, periodsPerYear float64) []domain.Bar {
	n := len(bars)
	out := make([]domain.Bar, n)
	copy(out, bars)
	if n == 0 {
		return out
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i], highs[i], lows[i], volumes[i] = b.Close, b.High, b.Low, b.Volume
	}

	// retornos y volatilidad realizada
	returns := make([]float64, n)
	returns[0] = math.NaN()
	for i := 1; i < n; i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}
	scale := math.Sqrt(periodsPerYear)
	volatility := rollingStd(returns, volWindow)
	for i := range volatility {
		volatility[i] *= scale
	}
	volPct := rollingPctRank(volatility, volPercentileWindow)
	volRank := rollingPctRank(volatility, volRankWindow)

	rsi := rsiSimple(closes, rsiPeriod)
	atr := smaSeries(trueRange(highs, lows, closes), atrPeriod)
	sma20 := smaSeries(closes, smaFast)
	sma50 := smaSeries(closes, smaSlow)
	volumeSMA := smaSeries(volumes, volumeWindow)
	support := rollingMin(lows, rangeWindow)
	resistance := rollingMax(highs, rangeWindow)

	for i := range out {
		b := &out[i]
		b.Volatility = volatility[i]
		b.VolPercentile = volPct[i]
		b.VolatilityRank = volRank[i]
		b.RSI = rsi[i]
		b.ATR = atr[i]
		b.SMA20 = sma20[i]
		b.SMA50 = sma50[i]
		b.VolumeRatio = ratio(volumes[i], volumeSMA[i])
		b.Support = support[i]
		b.Resistance = resistance[i]
		b.PricePosition = ratio(closes[i]-support[i], resistance[i]-support[i])
	}
	return out
}

// DropWarmup elimina las barras cuyos indicadores de señal no son finitos.
// VolatilityRank no cuenta: necesita 252 barras y la señal no lo usa.
func DropWarmup(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !allFinite(b.Volatility, b.VolPercentile, b.RSI, b.ATR, b.SMA20, b.SMA50,
			b.VolumeRatio, b.Support, b.Resistance, b.PricePosition) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func allFinite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// ratio devuelve NaN cuando el denominador es cero o NaN.
func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}

func trueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(highs))
	for i := range highs {
		tr[i] = highs[i] - lows[i]
		if i == 0 {
			continue
		}
		prev := closes[i-1]
		tr[i] = math.Max(tr[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
	}
	return tr
}

// smaSeries pasa xs por el SMA de bbgo. Las primeras window-1 posiciones
// quedan en NaN: el stream promedia lo que tiene durante el calentamiento.
func smaSeries(xs []float64, window int) []float64 {
	src := types.NewFloat64Series()
	sma := indicatorv2.SMA(src, window)

	out := make([]float64, len(xs))
	for i, x := range xs {
		src.PushAndEmit(x)
		out[i] = math.NaN()
		if i+1 >= window {
			out[i] = sma.Last(0)
		}
	}
	return out
}

// rsiSimple usa medias simples de ganancias y pérdidas (no Wilder, que es lo
// que implementan los RSI de bbgo y goti).
// Sin pérdidas el RSI es 100; sin movimiento es NaN.
func rsiSimple(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)

	out := make([]float64, n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// rolling aplica fn a cada ventana completa sin NaN; el resto es NaN.
func rolling(xs []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = math.NaN()
		if i+1 < window {
			continue
		}
		w := xs[i+1-window : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func rollingMean(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		sum := 0.0
		for _, x := range w {
			sum += x
		}
		return sum / float64(len(w))
	})
}

// rollingStd es la desviación muestral (n-1).
func rollingStd(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		m := 0.0
		for _, x := range w {
			m += x
		}
		m /= float64(len(w))
		ss := 0.0
		for _, x := range w {
			ss += (x - m) * (x - m)
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

func rollingMin(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		m := w[0]
		for _, x := range w[1:] {
			m = math.Min(m, x)
		}
		return m
	})
}

func rollingMax(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		m := w[0]
		for _, x := range w[1:] {
			m = math.Max(m, x)
		}
		return m
	})
}

// rollingPctRank es el rango percentil (0-100) del último valor de cada ventana.
// Los empates reciben el rango medio.
func rollingPctRank(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		last := w[len(w)-1]
		less, equal := 0, 0
		for _, x := range w {
			switch {
			case x < last:
				less++
			case x == last:
				equal++
			}
		}
		rank := float64(less) + float64(equal+1)/2
		return rank / float64(len(w)) * 100
	})
}
