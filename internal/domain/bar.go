package domain

import (
	"math"
	"time"
)

// Bar es una vela OHLCV con los indicadores ya calculados.
// Los campos de indicador valen NaN mientras la ventana de cálculo no está completa.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64

	Volatility     float64 // desviación anualizada de los retornos
	VolPercentile  float64 // rango percentil de Volatility en [0,100], ventana corta
	VolatilityRank float64 // rango percentil de Volatility en [0,100], ventana larga
	RSI            float64
	VolumeRatio    float64 // volumen / media móvil del volumen
	SMA20          float64
	SMA50          float64
	Support        float64
	Resistance     float64
	PricePosition  float64 // (close - support) / (resistance - support)
	ATR            float64
}

// Check devuelve un motivo no vacío si la barra no se puede simular.
func (b Bar) Check() string {
	switch {
	case !finite(b.Close) || b.Close <= 0:
		return "close must be a positive finite price"
	case !finite(b.High) || !finite(b.Low) || b.High < b.Low:
		return "high/low are inconsistent"
	case !finite(b.Volatility) || b.Volatility < 0:
		return "volatility must be a non-negative finite number"
	}
	return ""
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
