package strategy

import "github.com/alejandrodnm/straddlebot/internal/domain"

// Signal define el contrato de un evaluador de entradas.
// El driver del backtest solo conoce esta interfaz; los tests inyectan señales guionizadas.
type Signal interface {
	// Evaluate decide si abrir un straddle en la última barra de window.
	// window termina en "ahora" y no se modifica. Con historia insuficiente
	// devuelve false, nunca un error.
	Evaluate(window []domain.Bar) (bool, SignalInfo)
}

// SignalFunc adapta una función a Signal.
type SignalFunc func(window []domain.Bar) (bool, SignalInfo)

// Evaluate implementa Signal.
func (f SignalFunc) Evaluate(window []domain.Bar) (bool, SignalInfo) { return f(window) }

// Criteria son los siete filtros del evaluador.
type Criteria struct {
	Volatility    bool `json:"volatility"`
	Consolidation bool `json:"consolidation"`
	RSINeutral    bool `json:"rsi_neutral"`
	Volume        bool `json:"volume"`
	VolMomentum   bool `json:"vol_momentum"`
	NoStrongTrend bool `json:"no_strong_trend"`
	PricePosition bool `json:"price_position"`
}

// TotalCriteria is the number of fields in Criteria.
const TotalCriteria = 7

// Met cuenta los criterios cumplidos.
func (c Criteria) Met() int {
	n := 0
	for _, ok := range []bool{
		c.Volatility, c.Consolidation, c.RSINeutral, c.Volume,
		c.VolMomentum, c.NoStrongTrend, c.PricePosition,
	} {
		if ok {
			n++
		}
	}
	return n
}

// SignalInfo contiene la decisión y todas las medidas intermedias.
type SignalInfo struct {
	Quality         float64           `json:"quality"`
	Confidence      domain.Confidence `json:"confidence"`
	CriteriaMet     int               `json:"criteria_met"`
	Criteria        Criteria          `json:"criteria"`
	VolPercentile   float64           `json:"vol_percentile"`
	PriceRange      float64           `json:"price_range"`
	RSI             float64           `json:"rsi"`
	VolumeRatio     float64           `json:"volume_ratio"`
	Volatility      float64           `json:"volatility"`
	VolatilityMean  float64           `json:"volatility_mean"`
	TrendDivergence float64           `json:"trend_divergence"`
	PricePosition   float64           `json:"price_position"`
	Reason          string            `json:"reason,omitempty"`
}
