package domain

import "math"

// minLegPrice is the floor applied to each option leg.
const minLegPrice = 0.01

// StraddleQuote is the model value of one call + one put at the same strike.
type StraddleQuote struct {
	Call      float64
	Put       float64
	Straddle  float64
	Intrinsic float64
	TimeValue float64
}

// TimeValueShare returns TimeValue / Straddle, or 0 for a worthless straddle.
func (q StraddleQuote) TimeValueShare() float64 {
	if q.Straddle <= 0 {
		return 0
	}
	return q.TimeValue / q.Straddle
}

// PriceStraddle valora un straddle con Black-Scholes y una aproximación
// cerrada de la normal acumulada. El put sale de la paridad put-call.
//
// tte está en años. La volatilidad se recorta a [minVol, maxVol].
// Con tte <= 0 (o spot/strike no positivos) devuelve solo el valor intrínseco.
func PriceStraddle(spot, strike, vol, tte, rate, minVol, maxVol float64) StraddleQuote {
	intrinsic := math.Abs(spot - strike)

	if tte <= 0 || spot <= 0 || strike <= 0 {
		call := math.Max(0, spot-strike)
		put := math.Max(0, strike-spot)
		return StraddleQuote{
			Call:      call,
			Put:       put,
			Straddle:  call + put,
			Intrinsic: intrinsic,
		}
	}

	vol = clampVol(vol, minVol, maxVol)

	sqrtT := math.Sqrt(tte)
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*tte) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	discounted := strike * math.Exp(-rate*tte)

	call := spot*normCDF(d1) - discounted*normCDF(d2)
	put := call - spot + discounted

	call = math.Max(minLegPrice, call)
	put = math.Max(minLegPrice, put)
	straddle := call + put

	return StraddleQuote{
		Call:      call,
		Put:       put,
		Straddle:  straddle,
		Intrinsic: intrinsic,
		TimeValue: math.Max(0, straddle-intrinsic),
	}
}

// HoursToYears converts hours into years of 365.25 days.
func HoursToYears(hours float64) float64 {
	return hours / (365.25 * 24)
}

// normCDF aproxima la normal acumulada: 0.5·(1 + sign(x)·√(1 − e^(−2x²/π))).
func normCDF(x float64) float64 {
	s := 1.0
	if x < 0 {
		s = -1.0
	} else if x == 0 {
		return 0.5
	}
	return 0.5 * (1 + s*math.Sqrt(1-math.Exp(-2*x*x/math.Pi)))
}

func clampVol(vol, minVol, maxVol float64) float64 {
	if math.IsNaN(vol) {
		return minVol
	}
	return math.Max(minVol, math.Min(maxVol, vol))
}
