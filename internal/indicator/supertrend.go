package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// BandParams: пара (период ATR, множитель) одного супертренда.
type BandParams struct {
	Period     int
	Multiplier float64
}

// Band: ряд значений супертренда и его направление на каждом баре.
type Band struct {
	Value   []float64
	Bullish []bool
}

// SuperTrend считает одну полосу по high/low/close одинаковой длины.
// ATR: сглаживание Уайлдера, первый бар засевается первым TR.
func SuperTrend(high, low, close []float64, p BandParams) Band {
	n := len(close)
	band := Band{Value: make([]float64, n), Bullish: make([]bool, n)}
	if n == 0 {
		return band
	}

	tr := talib.TRange(high, low, close)
	tr[0] = high[0] - low[0]

	atr := make([]float64, n)
	alpha := 1.0 / float64(p.Period)
	for i := range n {
		v := tr[i]
		if !finite(v) {
			v = 0
		}
		if i == 0 {
			atr[i] = v
			continue
		}
		atr[i] = atr[i-1] + alpha*(v-atr[i-1])
	}

	upper := make([]float64, n)
	lower := make([]float64, n)
	bullish := true
	for i := range n {
		hl2 := (high[i] + low[i]) / 2
		basicUpper := hl2 + p.Multiplier*atr[i]
		basicLower := hl2 - p.Multiplier*atr[i]

		if i == 0 {
			upper[i], lower[i] = basicUpper, basicLower
		} else {
			// полоса подтягивается только к цене, пока цена её не пробила
			upper[i] = upper[i-1]
			if basicUpper < upper[i-1] || close[i-1] > upper[i-1] || !finite(upper[i-1]) {
				upper[i] = basicUpper
			}
			lower[i] = lower[i-1]
			if basicLower > lower[i-1] || close[i-1] < lower[i-1] || !finite(lower[i-1]) {
				lower[i] = basicLower
			}

			if bullish && close[i] < lower[i-1] {
				bullish = false
			} else if !bullish && close[i] > upper[i-1] {
				bullish = true
			}
		}

		band.Bullish[i] = bullish
		if bullish {
			band.Value[i] = lower[i]
		} else {
			band.Value[i] = upper[i]
		}
	}
	return band
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
