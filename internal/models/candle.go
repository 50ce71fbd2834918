package models

import "time"

// Candle: закрытая или формирующаяся свеча, упорядочены по OpenTime.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// CloudState: облако двух супертрендов на последней закрытой свече.
type CloudState struct {
	Upper      float64
	Lower      float64
	Close      float64
	Zone       Zone
	CandleTime time.Time
}

// ZoneOf классифицирует цену относительно границ облака.
func ZoneOf(close, upper, lower float64) Zone {
	switch {
	case close > upper:
		return ZoneOver
	case close < lower:
		return ZoneUnder
	default:
		return ZoneIn
	}
}
