package indicator

import (
	"math"
	"time"

	"cloud_bot/internal/models"

	"github.com/pkg/errors"
)

// ErrInsufficientHistory: закрытых свечей меньше минимума, цикл пропускается.
var ErrInsufficientHistory = errors.New("insufficient history")

type Params struct {
	Band1      BandParams
	Band2      BandParams
	Timeframe  time.Duration
	MinCandles int
}

// Cloud возвращает облако на последней закрытой к моменту now свече.
// Формирующиеся свечи (OpenTime+Timeframe > now) отбрасываются.
func Cloud(candles []models.Candle, p Params, now time.Time) (models.CloudState, error) {
	closed := ClosedOnly(candles, p.Timeframe, now)
	if len(closed) < p.MinCandles || len(closed) == 0 {
		return models.CloudState{}, errors.Wrapf(ErrInsufficientHistory, "have %d closed candles, need %d", len(closed), p.MinCandles)
	}

	n := len(closed)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	for i, c := range closed {
		high[i], low[i], cls[i] = c.High, c.Low, c.Close
	}

	st1 := SuperTrend(high, low, cls, p.Band1)
	st2 := SuperTrend(high, low, cls, p.Band2)

	last := n - 1
	upper := math.Max(st1.Value[last], st2.Value[last])
	lower := math.Min(st1.Value[last], st2.Value[last])

	return models.CloudState{
		Upper:      upper,
		Lower:      lower,
		Close:      cls[last],
		Zone:       models.ZoneOf(cls[last], upper, lower),
		CandleTime: closed[last].OpenTime,
	}, nil
}

// ClosedOnly обрезает хвост из незакрытых свечей.
func ClosedOnly(candles []models.Candle, timeframe time.Duration, now time.Time) []models.Candle {
	if timeframe <= 0 {
		return candles
	}
	end := len(candles)
	for end > 0 && candles[end-1].OpenTime.Add(timeframe).After(now) {
		end--
	}
	return candles[:end]
}
