package helper

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// NormTF приводит таймфрейм к виду биржи: "15", "60m", "240" → "15m", "1h", "4h".
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "1", "3", "5", "15", "30":
		return s + "m"
	case "60", "60m":
		return "1h"
	case "120", "120m":
		return "2h"
	case "240", "240m":
		return "4h"
	case "360":
		return "6h"
	case "720":
		return "12h"
	case "d", "1440", "24h":
		return "1d"
	default:
		return s
	}
}

func TimeframeDuration(tf string) (time.Duration, bool) {
	d, ok := timeframes[NormTF(tf)]
	return d, ok
}

// NextBoundary: ближайшая граница слота interval после t, со сдвигом offset.
func NextBoundary(t time.Time, interval, offset time.Duration) time.Time {
	if interval <= 0 {
		return t
	}
	next := t.Truncate(interval).Add(offset)
	for !next.After(t) {
		next = next.Add(interval)
	}
	return next
}

// SleepCtx спит d или до отмены ctx. false: ctx отменён.
func SleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// FloorToStep режет значение вниз до шага без ошибок float.
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}
