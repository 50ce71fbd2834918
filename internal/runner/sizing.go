package runner

import (
	"fmt"

	"cloud_bot/internal/exchange"
	"cloud_bot/internal/helper"

	"github.com/shopspring/decimal"
)

// OrderQuantity рассчитывает объём позиции в базовой валюте:
//   - маржа sizeUSDT × плечо / цена;
//   - округление вниз до шага лота;
//   - сверху режется по maxQty.
//
// Если после округления объём меньше minQty или minNotional, ордер не отправляется:
// вверх до минимума не округляем.
func OrderQuantity(sizeUSDT float64, leverage int, price float64, inst exchange.Instrument) (float64, error) {
	if sizeUSDT <= 0 || leverage <= 0 {
		return 0, exchange.NewOrderError(exchange.ErrInvalidQuantity,
			fmt.Sprintf("size=%.4f leverage=%d", sizeUSDT, leverage))
	}
	if price <= 0 {
		return 0, exchange.NewOrderError(exchange.ErrInvalidQuantity,
			fmt.Sprintf("%s: no price", inst.Symbol))
	}

	px := decimal.NewFromFloat(price)
	notional := decimal.NewFromFloat(sizeUSDT).Mul(decimal.NewFromInt(int64(leverage)))
	qty := helper.FloorToStep(notional.Div(px), decimal.NewFromFloat(inst.StepSize))

	if inst.MaxQty > 0 {
		if maxQty := decimal.NewFromFloat(inst.MaxQty); qty.GreaterThan(maxQty) {
			qty = helper.FloorToStep(maxQty, decimal.NewFromFloat(inst.StepSize))
		}
	}

	if !qty.IsPositive() {
		return 0, exchange.NewOrderError(exchange.ErrInvalidQuantity,
			fmt.Sprintf("%s: qty rounds to zero (step=%v)", inst.Symbol, inst.StepSize))
	}
	if inst.MinQty > 0 && qty.LessThan(decimal.NewFromFloat(inst.MinQty)) {
		return 0, exchange.NewOrderError(exchange.ErrInvalidQuantity,
			fmt.Sprintf("%s: qty %s below min %v", inst.Symbol, qty, inst.MinQty))
	}
	if inst.MinNotional > 0 && qty.Mul(px).LessThan(decimal.NewFromFloat(inst.MinNotional)) {
		return 0, exchange.NewOrderError(exchange.ErrInvalidQuantity,
			fmt.Sprintf("%s: notional %s below min %v", inst.Symbol, qty.Mul(px).StringFixed(4), inst.MinNotional))
	}

	f, _ := qty.Float64()
	return f, nil
}
