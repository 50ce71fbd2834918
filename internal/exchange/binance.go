package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud_bot/internal/models"
	"cloud_bot/pkg/logger"
	"cloud_bot/pkg/tracing"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type BinanceConfig struct {
	APIKey            string
	APISecret         string
	Testnet           bool
	RequestsPerSecond float64
	Burst             int
	// PriceMaxAge: сколько считаем свежей цену из стрима.
	PriceMaxAge time.Duration
}

// Binance: шлюз USDT-M фьючерсов. Позиции в one-way режиме.
type Binance struct {
	client  *futures.Client
	limiter *rate.Limiter
	stream  *PriceStream
	maxAge  time.Duration
	log     *zap.Logger

	mu          sync.RWMutex
	instruments map[string]Instrument
}

var _ Gateway = (*Binance)(nil)

// NewBinance: stream может быть nil, тогда цена только через REST.
func NewBinance(cfg BinanceConfig, stream *PriceStream) *Binance {
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	maxAge := cfg.PriceMaxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}

	return &Binance{
		client:      binance.NewFuturesClient(cfg.APIKey, cfg.APISecret),
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		stream:      stream,
		maxAge:      maxAge,
		log:         logger.Named("binance"),
		instruments: make(map[string]Instrument),
	}
}

func (b *Binance) wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "throttle")
	}
	return nil
}

func (b *Binance) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (out []models.Candle, err error) {
	span, ctx := tracing.StartSpan(ctx, "binance.get_candles", symbol)
	defer func() { tracing.Finish(span, err) }()

	if err := b.wait(ctx); err != nil {
		return nil, readError("klines", symbol, err)
	}
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, readError("klines", symbol, err)
	}
	if len(klines) == 0 {
		return nil, errors.Wrapf(ErrDataUnavailable, "klines %s: empty response", symbol)
	}

	out = make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		c, perr := klineToCandle(k)
		if perr != nil {
			return nil, errors.Wrapf(ErrDataUnavailable, "klines %s: %v", symbol, perr)
		}
		out = append(out, c)
	}
	return NormalizeCandles(out), nil
}

func klineToCandle(k *futures.Kline) (models.Candle, error) {
	var (
		c   = models.Candle{OpenTime: time.UnixMilli(k.OpenTime).UTC()}
		err error
	)
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return c, err
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return c, err
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return c, err
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return c, err
	}
	c.Volume, _ = strconv.ParseFloat(k.Volume, 64)
	return c, nil
}

// NormalizeCandles сортирует по OpenTime и выкидывает дубли (остаётся последний).
func NormalizeCandles(cs []models.Candle) []models.Candle {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].OpenTime.Before(cs[j].OpenTime) })
	out := cs[:0]
	for _, c := range cs {
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(c.OpenTime) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *Binance) GetPosition(ctx context.Context, symbol string) (h models.Holding, err error) {
	span, ctx := tracing.StartSpan(ctx, "binance.get_position", symbol)
	defer func() { tracing.Finish(span, err) }()

	risk, err := b.positionRisk(ctx, symbol)
	if err != nil {
		return models.FlatHolding(symbol), err
	}
	return holdingFromRisk(symbol, risk), nil
}

func (b *Binance) positionRisk(ctx context.Context, symbol string) (*futures.PositionRisk, error) {
	if err := b.wait(ctx); err != nil {
		return nil, readError("position", symbol, err)
	}
	list, err := b.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, readError("position", symbol, err)
	}
	for _, p := range list {
		if p == nil || p.Symbol != symbol {
			continue
		}
		if amt, _ := strconv.ParseFloat(p.PositionAmt, 64); amt != 0 {
			return p, nil
		}
	}
	return nil, nil
}

func holdingFromRisk(symbol string, p *futures.PositionRisk) models.Holding {
	if p == nil {
		return models.FlatHolding(symbol)
	}
	amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
	if amt == 0 {
		return models.FlatHolding(symbol)
	}
	entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
	pnl, _ := strconv.ParseFloat(p.UnRealizedProfit, 64)

	h := models.Holding{
		Symbol:        symbol,
		Side:          models.SideLong,
		Quantity:      amt,
		EntryPrice:    entry,
		UnrealizedPnL: pnl,
	}
	if amt < 0 {
		h.Side = models.SideShort
		h.Quantity = -amt
	}
	return h
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int, isolated bool) (err error) {
	span, ctx := tracing.StartSpan(ctx, "binance.set_leverage", symbol)
	defer func() { tracing.Finish(span, err) }()

	marginType := futures.MarginTypeCrossed
	if isolated {
		marginType = futures.MarginTypeIsolated
	}
	if err := b.wait(ctx); err != nil {
		return err
	}
	err = b.client.NewChangeMarginTypeService().Symbol(symbol).MarginType(marginType).Do(ctx)
	if err != nil && !isNoChange(err) {
		return errors.Wrapf(err, "margin type %s %s", symbol, marginType)
	}

	if err := b.wait(ctx); err != nil {
		return err
	}
	if _, err := b.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil && !isNoChange(err) {
		return errors.Wrapf(err, "leverage %s x%d", symbol, leverage)
	}
	return nil
}

func (b *Binance) PlaceOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64) (res OrderResult, err error) {
	span, ctx := tracing.StartSpan(ctx, "binance.place_order", symbol)
	span.SetTag("side", string(side))
	defer func() { tracing.Finish(span, err) }()

	inst, err := b.Instrument(ctx, symbol)
	if err != nil {
		return res, WrapOrderError(ErrExchangeRejected, err)
	}
	qtyStr, ok := FormatQuantity(qty, inst.StepSize)
	if !ok {
		return res, NewOrderError(ErrInvalidQuantity, fmt.Sprintf("qty %v below step %v", qty, inst.StepSize))
	}
	return b.marketOrder(ctx, symbol, side, qtyStr, false)
}

func (b *Binance) marketOrder(ctx context.Context, symbol string, side models.OrderSide, qty string, reduceOnly bool) (OrderResult, error) {
	if err := b.wait(ctx); err != nil {
		// до биржи запрос не дошёл
		return OrderResult{}, WrapOrderError(ErrExchangeRejected, err)
	}
	clientID := uuid.NewString()
	svc := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewClientOrderID(clientID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return OrderResult{ClientOrderID: clientID}, orderErrorFrom(err)
	}

	q, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	b.log.Info("[EXEC] order filled",
		zap.String("symbol", symbol), zap.String("side", string(side)),
		zap.String("qty", qty), zap.Bool("reduceOnly", reduceOnly),
		zap.Int64("orderId", resp.OrderID), zap.String("status", string(resp.Status)))

	return OrderResult{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: clientID,
		Symbol:        symbol,
		Side:          side,
		Quantity:      q,
		AvgPrice:      avg,
		Status:        string(resp.Status),
		Time:          time.UnixMilli(resp.UpdateTime),
	}, nil
}

func (b *Binance) ClosePosition(ctx context.Context, symbol string) (err error) {
	span, ctx := tracing.StartSpan(ctx, "binance.close_position", symbol)
	defer func() { tracing.Finish(span, err) }()

	risk, err := b.positionRisk(ctx, symbol)
	if err != nil {
		return WrapOrderError(ErrExchangeRejected, err)
	}
	if risk == nil {
		return nil
	}

	side := models.OrderSell
	if strings.HasPrefix(risk.PositionAmt, "-") {
		side = models.OrderBuy
	}
	qty := strings.TrimPrefix(risk.PositionAmt, "-")

	_, err = b.marketOrder(ctx, symbol, side, qty, true)
	if err != nil && apiCode(err) == -2022 {
		// reduceOnly отклонён: позиции уже нет
		b.log.Warn("[EXEC] close skipped, position already gone", zap.String("symbol", symbol))
		return nil
	}
	return err
}

func (b *Binance) LastPrice(ctx context.Context, symbol string) (px float64, err error) {
	if b.stream != nil {
		if p, ok := b.stream.Price(symbol, b.maxAge); ok {
			return p, nil
		}
	}

	span, ctx := tracing.StartSpan(ctx, "binance.last_price", symbol)
	defer func() { tracing.Finish(span, err) }()

	if err := b.wait(ctx); err != nil {
		return 0, readError("price", symbol, err)
	}
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, readError("price", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			return strconv.ParseFloat(p.Price, 64)
		}
	}
	return 0, errors.Wrapf(ErrDataUnavailable, "price %s: not found", symbol)
}

func (b *Binance) Instrument(ctx context.Context, symbol string) (Instrument, error) {
	b.mu.RLock()
	inst, ok := b.instruments[symbol]
	b.mu.RUnlock()
	if ok {
		return inst, nil
	}

	if err := b.wait(ctx); err != nil {
		return Instrument{}, readError("exchange info", symbol, err)
	}
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return Instrument{}, readError("exchange info", symbol, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range info.Symbols {
		b.instruments[s.Symbol] = ParseFilters(s.Symbol, s.Filters)
	}
	inst, ok = b.instruments[symbol]
	if !ok {
		return Instrument{}, errors.Wrapf(ErrDataUnavailable, "instrument %s not listed", symbol)
	}
	return inst, nil
}

// ParseFilters достаёт шаг/лимиты из exchangeInfo.
func ParseFilters(symbol string, filters []map[string]interface{}) Instrument {
	inst := Instrument{Symbol: symbol}
	for _, f := range filters {
		switch f["filterType"] {
		case "LOT_SIZE":
			inst.StepSize = filterFloat(f, "stepSize")
			inst.MinQty = filterFloat(f, "minQty")
			inst.MaxQty = filterFloat(f, "maxQty")
		case "MARKET_LOT_SIZE":
			// для маркет-ордеров биржа смотрит этот фильтр, если он строже
			if v := filterFloat(f, "maxQty"); v > 0 && (inst.MaxQty == 0 || v < inst.MaxQty) {
				inst.MaxQty = v
			}
		case "MIN_NOTIONAL":
			inst.MinNotional = filterFloat(f, "notional")
		}
	}
	return inst
}

func filterFloat(f map[string]interface{}, key string) float64 {
	switch v := f[key].(type) {
	case string:
		x, _ := strconv.ParseFloat(v, 64)
		return x
	case float64:
		return v
	}
	return 0
}

// FormatQuantity режет qty вниз до шага и печатает без экспоненты.
func FormatQuantity(qty, step float64) (string, bool) {
	d := decimal.NewFromFloat(qty)
	if step > 0 {
		s := decimal.NewFromFloat(step)
		d = d.Div(s).Floor().Mul(s)
	}
	if !d.IsPositive() {
		return "", false
	}
	return d.String(), true
}

func readError(op, symbol string, err error) error {
	if isRateLimit(err) {
		return WrapDataError(errors.Wrapf(ErrRateLimited, "%s %s: %v", op, symbol, err))
	}
	return WrapDataError(errors.Wrapf(err, "%s %s", op, symbol))
}

func orderErrorFrom(err error) error {
	if IsTimeout(err) {
		return WrapOrderError(ErrOutcomeUnknown, err)
	}
	switch code := apiCode(err); code {
	case -2019, -2018:
		return WrapOrderError(ErrInsufficientMargin, err)
	case -1111, -1013, -4003, -4005, -4164:
		return WrapOrderError(ErrInvalidQuantity, err)
	case -1003, -1015:
		return WrapOrderError(ErrExchangeRejected, errors.Wrap(ErrRateLimited, err.Error()))
	}
	return WrapOrderError(ErrExchangeRejected, err)
}

func apiCode(err error) int64 {
	var pe *common.APIError
	if errors.As(err, &pe) && pe != nil {
		return pe.Code
	}
	return 0
}

func isRateLimit(err error) bool {
	switch apiCode(err) {
	case -1003, -1015:
		return true
	}
	return false
}

// isNoChange: биржа отвечает ошибкой, если режим маржи уже такой.
func isNoChange(err error) bool {
	if apiCode(err) == -4046 {
		return true
	}
	return strings.Contains(err.Error(), "No need to change")
}
