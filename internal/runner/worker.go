package runner

import (
	"context"
	"sync/atomic"
	"time"

	"cloud_bot/internal/exchange"
	"cloud_bot/internal/helper"
	"cloud_bot/internal/indicator"
	"cloud_bot/internal/journal"
	"cloud_bot/internal/models"
	"cloud_bot/internal/notify"
	"cloud_bot/internal/strategy"
	"cloud_bot/pkg/tracing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrReconciliationMismatch: локальное ожидание не совпало с биржей. Верим бирже.
var ErrReconciliationMismatch = errors.New("reconciliation mismatch")

type WorkerConfig struct {
	Timeframe        string
	CandlesLimit     int
	PositionSizeUSDT float64
	Leverage         int

	CallTimeout  time.Duration
	OrderTimeout time.Duration

	CycleInterval time.Duration
	CycleOffset   time.Duration
	MaxBackoff    time.Duration
}

type ack struct {
	symbol string
	gen    uint64
}

// workerDeps: общее для всех воркеров, собирается координатором.
type workerDeps struct {
	gw      exchange.Gateway
	exec    *exchange.Executor
	engine  strategy.Engine
	journal journal.Recorder
	notify  notify.Notifier
	control *Control
	acks    chan<- ack
	conn    *atomic.Bool
	now     func() time.Time
}

// Worker ведёт один символ. Всё, кроме status, трогает только своя горутина.
type Worker struct {
	symbol string
	cfg    WorkerConfig
	deps   workerDeps
	log    *zap.Logger

	prev      *models.CloudState
	expected  *models.Side
	forceSeen uint64
	backoff   time.Duration

	status atomic.Pointer[models.SymbolStatus]
}

func newWorker(symbol string, cfg WorkerConfig, deps workerDeps, log *zap.Logger) *Worker {
	if deps.now == nil {
		deps.now = time.Now
	}
	w := &Worker{
		symbol: symbol,
		cfg:    cfg,
		deps:   deps,
		log:    log.With(zap.String("symbol", symbol)),
	}
	w.status.Store(&models.SymbolStatus{Symbol: symbol, Side: models.SideFlat, Zone: models.ZoneNone})
	return w
}

func (w *Worker) Symbol() string { return w.symbol }

// Status: последний опубликованный статус, безопасно из любой горутины.
func (w *Worker) Status() models.SymbolStatus { return *w.status.Load() }

// Run крутит циклы до отмены ctx. Первый цикл: сразу.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("[WORKER] started")
	defer w.log.Info("[WORKER] stopped")

	for {
		err := w.safeCycle(ctx)
		if !helper.SleepCtx(ctx, w.nextDelay(w.deps.now(), err)) {
			return
		}
	}
}

func (w *Worker) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic in cycle: %v", p)
			w.log.Error("[WORKER] panic", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()
	return w.runCycle(ctx)
}

// nextDelay: до следующей границы цикла; после rate limit не меньше backoff.
func (w *Worker) nextDelay(now time.Time, err error) time.Duration {
	wait := helper.NextBoundary(now, w.cfg.CycleInterval, w.cfg.CycleOffset).Sub(now)
	if !errors.Is(err, exchange.ErrRateLimited) {
		w.backoff = 0
		return wait
	}

	if w.backoff == 0 {
		w.backoff = w.cfg.CycleInterval
	} else {
		w.backoff *= 2
	}
	if w.cfg.MaxBackoff > 0 && w.backoff > w.cfg.MaxBackoff {
		w.backoff = w.cfg.MaxBackoff
	}
	w.log.Warn("[WORKER] rate limited, backing off", zap.Duration("backoff", w.backoff))
	return max(wait, w.backoff)
}

// callCtx: вызовы биржи не рвутся остановкой движка, их держит только таймаут.
func callCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

func (w *Worker) runCycle(ctx context.Context) (err error) {
	span, ctx := tracing.StartSpan(ctx, "worker.cycle", w.symbol)
	now := w.deps.now()
	st := w.Status()

	defer func() {
		st.UpdatedAt = w.deps.now()
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
		w.status.Store(&st)
		tracing.Finish(span, err)
	}()

	// остановка: новый цикл не начинаем
	if err := ctx.Err(); err != nil {
		return err
	}

	// 1. принудительное закрытие важнее облака
	view := w.deps.control.View(w.symbol, now)
	if view.ForceClose && view.ForceGen != w.forceSeen {
		return w.forceClose(ctx, view.ForceGen, &st)
	}

	// 2. свечи
	candles, err := w.fetchCandles(ctx)
	if err != nil {
		w.log.Warn("[WORKER] candles unavailable", zap.Error(err))
		return err
	}

	// 3. облако и переход; prev двигаем всегда, даже на паузе
	cloud, err := w.deps.engine.Evaluate(candles, now)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientHistory) {
			w.log.Info("[WORKER] not enough history", zap.Int("candles", len(candles)))
		} else {
			w.log.Error("[WORKER] indicator failed", zap.Error(err))
		}
		return err
	}
	tr := strategy.Classify(w.prev, &cloud)
	w.prev = &cloud

	st.Zone = cloud.Zone
	st.Upper = cloud.Upper
	st.Lower = cloud.Lower
	st.LastCandleTime = cloud.CandleTime
	st.LastTransition = tr

	// 4. сверка с биржей
	holding, err := w.reconcile(ctx)
	if err != nil {
		w.log.Warn("[WORKER] reconcile failed", zap.Error(err))
		return err
	}
	applyHolding(&st, holding)

	// 5. решение автомата
	next, intent := strategy.Decide(holding.Side, tr)
	if intent == models.IntentNone {
		return nil
	}
	st.LastIntent = intent
	w.log.Info("[WORKER] signal",
		zap.String("transition", string(tr)),
		zap.String("side", string(holding.Side)),
		zap.String("intent", string(intent)),
		zap.String("zone", string(cloud.Zone)),
		zap.Float64("close", cloud.Close),
		zap.Float64("upper", cloud.Upper),
		zap.Float64("lower", cloud.Lower),
	)

	entry := models.JournalEntry{
		Symbol:     w.symbol,
		Intent:     intent,
		Transition: tr,
		SideBefore: holding.Side,
		SideAfter:  next,
		CreatedAt:  now,
	}

	// 6. пауза: решение только фиксируем
	if !view.TradingEnabled {
		entry.Status = models.JournalPaused
		entry.SideAfter = holding.Side
		w.record(ctx, entry)
		w.log.Info("[WORKER] trading disabled, intent not executed", zap.String("intent", string(intent)))
		return nil
	}

	// 7. исполнение. После отмены ctx новых ордеров не шлём, дожидаемся только начатых вызовов
	if err := ctx.Err(); err != nil {
		w.log.Info("[WORKER] stopping, intent not executed", zap.String("intent", string(intent)))
		return err
	}
	return w.execute(ctx, intent, next, cloud.Close, entry, &st)
}

func (w *Worker) fetchCandles(ctx context.Context) ([]models.Candle, error) {
	cctx, cancel := callCtx(ctx, w.cfg.CallTimeout)
	defer cancel()

	candles, err := w.deps.gw.GetCandles(cctx, w.symbol, w.cfg.Timeframe, w.cfg.CandlesLimit)
	w.markConnection(err)
	if err != nil {
		return nil, exchange.WrapDataError(err)
	}
	return candles, nil
}

func (w *Worker) markConnection(err error) {
	if w.deps.conn != nil {
		w.deps.conn.Store(err == nil)
	}
}

// reconcile читает позицию с биржи и сравнивает с тем, что ждали после прошлого ордера.
func (w *Worker) reconcile(ctx context.Context) (models.Holding, error) {
	cctx, cancel := callCtx(ctx, w.cfg.CallTimeout)
	defer cancel()

	h, err := w.deps.gw.GetPosition(cctx, w.symbol)
	if err != nil {
		return h, exchange.WrapDataError(err)
	}
	if h.IsFlat() {
		h = models.Holding{Symbol: w.symbol, Side: models.SideFlat}
	}

	if w.expected != nil && *w.expected != h.Side {
		w.log.Warn("[WORKER] position differs from expected, using exchange",
			zap.Error(ErrReconciliationMismatch),
			zap.String("expected", string(*w.expected)),
			zap.String("exchange", string(h.Side)),
			zap.Float64("qty", h.Quantity),
		)
	}
	side := h.Side
	w.expected = &side
	return h, nil
}

func (w *Worker) execute(
	ctx context.Context,
	intent models.Intent,
	next models.Side,
	candleClose float64,
	entry models.JournalEntry,
	st *models.SymbolStatus,
) error {
	var qty, price float64
	if intent.Opens() {
		var err error
		price = w.price(ctx, candleClose)
		qty, err = w.quantity(ctx, price)
		if err != nil {
			w.fail(ctx, entry, err, models.JournalFailed)
			return err
		}
	}
	entry.Quantity = qty
	entry.Price = price

	octx, cancel := callCtx(ctx, w.cfg.OrderTimeout)
	res, err := w.deps.exec.Execute(octx, exchange.Order{Symbol: w.symbol, Intent: intent, Quantity: qty})
	cancel()

	if res.Opened != nil {
		entry.OrderID = res.Opened.OrderID
		if res.Opened.AvgPrice > 0 {
			entry.Price = res.Opened.AvgPrice
		}
	}
	if res.Closed || res.Opened != nil {
		st.LastOrderTime = w.deps.now()
	}

	switch {
	case err == nil:
		w.expected = &next
		entry.Status = models.JournalExecuted
		w.record(ctx, entry)
		w.log.Info("[WORKER] executed",
			zap.String("intent", string(intent)),
			zap.Float64("qty", qty),
			zap.String("order_id", entry.OrderID),
		)
		w.deps.notify.Sendf("✅ %s %s qty=%g price=%g", w.symbol, intent, qty, entry.Price)

	case errors.Is(err, exchange.ErrOutcomeUnknown):
		// ордер мог пройти: ожидание сбрасываем, следующий цикл сверится с биржей
		w.expected = nil
		w.fail(ctx, entry, err, models.JournalUnknown)

	case res.Stage == exchange.StageLeftFlat:
		flat := models.SideFlat
		w.expected = &flat
		entry.SideAfter = models.SideFlat
		w.fail(ctx, entry, err, models.JournalFailed)

	default:
		w.fail(ctx, entry, err, models.JournalFailed)
	}

	if ctx.Err() == nil {
		w.resync(ctx, st)
	}
	return err
}

func (w *Worker) fail(ctx context.Context, entry models.JournalEntry, err error, status models.JournalStatus) {
	entry.Status = status
	entry.Error = err.Error()
	w.record(ctx, entry)
	w.log.Error("[WORKER] order failed",
		zap.String("intent", string(entry.Intent)),
		zap.String("status", string(status)),
		zap.Error(err),
	)
	w.deps.notify.Sendf("❌ %s %s: %v", w.symbol, entry.Intent, err)
}

// price: поток mark price / REST внутри шлюза, иначе закрытие свечи.
func (w *Worker) price(ctx context.Context, candleClose float64) float64 {
	cctx, cancel := callCtx(ctx, w.cfg.CallTimeout)
	defer cancel()

	px, err := w.deps.gw.LastPrice(cctx, w.symbol)
	if err != nil || px <= 0 {
		w.log.Warn("[WORKER] no ticker, using candle close", zap.Float64("close", candleClose), zap.Error(err))
		return candleClose
	}
	return px
}

func (w *Worker) quantity(ctx context.Context, price float64) (float64, error) {
	cctx, cancel := callCtx(ctx, w.cfg.CallTimeout)
	defer cancel()

	inst, err := w.deps.gw.Instrument(cctx, w.symbol)
	if err != nil {
		return 0, exchange.WrapOrderError(exchange.ErrExchangeRejected, err)
	}
	return OrderQuantity(w.cfg.PositionSizeUSDT, w.cfg.Leverage, price, inst)
}

// resync перечитывает позицию после ордера, чтобы в статусе были qty, вход и PnL.
func (w *Worker) resync(ctx context.Context, st *models.SymbolStatus) {
	cctx, cancel := callCtx(ctx, w.cfg.CallTimeout)
	defer cancel()

	h, err := w.deps.gw.GetPosition(cctx, w.symbol)
	if err != nil {
		w.log.Warn("[WORKER] post-trade resync failed", zap.Error(err))
		return
	}
	applyHolding(st, h)
}

func (w *Worker) forceClose(ctx context.Context, gen uint64, st *models.SymbolStatus) (err error) {
	span, ctx := tracing.StartSpan(ctx, "worker.force_close", w.symbol)
	defer func() { tracing.Finish(span, err) }()

	holding, err := w.reconcile(ctx)
	if err != nil {
		w.log.Warn("[WORKER] force close: position unavailable", zap.Error(err))
		return err
	}
	applyHolding(st, holding)

	if !holding.IsFlat() {
		entry := models.JournalEntry{
			Symbol:     w.symbol,
			Intent:     models.IntentClose,
			Transition: models.TransitionNone,
			SideBefore: holding.Side,
			SideAfter:  models.SideFlat,
			Quantity:   holding.Quantity,
			CreatedAt:  w.deps.now(),
		}

		if err = ctx.Err(); err != nil {
			w.log.Info("[WORKER] stopping, force close postponed")
			return err
		}

		octx, cancel := callCtx(ctx, w.cfg.OrderTimeout)
		_, err = w.deps.exec.Execute(octx, exchange.Order{Symbol: w.symbol, Intent: models.IntentClose})
		cancel()
		if err != nil {
			// без ack: повторим на следующем цикле, пока не истечёт таймаут запроса
			if errors.Is(err, exchange.ErrOutcomeUnknown) {
				w.expected = nil
			}
			w.fail(ctx, entry, err, models.JournalFailed)
			return err
		}

		entry.Status = models.JournalForced
		w.record(ctx, entry)
		st.LastIntent = models.IntentClose
		st.LastOrderTime = w.deps.now()
		w.deps.notify.Sendf("🧯 %s force closed (%s %g)", w.symbol, holding.Side, holding.Quantity)
		w.log.Info("[WORKER] force closed", zap.String("side", string(holding.Side)), zap.Float64("qty", holding.Quantity))
	}

	flat := models.SideFlat
	w.expected = &flat
	applyHolding(st, models.FlatHolding(w.symbol))
	w.forceSeen = gen

	if w.deps.acks != nil {
		select {
		case w.deps.acks <- ack{symbol: w.symbol, gen: gen}:
		case <-ctx.Done():
		}
	}
	return nil
}

func (w *Worker) record(ctx context.Context, e models.JournalEntry) {
	if w.deps.journal == nil {
		return
	}
	cctx, cancel := callCtx(ctx, w.cfg.CallTimeout)
	defer cancel()
	if err := w.deps.journal.Record(cctx, e); err != nil {
		w.log.Warn("[JOURNAL] record failed", zap.Error(err))
	}
}

func applyHolding(st *models.SymbolStatus, h models.Holding) {
	st.Side = h.Side
	if h.IsFlat() {
		st.Side = models.SideFlat
	}
	st.Quantity = h.Quantity
	st.EntryPrice = h.EntryPrice
	st.UnrealizedPnL = h.UnrealizedPnL
}
