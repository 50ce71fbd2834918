package runner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cloud_bot/internal/exchange"
	"cloud_bot/internal/journal"
	"cloud_bot/internal/models"
	"cloud_bot/internal/notify"
	"cloud_bot/internal/strategy"
	"cloud_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

type Config struct {
	Symbols           []string
	Leverage          int
	Isolated          bool
	TradingEnabled    bool
	ForceCloseTimeout time.Duration
	Worker            WorkerConfig
}

// Coordinator держит воркеры символов и общие флаги движка.
type Coordinator struct {
	cfg     Config
	gw      exchange.Gateway
	control *Control
	notify  notify.Notifier
	log     *zap.Logger
	now     func() time.Time

	workers []*Worker
	bySym   map[string]*Worker
	acks    chan ack

	connOK    atomic.Bool
	running   atomic.Bool
	startedAt atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(
	cfg Config,
	gw exchange.Gateway,
	exec *exchange.Executor,
	engine strategy.Engine,
	rec journal.Recorder,
	n notify.Notifier,
) *Coordinator {
	if rec == nil {
		rec = journal.Nop{}
	}
	if n == nil {
		n = notify.NewStdout()
	}

	c := &Coordinator{
		cfg:     cfg,
		gw:      gw,
		control: NewControl(cfg.TradingEnabled),
		notify:  n,
		log:     logger.Named("engine"),
		now:     time.Now,
		bySym:   make(map[string]*Worker, len(cfg.Symbols)),
		acks:    make(chan ack, len(cfg.Symbols)),
	}

	deps := workerDeps{
		gw:      gw,
		exec:    exec,
		engine:  engine,
		journal: rec,
		notify:  n,
		control: c.control,
		acks:    c.acks,
		conn:    &c.connOK,
		now:     func() time.Time { return c.now() },
	}
	wlog := logger.Named("worker")
	for _, s := range cfg.Symbols {
		w := newWorker(s, cfg.Worker, deps, wlog)
		c.workers = append(c.workers, w)
		c.bySym[s] = w
	}
	return c
}

// Start готовит символы и запускает воркеры. ctx ограничивает только подготовку.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("coordinator already started")
	}

	c.prepare(ctx)
	c.probe(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.startedAt.Store(c.now().UnixNano())
	c.running.Store(true)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.controlLoop(runCtx)
	}()
	for _, w := range c.workers {
		c.wg.Add(1)
		go func(w *Worker) {
			defer c.wg.Done()
			w.Run(runCtx)
		}(w)
	}

	c.log.Info("[ENGINE] started",
		zap.Strings("symbols", c.cfg.Symbols),
		zap.Bool("trading_enabled", c.control.TradingEnabled()),
	)
	c.notify.Sendf("🚀 Engine started: %d symbols, trading=%v", len(c.workers), c.control.TradingEnabled())
	return nil
}

// prepare выставляет плечо и режим маржи. Ошибки: только предупреждения.
func (c *Coordinator) prepare(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, s := range c.cfg.Symbols {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.cfg.Worker.CallTimeout)
			defer cancel()
			if err := c.gw.SetLeverage(cctx, s, c.cfg.Leverage, c.cfg.Isolated); err != nil {
				c.log.Warn("[ENGINE] set leverage failed", zap.String("symbol", s), zap.Error(err))
				return nil
			}
			c.log.Info("[ENGINE] leverage set", zap.String("symbol", s), zap.Int("leverage", c.cfg.Leverage))
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) probe(ctx context.Context) {
	if len(c.cfg.Symbols) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Worker.CallTimeout)
	defer cancel()

	_, err := c.gw.LastPrice(cctx, c.cfg.Symbols[0])
	c.connOK.Store(err == nil)
	if err != nil {
		c.log.Warn("[ENGINE] connectivity probe failed", zap.Error(err))
	}
}

func (c *Coordinator) controlLoop(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-c.acks:
			c.handleAck(a)
		case <-t.C:
			c.expireForceClose()
		}
	}
}

func (c *Coordinator) handleAck(a ack) {
	if c.control.ack(a.symbol, a.gen) {
		c.log.Info("[ENGINE] force close complete")
		c.notify.Send("✅ Force close complete")
	}
}

func (c *Coordinator) expireForceClose() {
	left, expired := c.control.expire(c.now())
	if !expired {
		return
	}
	sort.Strings(left)
	c.log.Warn("[ENGINE] force close timed out", zap.Strings("unconfirmed", left))
	c.notify.Sendf("⚠️ Force close timed out, unconfirmed: %v", left)
}

// Stop отменяет воркеры и ждёт текущие циклы либо дедлайн ctx.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	c.running.Store(false)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info("[ENGINE] stopped")
		return nil
	case <-ctx.Done():
		c.log.Warn("[ENGINE] stop deadline exceeded, cycles still in flight")
		return errors.Wrap(ctx.Err(), "engine stop")
	}
}

func (c *Coordinator) SetTradingEnabled(enabled bool) {
	c.control.setTradingEnabled(enabled)
	c.log.Info("[ENGINE] trading toggled", zap.Bool("enabled", enabled))
}

// ForceCloseAll просит все воркеры закрыть позиции в ближайшем цикле.
func (c *Coordinator) ForceCloseAll() {
	gen := c.control.requestForceClose(c.cfg.Symbols, c.now(), c.cfg.ForceCloseTimeout)
	c.log.Warn("[ENGINE] force close all requested", zap.Uint64("gen", gen))
}

func (c *Coordinator) ForceClose(symbol string) error {
	if _, ok := c.bySym[symbol]; !ok {
		return errors.Wrap(ErrUnknownSymbol, symbol)
	}
	gen := c.control.requestForceClose([]string{symbol}, c.now(), c.cfg.ForceCloseTimeout)
	c.log.Warn("[ENGINE] force close requested", zap.String("symbol", symbol), zap.Uint64("gen", gen))
	return nil
}

// Snapshot можно звать из любого числа горутин.
func (c *Coordinator) Snapshot() models.EngineSnapshot {
	now := c.now()
	s := models.EngineSnapshot{
		TradingEnabled:    c.control.TradingEnabled(),
		ForceClosePending: c.control.ForcePending(now),
		ConnectionOK:      c.connOK.Load(),
		Running:           c.running.Load(),
		Symbols:           make([]models.SymbolStatus, 0, len(c.workers)),
	}
	if ns := c.startedAt.Load(); ns != 0 {
		s.StartedAt = time.Unix(0, ns)
	}
	for _, w := range c.workers {
		s.Symbols = append(s.Symbols, w.Status())
	}
	return s
}
