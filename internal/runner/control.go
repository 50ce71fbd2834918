package runner

import (
	"sync"
	"time"
)

// ControlView: согласованный срез флагов на один цикл воркера.
type ControlView struct {
	TradingEnabled bool
	// ForceClose: символ входит в незавершённый запрос принудительного закрытия.
	ForceClose bool
	ForceGen   uint64
}

type forceRequest struct {
	gen      uint64
	pending  map[string]struct{}
	deadline time.Time
}

// Control: общие флаги движка. Пишет только координатор,
// воркеры читают через View.
type Control struct {
	mu             sync.RWMutex
	tradingEnabled bool
	gen            uint64
	force          *forceRequest
}

func NewControl(tradingEnabled bool) *Control {
	return &Control{tradingEnabled: tradingEnabled}
}

func (c *Control) View(symbol string, now time.Time) ControlView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := ControlView{TradingEnabled: c.tradingEnabled}
	if f := c.force; f != nil && now.Before(f.deadline) {
		if _, ok := f.pending[symbol]; ok {
			v.ForceClose = true
			v.ForceGen = f.gen
		}
	}
	return v
}

func (c *Control) TradingEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tradingEnabled
}

// ForcePending: флаг force_close_pending для снапшота.
func (c *Control) ForcePending(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.force != nil && now.Before(c.force.deadline)
}

func (c *Control) setTradingEnabled(v bool) {
	c.mu.Lock()
	c.tradingEnabled = v
	c.mu.Unlock()
}

// requestForceClose открывает новое поколение запроса.
// Символы незавершённого запроса переносятся в новый.
func (c *Control) requestForceClose(symbols []string, now time.Time, timeout time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make(map[string]struct{}, len(symbols))
	if c.force != nil && now.Before(c.force.deadline) {
		for s := range c.force.pending {
			pending[s] = struct{}{}
		}
	}
	for _, s := range symbols {
		pending[s] = struct{}{}
	}

	c.gen++
	c.force = &forceRequest{gen: c.gen, pending: pending, deadline: now.Add(timeout)}
	return c.gen
}

// ack отмечает символ закрытым. true: подтвердили все, флаг снят.
func (c *Control) ack(symbol string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.force
	if f == nil || f.gen != gen {
		return false
	}
	delete(f.pending, symbol)
	if len(f.pending) == 0 {
		c.force = nil
		return true
	}
	return false
}

// expire снимает флаг по таймауту и возвращает символы, которые не ответили.
func (c *Control) expire(now time.Time) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.force
	if f == nil || now.Before(f.deadline) {
		return nil, false
	}
	left := make([]string, 0, len(f.pending))
	for s := range f.pending {
		left = append(left, s)
	}
	c.force = nil
	return left, true
}
