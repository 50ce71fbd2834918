package service

import (
	"sync/atomic"
	"time"
)

// State: готовность процесса для /readyz. Готов, пока запущен движок.
type State struct {
	startedAt time.Time
	readyAt   atomic.Int64 // unix nano, 0: не готов
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) {
	if !v {
		s.readyAt.Store(0)
		return
	}
	s.readyAt.CompareAndSwap(0, time.Now().UnixNano())
}

func (s *State) Ready() bool { return s.readyAt.Load() != 0 }

// ReadySince: когда движок стал готов, нулевое время если не готов.
func (s *State) ReadySince() time.Time {
	ns := s.readyAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
