package exchange

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cloud_bot/internal/helper"
	"cloud_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	fstreamURL        = "wss://fstream.binance.com"
	fstreamTestnetURL = "wss://stream.binancefuture.com"
)

type pricePoint struct {
	price float64
	at    time.Time
}

// PriceStream: один WebSocket с markPrice@1s по всем символам.
// Держит последнюю цену по символу для расчёта объёма.
type PriceStream struct {
	url      string
	wsDialer *websocket.Dialer
	log      *zap.Logger

	connected atomic.Bool

	mu     sync.RWMutex
	prices map[string]pricePoint
}

func NewPriceStream(symbols []string, testnet bool) *PriceStream {
	base := fstreamURL
	if testnet {
		base = fstreamTestnetURL
	}
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@markPrice@1s")
	}
	return &PriceStream{
		url:      base + "/stream?streams=" + strings.Join(streams, "/"),
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      logger.Named("ws"),
		prices:   make(map[string]pricePoint),
	}
}

// Connected: есть живое соединение. На nil-стриме (выключен в конфиге) false.
func (s *PriceStream) Connected() bool { return s != nil && s.connected.Load() }

func (s *PriceStream) SetPrice(symbol string, price float64, at time.Time) {
	s.mu.Lock()
	s.prices[symbol] = pricePoint{price: price, at: at}
	s.mu.Unlock()
}

// Price отдаёт цену, если она не старше maxAge.
func (s *PriceStream) Price(symbol string, maxAge time.Duration) (float64, bool) {
	s.mu.RLock()
	p, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok || p.price <= 0 || time.Since(p.at) > maxAge {
		return 0, false
	}
	return p.price, true
}

// Run крутит переподключение, пока жив ctx.
func (s *PriceStream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		s.log.Info("[WS] connect", zap.String("url", s.url))
		conn, _, err := s.wsDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.log.Warn("[WS] dial error", zap.Error(err))
			if !helper.SleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second
		s.connected.Store(true)

		// закрываем соединение при отмене, чтобы ReadMessage вернулся
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		s.readLoop(conn)
		stop()
		_ = conn.Close()
		s.connected.Store(false)

		if !helper.SleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (s *PriceStream) readLoop(conn *websocket.Conn) {
	for {
		// биржа шлёт markPrice раз в секунду, тишина дольше минуты: мёртвое соединение
		_ = conn.SetReadDeadline(time.Now().Add(time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.log.Warn("[WS] read error", zap.Error(err))
			return
		}
		s.handleFrame(msg)
	}
}

type markPriceFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		MarkPrice string `json:"p"`
	} `json:"data"`
}

func (s *PriceStream) handleFrame(msg []byte) bool {
	var frame markPriceFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return false
	}
	if frame.Data.Event != "markPriceUpdate" || frame.Data.Symbol == "" {
		return false
	}
	p, err := strconv.ParseFloat(frame.Data.MarkPrice, 64)
	if err != nil || p <= 0 {
		return false
	}
	at := time.Now()
	if frame.Data.EventTime > 0 {
		at = time.UnixMilli(frame.Data.EventTime)
	}
	s.SetPrice(frame.Data.Symbol, p, at)
	return true
}
