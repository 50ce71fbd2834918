package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"cloud_bot/internal/journal"
	"cloud_bot/internal/models"
	"cloud_bot/internal/modules/config"
	"cloud_bot/internal/modules/health/service"
	"cloud_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.HTTP.Addr}
}

// Controller: операции движка, доступные по HTTP.
type Controller interface {
	Snapshot() models.EngineSnapshot
	SetTradingEnabled(enabled bool)
	ForceCloseAll()
	ForceClose(symbol string) error
}

// StreamStatus: состояние стрима mark price.
type StreamStatus interface {
	Connected() bool
}

type Params struct {
	fx.In

	State   *service.State
	Control Controller
	Journal journal.Reader `optional:"true"`
	Stream  StreamStatus   `optional:"true"`
}

func NewMux(p Params) *http.ServeMux {
	mux := http.NewServeMux()
	streamOK := func() bool { return p.Stream != nil && p.Stream.Connected() }

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: движок запущен
		if !p.State.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := p.Control.Snapshot()
		var lastCycle time.Time
		for _, st := range snap.Symbols {
			if st.UpdatedAt.After(lastCycle) {
				lastCycle = st.UpdatedAt
			}
		}
		resp := map[string]any{
			"ready":          p.State.Ready(),
			"readySinceUnix": unixOrZero(p.State.ReadySince()),
			"connectionOk":   snap.ConnectionOK,
			"priceStreamOk":  streamOK(),
			"tradingEnabled": snap.TradingEnabled,
			"uptimeSec":      int64(p.State.Uptime().Seconds()),
			"lastCycleUnix":  unixOrZero(lastCycle),
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		snap := p.Control.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"bot_running":         snap.Running,
			"trading_enabled":     snap.TradingEnabled,
			"force_close_pending": snap.ForceClosePending,
			"connection_ok":       snap.ConnectionOK,
			"price_stream_ok":     streamOK(),
			"started_at":          snap.StartedAt,
		})
	})

	mux.HandleFunc("GET /api/positions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Control.Snapshot().Symbols)
	})

	mux.HandleFunc("GET /api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Control.Snapshot())
	})

	mux.HandleFunc("GET /api/journal", func(w http.ResponseWriter, r *http.Request) {
		if p.Journal == nil {
			writeJSON(w, http.StatusOK, []models.JournalEntry{})
			return
		}
		entries, err := p.Journal.Recent(r.Context(), r.URL.Query().Get("symbol"), 50)
		if err != nil {
			logger.Error("[HTTP] journal: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if entries == nil {
			entries = []models.JournalEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	mux.HandleFunc("POST /api/trading/start", func(w http.ResponseWriter, r *http.Request) {
		p.Control.SetTradingEnabled(true)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "trading_enabled": true})
	})

	mux.HandleFunc("POST /api/trading/stop", func(w http.ResponseWriter, r *http.Request) {
		p.Control.SetTradingEnabled(false)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "trading_enabled": false})
	})

	mux.HandleFunc("POST /api/trading/force-close-all", func(w http.ResponseWriter, r *http.Request) {
		p.Control.ForceCloseAll()
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "force_close_pending": true})
	})

	mux.HandleFunc("POST /api/trading/force-close/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.PathValue("symbol")
		if err := p.Control.ForceClose(symbol); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "symbol": symbol})
	})

	return mux
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		logger.Error("[HTTP] encode: %v", err)
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen %s", cfg.Addr)
			}
			logger.Info("[HTTP] listening on %s", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[HTTP] serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
