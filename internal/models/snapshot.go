package models

import "time"

// SymbolStatus: то, что воркер публикует наружу после каждого цикла.
// Значение неизменяемо после публикации.
type SymbolStatus struct {
	Symbol         string     `json:"symbol"`
	Side           Side       `json:"pos_state"`
	Quantity       float64    `json:"qty"`
	EntryPrice     float64    `json:"entry_price"`
	UnrealizedPnL  float64    `json:"unrealized_pnl"`
	Zone           Zone       `json:"zone"`
	Upper          float64    `json:"cloud_upper"`
	Lower          float64    `json:"cloud_lower"`
	LastTransition Transition `json:"last_transition"`
	LastIntent     Intent     `json:"last_signal"`
	LastOrderTime  time.Time  `json:"last_order_time"`
	LastCandleTime time.Time  `json:"last_candle_time"`
	LastError      string     `json:"last_error,omitempty"`
	UpdatedAt      time.Time  `json:"last_update"`
}

// EngineSnapshot: согласованный срез состояния движка для дашборда и бота.
type EngineSnapshot struct {
	TradingEnabled    bool           `json:"trading_enabled"`
	ForceClosePending bool           `json:"force_close_pending"`
	ConnectionOK      bool           `json:"connection_ok"`
	Running           bool           `json:"bot_running"`
	StartedAt         time.Time      `json:"started_at"`
	Symbols           []SymbolStatus `json:"positions"`
}

func (s EngineSnapshot) Symbol(symbol string) (SymbolStatus, bool) {
	for _, st := range s.Symbols {
		if st.Symbol == symbol {
			return st, true
		}
	}
	return SymbolStatus{}, false
}
