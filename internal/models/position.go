package models

// Side: состояние позиции по символу, оно же состояние автомата.
type Side string

const (
	SideFlat  Side = "FLAT"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Holding: позиция так, как её видит биржа.
type Holding struct {
	Symbol        string
	Side          Side
	Quantity      float64 // всегда >= 0, направление в Side
	EntryPrice    float64
	UnrealizedPnL float64
}

func FlatHolding(symbol string) Holding {
	return Holding{Symbol: symbol, Side: SideFlat}
}

func (h Holding) IsFlat() bool { return h.Side == SideFlat || h.Quantity == 0 }
