package models

// Zone: положение цены закрытия относительно облака.
type Zone string

const (
	ZoneNone  Zone = "NONE"
	ZoneOver  Zone = "OVER"
	ZoneUnder Zone = "UNDER"
	ZoneIn    Zone = "IN"
)

// Transition: смена зоны между двумя соседними циклами.
type Transition string

const (
	TransitionNone         Transition = "NONE"
	TransitionCrossover    Transition = "CROSSOVER"
	TransitionCrossunder   Transition = "CROSSUNDER"
	TransitionEnteredCloud Transition = "ENTERED_CLOUD"
)

// Intent: решение автомата на текущий цикл, до исполнения.
type Intent string

const (
	IntentNone           Intent = "NONE"
	IntentOpenLong       Intent = "OPEN_LONG"
	IntentOpenShort      Intent = "OPEN_SHORT"
	IntentReverseToLong  Intent = "REVERSE_TO_LONG"
	IntentReverseToShort Intent = "REVERSE_TO_SHORT"
	IntentClose          Intent = "CLOSE"
)

// Opens сообщает, нужен ли для намерения объём новой позиции.
func (i Intent) Opens() bool {
	switch i {
	case IntentOpenLong, IntentOpenShort, IntentReverseToLong, IntentReverseToShort:
		return true
	}
	return false
}

// OrderSide: направление ордера на бирже.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)
