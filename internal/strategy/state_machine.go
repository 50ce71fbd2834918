package strategy

import "cloud_bot/internal/models"

type transitionKey struct {
	side models.Side
	tr   models.Transition
}

type step struct {
	next   models.Side
	intent models.Intent
}

// Полная таблица переходов. Пары, которых здесь нет, ордеров не дают.
var table = map[transitionKey]step{
	{models.SideFlat, models.TransitionCrossover}:     {models.SideLong, models.IntentOpenLong},
	{models.SideFlat, models.TransitionCrossunder}:    {models.SideShort, models.IntentOpenShort},
	{models.SideShort, models.TransitionCrossover}:    {models.SideLong, models.IntentReverseToLong},
	{models.SideLong, models.TransitionCrossunder}:    {models.SideShort, models.IntentReverseToShort},
	{models.SideLong, models.TransitionEnteredCloud}:  {models.SideFlat, models.IntentClose},
	{models.SideShort, models.TransitionEnteredCloud}: {models.SideFlat, models.IntentClose},
}

// Decide: автомат позиции: текущая сторона + переход → новая сторона и намерение.
func Decide(side models.Side, tr models.Transition) (models.Side, models.Intent) {
	if s, ok := table[transitionKey{side, tr}]; ok {
		return s.next, s.intent
	}
	return side, models.IntentNone
}
