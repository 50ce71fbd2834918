package strategy

import "cloud_bot/internal/models"

// Classify сравнивает облако прошлого и текущего цикла.
// Нет одного из состояний или зона не поменялась: NONE.
func Classify(prev, cur *models.CloudState) models.Transition {
	if prev == nil || cur == nil || prev.Zone == cur.Zone {
		return models.TransitionNone
	}

	switch {
	case prev.Zone == models.ZoneUnder && cur.Zone == models.ZoneOver:
		return models.TransitionCrossover
	case prev.Zone == models.ZoneOver && cur.Zone == models.ZoneUnder:
		return models.TransitionCrossunder
	case cur.Zone == models.ZoneIn && (prev.Zone == models.ZoneOver || prev.Zone == models.ZoneUnder):
		return models.TransitionEnteredCloud
	}
	return models.TransitionNone
}
