package strategy

import (
	"testing"
	"time"

	"cloud_bot/internal/indicator"
	"cloud_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func cloud(z models.Zone) *models.CloudState {
	return &models.CloudState{Upper: 10, Lower: 5, Zone: z}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		prev *models.CloudState
		cur  *models.CloudState
		want models.Transition
	}{
		{"first cycle", nil, cloud(models.ZoneOver), models.TransitionNone},
		{"current absent", cloud(models.ZoneOver), nil, models.TransitionNone},
		{"under to over", cloud(models.ZoneUnder), cloud(models.ZoneOver), models.TransitionCrossover},
		{"over to under", cloud(models.ZoneOver), cloud(models.ZoneUnder), models.TransitionCrossunder},
		{"over to in", cloud(models.ZoneOver), cloud(models.ZoneIn), models.TransitionEnteredCloud},
		{"under to in", cloud(models.ZoneUnder), cloud(models.ZoneIn), models.TransitionEnteredCloud},
		{"in to over", cloud(models.ZoneIn), cloud(models.ZoneOver), models.TransitionNone},
		{"in to under", cloud(models.ZoneIn), cloud(models.ZoneUnder), models.TransitionNone},
		{"unchanged", cloud(models.ZoneOver), cloud(models.ZoneOver), models.TransitionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.prev, tt.cur))
		})
	}
}

func TestClassify_SameStateTwice(t *testing.T) {
	st := cloud(models.ZoneUnder)
	assert.Equal(t, models.TransitionNone, Classify(st, st))
}

func TestDecide_Table(t *testing.T) {
	sides := []models.Side{models.SideFlat, models.SideLong, models.SideShort}
	transitions := []models.Transition{
		models.TransitionNone, models.TransitionCrossover,
		models.TransitionCrossunder, models.TransitionEnteredCloud,
	}
	want := map[transitionKey]step{
		{models.SideFlat, models.TransitionCrossover}:     {models.SideLong, models.IntentOpenLong},
		{models.SideFlat, models.TransitionCrossunder}:    {models.SideShort, models.IntentOpenShort},
		{models.SideShort, models.TransitionCrossover}:    {models.SideLong, models.IntentReverseToLong},
		{models.SideLong, models.TransitionCrossunder}:    {models.SideShort, models.IntentReverseToShort},
		{models.SideLong, models.TransitionEnteredCloud}:  {models.SideFlat, models.IntentClose},
		{models.SideShort, models.TransitionEnteredCloud}: {models.SideFlat, models.IntentClose},
	}

	for _, s := range sides {
		for _, tr := range transitions {
			next, intent := Decide(s, tr)
			exp, ok := want[transitionKey{s, tr}]
			if !ok {
				exp = step{next: s, intent: models.IntentNone}
			}
			assert.Equal(t, exp.next, next, "%s/%s", s, tr)
			assert.Equal(t, exp.intent, intent, "%s/%s", s, tr)
		}
	}
}

func TestDecide_RoundTrip(t *testing.T) {
	side := models.SideFlat
	var intents []models.Intent
	for _, tr := range []models.Transition{
		models.TransitionCrossover, models.TransitionCrossunder, models.TransitionEnteredCloud,
	} {
		var intent models.Intent
		side, intent = Decide(side, tr)
		intents = append(intents, intent)
	}
	assert.Equal(t, models.SideFlat, side)
	assert.Equal(t, []models.Intent{
		models.IntentOpenLong, models.IntentReverseToShort, models.IntentClose,
	}, intents)
}

func TestDecide_NoDuplicateEntry(t *testing.T) {
	next, intent := Decide(models.SideLong, models.TransitionCrossover)
	assert.Equal(t, models.SideLong, next)
	assert.Equal(t, models.IntentNone, intent)

	next, intent = Decide(models.SideShort, models.TransitionCrossunder)
	assert.Equal(t, models.SideShort, next)
	assert.Equal(t, models.IntentNone, intent)

	next, intent = Decide(models.SideFlat, models.TransitionEnteredCloud)
	assert.Equal(t, models.SideFlat, next)
	assert.Equal(t, models.IntentNone, intent)
}

func TestNewEngine_PropagatesInsufficientHistory(t *testing.T) {
	e := NewEngine(CloudConfig{
		Period1: 10, Multiplier1: 3, Period2: 10, Multiplier2: 6,
		Timeframe: 15 * time.Minute, MinCandles: 50,
	})
	_, err := e.Evaluate(nil, time.Now())
	assert.True(t, errors.Is(err, indicator.ErrInsufficientHistory))
}
