package brain

import "estatenexy/models"

// Scoring deltas per qualification milestone. Business-tunable; the
// exact weighting formula is intentionally a constant table.
const (
	scoreLanguageSelected = 5
	scoreGoalCaptured     = 10
	scorePhoneCaptured    = 25
	scoreBudgetCaptured   = 20
	scoreSlotCaptured     = 10
	scoreBookingIntent    = 20
)

// Temperature thresholds over the accumulated lead score.
const (
	burningThreshold = 80
	hotThreshold     = 50
	warmThreshold    = 25
)

// TemperatureFor buckets a lead score into a temperature label.
func TemperatureFor(score int) string {
	switch {
	case score >= burningThreshold:
		return models.TemperatureBurning
	case score >= hotThreshold:
		return models.TemperatureHot
	case score >= warmThreshold:
		return models.TemperatureWarm
	default:
		return models.TemperatureCold
	}
}
