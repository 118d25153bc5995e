package models

import (
	"time"

	"gorm.io/gorm"
)

// followupDelays is the drip cadence: how long after the last turn the
// template for each stage fires. Business-tunable constants.
var followupDelays = [FollowupExitStage + 1]time.Duration{
	30 * time.Minute,
	4 * time.Hour,
	24 * time.Hour,
	48 * time.Hour,
	72 * time.Hour,
}

// FollowupDelayForStage returns the scheduling delay for a drip stage.
// Out-of-range stages clamp to the exit stage cadence.
func FollowupDelayForStage(stage int) time.Duration {
	if stage < 0 {
		stage = 0
	}
	if stage > FollowupExitStage {
		stage = FollowupExitStage
	}
	return followupDelays[stage]
}

// FollowupTemplate is the static re-engagement copy for one (stage,
// language) pair. Read-only to the engine; seeded defaults live in
// init.go. Ghost templates carry IsGhost=true and ignore Stage.
type FollowupTemplate struct {
	gorm.Model
	Stage    int    `gorm:"not null;index" json:"stage"` // 0..4
	Language string `gorm:"not null;index" json:"language"`
	Body     string `gorm:"type:text;not null" json:"body"`
	IsGhost  bool   `gorm:"default:false;index" json:"is_ghost"`
}
