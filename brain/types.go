package brain

import (
	"time"

	"estatenexy/models"
)

// EventKind discriminates the inputs a conversation turn can carry.
type EventKind string

const (
	EventText             EventKind = "text"
	EventButton           EventKind = "button"
	EventVoiceText        EventKind = "voice_text"
	EventImageDescription EventKind = "image_description"
	EventFollowupTick     EventKind = "followup_tick"
	EventGhostTick        EventKind = "ghost_tick"
)

// IsSynthetic reports whether the event was generated by the scheduler
// rather than by the customer.
func (k EventKind) IsSynthetic() bool {
	return k == EventFollowupTick || k == EventGhostTick
}

// Event is one inbound unit of work for the Brain. Everything that
// requires I/O (slot extraction, property matching, follow-up template
// resolution) is done by the dispatcher before Process is called, so
// the transition itself stays a pure function.
type Event struct {
	Kind EventKind
	Text string

	// Candidates are slot values pre-extracted from Text.
	Candidates models.SlotMap

	// Matches are pre-fetched property-matching results, present only
	// when the current state may produce a value proposition.
	Matches []models.PropertySummary

	// FollowupText is the resolved re-engagement template body for
	// synthetic scheduler events.
	FollowupText string

	Now time.Time
}

// Reply is the outbound message produced by a turn. An empty Text means
// no direct reply (side effects may still produce one).
type Reply struct {
	Text           string
	Buttons        []string
	RemoveKeyboard bool
}

// SideEffectKind tags a directive the dispatcher executes on the
// Brain's behalf.
type SideEffectKind string

const (
	// EffectNotifyAdmin delivers a best-effort alert to the tenant admin.
	EffectNotifyAdmin SideEffectKind = "notify_admin"
	// EffectAnswerQuestion delegates a free-form question to the
	// external inference service and sends its answer to the lead.
	EffectAnswerQuestion SideEffectKind = "answer_question"
	// EffectEscalate marks the conversation as handed off to a human.
	EffectEscalate SideEffectKind = "escalate"
)

type SideEffect struct {
	Kind SideEffectKind
	Text string
}

// Outcome is the full result of one conversation turn. The Brain never
// mutates the lead; the dispatcher applies these updates under the
// per-lead serialization gate.
type Outcome struct {
	Reply     Reply
	NextState models.ConversationState

	SlotUpdates models.SlotMap
	SideEffects []SideEffect

	// Contact/profile updates. Empty string means unchanged.
	Language string
	Phone    string

	ScoreDelta      int
	PhoneRetryDelta int
}

func (o *Outcome) addEffect(kind SideEffectKind, text string) {
	o.SideEffects = append(o.SideEffects, SideEffect{Kind: kind, Text: text})
}
