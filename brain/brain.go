// Package brain implements the conversation state engine: a pure
// transition function over (current state, slots, event) that emits a
// reply, the next state and side-effect directives. All I/O happens in
// the dispatcher; the Brain only decides.
package brain

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"estatenexy/models"
)

// DefaultPhoneRetryBudget is how many failed phone parses are tolerated
// in CAPTURE_CONTACT before the input is accepted as-is. Avoids
// trapping a real person in a validation loop.
const DefaultPhoneRetryBudget = 3

// defaultAdminAlert is the default new-lead alert body. The format is a
// tenant policy concern, so it stays a pluggable template.
const defaultAdminAlert = `🔥 New qualified lead
Name: {{.Name}}
Phone: {{.Phone}}
Goal: {{.Goal}}
Captured: {{.Timestamp}}`

type Config struct {
	// PhoneRetryBudget caps failed phone-number parses before the raw
	// input is accepted. Zero means DefaultPhoneRetryBudget.
	PhoneRetryBudget int

	// AdminAlertTemplate renders the notify_admin side-effect body.
	// Nil means the default template.
	AdminAlertTemplate *template.Template
}

// Brain is safe for concurrent use: it holds only immutable policy.
type Brain struct {
	retryBudget int
	alertTpl    *template.Template
}

func NewBrain(cfg Config) *Brain {
	b := &Brain{
		retryBudget: cfg.PhoneRetryBudget,
		alertTpl:    cfg.AdminAlertTemplate,
	}
	if b.retryBudget <= 0 {
		b.retryBudget = DefaultPhoneRetryBudget
	}
	if b.alertTpl == nil {
		b.alertTpl = template.Must(template.New("admin_alert").Parse(defaultAdminAlert))
	}
	return b
}

// Process runs one conversation turn. It never mutates lead and never
// performs I/O; extraction and matching results arrive pre-computed on
// the event.
func (b *Brain) Process(lead *models.Lead, ev Event) Outcome {
	state := lead.ConversationState
	if state == "" {
		state = models.StateStart
	}
	lang := leadLanguage(lead)

	// Terminal states accept nothing.
	if state.IsTerminal() {
		return Outcome{NextState: state}
	}

	// Synthetic scheduler ticks replay the resolved template and leave
	// the state untouched. Handed-off leads are never nudged.
	if ev.Kind.IsSynthetic() {
		if state == models.StateHandoff {
			return Outcome{NextState: state}
		}
		return Outcome{
			Reply:     Reply{Text: ev.FollowupText},
			NextState: state,
		}
	}

	switch state {
	case models.StateStart:
		return b.processStart()
	case models.StateLanguageSelect:
		return b.processLanguageSelect(ev)
	case models.StateWarmup:
		return b.processWarmup(lang, ev)
	case models.StateCaptureContact:
		return b.processCaptureContact(lead, lang, ev)
	case models.StateSlotFilling:
		return b.processSlotFilling(lead, lang, ev)
	case models.StateValueProposition:
		return b.processValueProposition(lead, lang, ev)
	case models.StateHardGate:
		return b.processHardGate(lead, lang, ev)
	case models.StateEngagement:
		return b.processEngagement(lead, lang, ev)
	case models.StateHandoff:
		// A human owns the conversation now; only acknowledge.
		return Outcome{
			Reply:     Reply{Text: Message(lang, msgHandoffAck)},
			NextState: models.StateHandoff,
		}
	default:
		// Unknown stored state: recover by restarting the flow rather
		// than producing an undefined result.
		return b.processStart()
	}
}

func (b *Brain) processStart() Outcome {
	// The greeting shows every language so the first prompt is readable
	// regardless of who writes in.
	greeting := Message("en", msgGreeting) + "\n\n" + Message("en", msgLanguagePrompt)
	return Outcome{
		Reply:     Reply{Text: greeting, Buttons: LanguageButtons},
		NextState: models.StateLanguageSelect,
	}
}

func (b *Brain) processLanguageSelect(ev Event) Outcome {
	choice := strings.TrimSpace(ev.Text)
	if lang, ok := languageByButton[choice]; ok {
		return Outcome{
			Reply:      Reply{Text: Message(lang, msgWarmupPrompt), Buttons: goalButtons(lang)},
			NextState:  models.StateWarmup,
			Language:   lang,
			ScoreDelta: scoreLanguageSelected,
		}
	}
	if lang, ok := languageByButton[strings.ToLower(choice)]; ok {
		return Outcome{
			Reply:      Reply{Text: Message(lang, msgWarmupPrompt), Buttons: goalButtons(lang)},
			NextState:  models.StateWarmup,
			Language:   lang,
			ScoreDelta: scoreLanguageSelected,
		}
	}
	// Any other input re-prompts.
	return Outcome{
		Reply:     Reply{Text: Message("en", msgLanguagePrompt), Buttons: LanguageButtons},
		NextState: models.StateLanguageSelect,
	}
}

func (b *Brain) processWarmup(lang string, ev Event) Outcome {
	goal := goalFromEvent(ev)
	if goal == "" {
		return Outcome{
			Reply:     Reply{Text: Message(lang, msgWarmupPrompt), Buttons: goalButtons(lang)},
			NextState: models.StateWarmup,
		}
	}
	return Outcome{
		Reply:       Reply{Text: Message(lang, msgContactPrompt), RemoveKeyboard: true},
		NextState:   models.StateCaptureContact,
		SlotUpdates: models.SlotMap{models.SlotGoal: goal},
		ScoreDelta:  scoreGoalCaptured,
	}
}

func (b *Brain) processCaptureContact(lead *models.Lead, lang string, ev Event) Outcome {
	// Triage before validation: a question or a media request must never
	// be punished as a failed phone number.
	switch ClassifyIntent(ev.Text, nil) {
	case IntentQuestion:
		out := Outcome{NextState: models.StateCaptureContact}
		out.addEffect(EffectAnswerQuestion, ev.Text)
		return out
	case IntentMediaRequest:
		return Outcome{
			Reply:     Reply{Text: Message(lang, msgMediaPreview)},
			NextState: models.StateCaptureContact,
		}
	}

	phone, ok := ParsePhone(ev.Text)
	if !ok {
		if lead.PhoneRetries+1 < b.retryBudget {
			return Outcome{
				Reply:           Reply{Text: Message(lang, msgContactRetry)},
				NextState:       models.StateCaptureContact,
				PhoneRetryDelta: 1,
			}
		}
		// Retry budget exhausted: accept the raw input rather than loop
		// forever on strict validation.
		phone = strings.TrimSpace(ev.Text)
	}

	out := Outcome{
		Reply:      Reply{Text: Message(lang, msgContactThanks) + "\n\n" + Message(lang, msgAskBudget)},
		NextState:  models.StateSlotFilling,
		Phone:      phone,
		ScoreDelta: scorePhoneCaptured,
	}
	out.addEffect(EffectNotifyAdmin, b.renderAdminAlert(lead, phone, ev.Now))
	return out
}

func (b *Brain) processSlotFilling(lead *models.Lead, lang string, ev Event) Outcome {
	updates := mergeCandidates(lead.Slots, ev.Candidates)
	slots := applied(lead.Slots, updates)

	out := Outcome{
		NextState:   models.StateSlotFilling,
		SlotUpdates: updates,
		ScoreDelta:  scoreForUpdates(updates),
	}

	// Budget is the minimum required slot set; once present the value
	// proposition fires on the same turn.
	if slots[models.SlotBudgetMin] != "" {
		out.Reply = Reply{Text: valueProposition(lang, ev.Matches)}
		out.NextState = models.StateValueProposition
		return out
	}

	out.Reply = Reply{Text: askNextMissing(lang, slots)}
	return out
}

func (b *Brain) processValueProposition(lead *models.Lead, lang string, ev Event) Outcome {
	// The value proposition was already delivered when this state was
	// entered; this turn routes the lead onward.
	return b.gateOrEngage(lead, lang, ev, models.StateValueProposition)
}

func (b *Brain) processHardGate(lead *models.Lead, lang string, ev Event) Outcome {
	return b.gateOrEngage(lead, lang, ev, models.StateHardGate)
}

// gateOrEngage applies the shared question/media/slot triage, fills any
// remaining qualification detail and decides between HARD_GATE and
// ENGAGEMENT.
func (b *Brain) gateOrEngage(lead *models.Lead, lang string, ev Event, current models.ConversationState) Outcome {
	switch ClassifyIntent(ev.Text, ev.Candidates) {
	case IntentQuestion:
		out := Outcome{NextState: current}
		out.addEffect(EffectAnswerQuestion, ev.Text)
		return out
	case IntentMediaRequest:
		return Outcome{
			Reply:     Reply{Text: Message(lang, msgMediaPreview)},
			NextState: current,
		}
	}

	updates := mergeCandidates(lead.Slots, ev.Candidates)
	slots := applied(lead.Slots, updates)

	out := Outcome{
		SlotUpdates: updates,
		ScoreDelta:  scoreForUpdates(updates),
	}

	if slots[models.SlotPropertyType] != "" && slots[models.SlotLocation] != "" {
		out.Reply = Reply{Text: Message(lang, msgEngagementIntro)}
		out.NextState = models.StateEngagement
		return out
	}

	out.Reply = Reply{Text: askNextMissing(lang, slots)}
	out.NextState = models.StateHardGate
	return out
}

func (b *Brain) processEngagement(lead *models.Lead, lang string, ev Event) Outcome {
	if HasNegativeSentiment(ev.Text) {
		out := Outcome{
			Reply:     Reply{Text: Message(lang, msgHandoffAck)},
			NextState: models.StateHandoff,
		}
		out.addEffect(EffectEscalate, ev.Text)
		out.addEffect(EffectNotifyAdmin, fmt.Sprintf("⚠️ Escalation for %s (%s): %q", displayName(lead), lead.Phone, ev.Text))
		return out
	}
	if HasBookingIntent(ev.Text) {
		out := Outcome{
			Reply:      Reply{Text: Message(lang, msgBookingAck)},
			NextState:  models.StateHandoff,
			ScoreDelta: scoreBookingIntent,
		}
		out.addEffect(EffectNotifyAdmin, fmt.Sprintf("📅 Booking request from %s (%s)", displayName(lead), lead.Phone))
		return out
	}

	switch ClassifyIntent(ev.Text, ev.Candidates) {
	case IntentQuestion:
		out := Outcome{NextState: models.StateEngagement}
		out.addEffect(EffectAnswerQuestion, ev.Text)
		return out
	case IntentMediaRequest:
		return Outcome{
			Reply:     Reply{Text: Message(lang, msgMediaPreview)},
			NextState: models.StateEngagement,
		}
	}

	updates := mergeCandidates(lead.Slots, ev.Candidates)
	return Outcome{
		Reply:       Reply{Text: Message(lang, msgNurture)},
		NextState:   models.StateEngagement,
		SlotUpdates: updates,
		ScoreDelta:  scoreForUpdates(updates),
	}
}

func (b *Brain) renderAdminAlert(lead *models.Lead, phone string, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	var buf bytes.Buffer
	err := b.alertTpl.Execute(&buf, map[string]string{
		"Name":      displayName(lead),
		"Phone":     phone,
		"Goal":      lead.Slots[models.SlotGoal],
		"Timestamp": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Template failure must not lose the alert.
		return fmt.Sprintf("New qualified lead: %s %s", displayName(lead), phone)
	}
	return buf.String()
}

// mergeCandidates keeps only candidate values for slots that are still
// empty. An empty extraction result never clobbers filled slots.
func mergeCandidates(known models.SlotMap, candidates models.SlotMap) models.SlotMap {
	updates := models.SlotMap{}
	for k, v := range candidates {
		if v == "" {
			continue
		}
		if known[k] != "" {
			continue
		}
		updates[k] = v
	}
	return updates
}

func applied(known, updates models.SlotMap) models.SlotMap {
	out := known.Clone()
	for k, v := range updates {
		out[k] = v
	}
	return out
}

func scoreForUpdates(updates models.SlotMap) int {
	score := 0
	for k := range updates {
		switch k {
		case models.SlotBudgetMin:
			score += scoreBudgetCaptured
		case models.SlotBudgetMax:
			// counted with budget_min
		default:
			score += scoreSlotCaptured
		}
	}
	return score
}

func askNextMissing(lang string, slots models.SlotMap) string {
	switch {
	case slots[models.SlotBudgetMin] == "":
		return Message(lang, msgAskBudget)
	case slots[models.SlotPropertyType] == "":
		return Message(lang, msgAskPropertyType)
	default:
		return Message(lang, msgAskLocation)
	}
}

func valueProposition(lang string, matches []models.PropertySummary) string {
	if len(matches) == 0 {
		return Message(lang, msgValuePropNone)
	}
	unitsLeft := matches[0].UnitsLeft
	for _, m := range matches[1:] {
		if m.UnitsLeft > 0 && (unitsLeft == 0 || m.UnitsLeft < unitsLeft) {
			unitsLeft = m.UnitsLeft
		}
	}
	if unitsLeft <= 0 {
		unitsLeft = 1
	}
	return fmt.Sprintf(Message(lang, msgValuePropMatch), len(matches), unitsLeft)
}

func goalFromEvent(ev Event) string {
	if g, ok := goalByLabel[strings.TrimSpace(ev.Text)]; ok {
		return g
	}
	if g := ev.Candidates[models.SlotGoal]; g != "" {
		return g
	}
	return ""
}

func leadLanguage(lead *models.Lead) string {
	if models.IsValidLanguage(lead.Language) {
		return lead.Language
	}
	return "en"
}

func displayName(lead *models.Lead) string {
	if lead.Name != "" {
		return lead.Name
	}
	return lead.ChannelIdentity
}
