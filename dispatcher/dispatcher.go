// Package dispatcher translates transport events into conversation
// turns: it resolves the lead, prepares the turn inputs (extraction,
// property matching, template resolution happen here, not in the
// Brain), runs the transition and executes the resulting directives in
// a fixed order: persist, reply, notify.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"estatenexy/brain"
	"estatenexy/channel"
	"estatenexy/inference"
	"estatenexy/models"
	"estatenexy/notify"
	"estatenexy/session"
)

// LeadStore is the slice of the session store the dispatcher needs.
type LeadStore interface {
	Resolve(ctx context.Context, tenantID uint, channel, identity, defaultLanguage string) (*models.Lead, bool, error)
	Save(ctx context.Context, lead *models.Lead) error
}

// PropertyMatcher is the external property-matching collaborator.
type PropertyMatcher interface {
	Match(ctx context.Context, tenantID uint, slots models.SlotMap) ([]models.PropertySummary, error)
}

// GhostEnqueuer schedules the one-shot ghost nudge for a lead.
type GhostEnqueuer interface {
	EnqueueGhostNudge(ctx context.Context, leadID uint, delay time.Duration) error
}

// SlotExtractor pre-computes slot candidates for the Brain.
type SlotExtractor interface {
	Extract(ctx context.Context, text string, known models.SlotMap) models.SlotMap
}

// Deps carries everything a dispatcher instance needs. Matcher, Ghost,
// Hub and Notifier may be nil; the dispatcher degrades gracefully.
type Deps struct {
	Tenant    *models.Tenant
	Channel   string
	Store     LeadStore
	Brain     *brain.Brain
	Extractor SlotExtractor
	Matcher   PropertyMatcher
	Inference inference.Client
	Sender    channel.Sender
	Notifier  notify.AdminNotifier
	Ghost     GhostEnqueuer
	Hub       *Hub
	Locks     *session.KeyedMutex

	GhostDelay   time.Duration
	DrainTimeout time.Duration

	Logger *logrus.Entry
}

type Dispatcher struct {
	deps Deps
	wg   sync.WaitGroup
}

func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Locks == nil {
		deps.Locks = session.NewKeyedMutex()
	}
	if deps.Inference == nil {
		deps.Inference = inference.Disabled{}
	}
	if deps.DrainTimeout <= 0 {
		deps.DrainTimeout = 10 * time.Second
	}
	return &Dispatcher{deps: deps}
}

// Run consumes the update source until it closes. Turns for different
// leads run concurrently; the per-lead lock inside HandleEvent keeps
// turns for one lead strictly sequential.
func (d *Dispatcher) Run(ctx context.Context, src channel.UpdateSource) error {
	runErr := make(chan error, 1)
	go func() { runErr <- src.Run(ctx) }()

	for ev := range src.Events() {
		ev := ev
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.HandleEvent(ctx, ev); err != nil {
				d.deps.Logger.WithError(err).WithFields(logrus.Fields{
					"tenant_id": ev.TenantID,
					"identity":  ev.ChannelIdentity,
				}).Error("turn failed")
			}
		}()
	}

	// Source closed: let in-flight turns drain within the bounded
	// timeout, then abandon the rest.
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.deps.DrainTimeout):
		d.deps.Logger.Warn("drain timeout reached, abandoning in-flight turns")
	}
	return <-runErr
}

// HandleEvent processes one inbound event end to end. The follow-up
// scheduler calls this too, so synthetic ticks get identical
// side-effect handling.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev channel.InboundEvent) (err error) {
	// A panic anywhere in a turn (transport client, store, library code)
	// is contained here, so one lead's bad turn cannot take the process
	// down with every other tenant.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panic (tenant %d, identity %s): %v", ev.TenantID, ev.ChannelIdentity, r)
			sentry.CaptureException(err)
			d.deps.Logger.WithError(err).Error("turn panicked")
		}
	}()

	key := fmt.Sprintf("%d:%s:%s", ev.TenantID, ev.Channel, ev.ChannelIdentity)
	unlock := d.deps.Locks.Lock(key)
	defer unlock()

	lead, created, err := d.deps.Store.Resolve(ctx, ev.TenantID, ev.Channel, ev.ChannelIdentity, d.defaultLanguage())
	if err != nil {
		d.sendFallback(ctx, ev.ChannelIdentity, d.defaultLanguage())
		return err
	}
	if created && ev.SenderName != "" {
		lead.Name = ev.SenderName
	}

	bev := d.prepareTurn(ctx, lead, ev)
	outcome := d.deps.Brain.Process(lead, bev)
	d.applyOutcome(lead, bev, outcome)

	// (1) Persist. A failed write aborts the turn: the prior durable
	// state stays authoritative and the lead gets a generic fallback.
	if err := d.deps.Store.Save(ctx, lead); err != nil {
		d.sendFallback(ctx, ev.ChannelIdentity, lead.Language)
		return err
	}

	// (2) Reply.
	d.deliver(ctx, lead, ev, outcome)

	// (3) Admin notification, best-effort.
	d.runSideEffects(ctx, lead, outcome)

	if d.deps.Hub != nil {
		d.deps.Hub.Publish(TurnEvent{
			TenantID:        lead.TenantID,
			Channel:         lead.Channel,
			ChannelIdentity: lead.ChannelIdentity,
			EventKind:       string(ev.Kind),
			State:           string(lead.ConversationState),
			Temperature:     lead.Temperature,
			ReplyText:       outcome.Reply.Text,
			At:              time.Now(),
		})
	}

	d.maybeEnqueueGhost(ctx, lead, ev)
	return nil
}

// prepareTurn does all I/O the Brain is not allowed to do itself.
func (d *Dispatcher) prepareTurn(ctx context.Context, lead *models.Lead, ev channel.InboundEvent) brain.Event {
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	bev := brain.Event{
		Kind: eventKind(ev.Kind),
		Text: ev.Payload,
		Now:  now,
	}

	if bev.Kind.IsSynthetic() {
		// The scheduler resolved the template body already.
		bev.FollowupText = ev.Payload
		return bev
	}

	if d.deps.Extractor != nil && strings.TrimSpace(ev.Payload) != "" {
		bev.Candidates = d.deps.Extractor.Extract(ctx, ev.Payload, lead.Slots)
	}

	// Property matches are only needed where a value proposition can
	// fire on this turn.
	if d.deps.Matcher != nil &&
		(lead.ConversationState == models.StateSlotFilling || lead.ConversationState == models.StateValueProposition) {
		slots := lead.Slots.Clone()
		for k, v := range bev.Candidates {
			if slots[k] == "" {
				slots[k] = v
			}
		}
		matches, err := d.deps.Matcher.Match(ctx, lead.TenantID, slots)
		if err != nil {
			d.deps.Logger.WithError(err).Warn("property matching unavailable")
		} else {
			bev.Matches = matches
		}
	}

	return bev
}

// applyOutcome folds the Brain's decision into the lead. This is the
// only place lead state changes on the live path.
func (d *Dispatcher) applyOutcome(lead *models.Lead, bev brain.Event, outcome brain.Outcome) {
	lead.ConversationState = outcome.NextState

	if lead.Slots == nil {
		lead.Slots = models.SlotMap{}
	}
	for k, v := range outcome.SlotUpdates {
		if lead.Slots[k] == "" {
			lead.Slots[k] = v
		}
	}

	if outcome.Language != "" {
		lead.Language = outcome.Language
	}
	if outcome.Phone != "" {
		lead.Phone = outcome.Phone
		lead.PhoneRetries = 0
	} else {
		lead.PhoneRetries += outcome.PhoneRetryDelta
	}

	if outcome.ScoreDelta != 0 {
		lead.LeadScore += outcome.ScoreDelta
		lead.Temperature = brain.TemperatureFor(lead.LeadScore)
	}

	now := bev.Now
	if !bev.Kind.IsSynthetic() {
		lead.LastInboundAt = &now
	}
	// A delegated answer is an outbound contact too, even when the turn
	// carries no primary reply.
	contacted := outcome.Reply.Text != ""
	for _, eff := range outcome.SideEffects {
		if eff.Kind == brain.EffectAnswerQuestion {
			contacted = true
		}
	}
	if contacted {
		lead.LastContactedAt = &now
	}

	// Re-arm the drip after every real customer turn; the scheduler
	// owns advancement and exit.
	switch {
	case lead.ConversationState.IsTerminal() || lead.ConversationState == models.StateHandoff:
		lead.NextFollowupAt = nil
	case !bev.Kind.IsSynthetic() && lead.FollowupEnabled:
		next := now.Add(models.FollowupDelayForStage(lead.FollowupStage))
		lead.NextFollowupAt = &next
	}
}

func (d *Dispatcher) deliver(ctx context.Context, lead *models.Lead, ev channel.InboundEvent, outcome brain.Outcome) {
	// The free-form answer path delegates to inference; if that is
	// down, the lead still gets a localized fallback.
	for _, eff := range outcome.SideEffects {
		if eff.Kind != brain.EffectAnswerQuestion {
			continue
		}
		answer, err := d.deps.Inference.Answer(ctx, eff.Text, lead.Language)
		if err != nil || answer == "" {
			d.deps.Logger.WithError(err).Debug("inference answer unavailable")
			answer = brain.FallbackMessage(lead.Language)
		}
		d.send(ctx, lead, channel.Reply{ChannelIdentity: ev.ChannelIdentity, Text: answer})
	}

	if outcome.Reply.Text == "" {
		return
	}
	d.send(ctx, lead, channel.Reply{
		ChannelIdentity: ev.ChannelIdentity,
		Text:            outcome.Reply.Text,
		Buttons:         outcome.Reply.Buttons,
		RemoveKeyboard:  outcome.Reply.RemoveKeyboard,
	})
}

// send delivers one reply. Failures are logged and marked on the lead.
// No synchronous retry: retry storms cause duplicate sends.
func (d *Dispatcher) send(ctx context.Context, lead *models.Lead, reply channel.Reply) {
	if err := d.deps.Sender.Send(ctx, reply); err != nil {
		d.deps.Logger.WithError(err).WithField("identity", reply.ChannelIdentity).Error("reply delivery failed")
		lead.ReplyPending = true
		lead.LastError = err.Error()
		if err := d.deps.Store.Save(ctx, lead); err != nil {
			d.deps.Logger.WithError(err).Warn("could not record pending reply")
		}
		return
	}
	if lead.ReplyPending {
		lead.ReplyPending = false
		lead.LastError = ""
		if err := d.deps.Store.Save(ctx, lead); err != nil {
			d.deps.Logger.WithError(err).Warn("could not clear pending reply")
		}
	}
}

func (d *Dispatcher) runSideEffects(ctx context.Context, lead *models.Lead, outcome brain.Outcome) {
	for _, eff := range outcome.SideEffects {
		switch eff.Kind {
		case brain.EffectNotifyAdmin:
			if d.deps.Notifier == nil {
				continue
			}
			if err := d.deps.Notifier.Notify(ctx, d.deps.Tenant, eff.Text); err != nil {
				// Always non-fatal.
				d.deps.Logger.WithError(err).Warn("admin notification failed")
			}
		case brain.EffectEscalate:
			d.deps.Logger.WithFields(logrus.Fields{
				"lead_id": lead.ID,
				"text":    eff.Text,
			}).Warn("conversation escalated to human")
		}
	}
}

func (d *Dispatcher) maybeEnqueueGhost(ctx context.Context, lead *models.Lead, ev channel.InboundEvent) {
	if d.deps.Ghost == nil || eventKind(ev.Kind).IsSynthetic() {
		return
	}
	if lead.GhostReminderSent || lead.ConversationState.IsTerminal() || lead.ConversationState == models.StateHandoff {
		return
	}
	if err := d.deps.Ghost.EnqueueGhostNudge(ctx, lead.ID, d.deps.GhostDelay); err != nil {
		d.deps.Logger.WithError(err).Warn("ghost nudge enqueue failed")
	}
}

func (d *Dispatcher) sendFallback(ctx context.Context, identity, lang string) {
	err := d.deps.Sender.Send(ctx, channel.Reply{
		ChannelIdentity: identity,
		Text:            brain.FallbackMessage(lang),
	})
	if err != nil {
		d.deps.Logger.WithError(err).Warn("fallback delivery failed")
	}
}

func (d *Dispatcher) defaultLanguage() string {
	if d.deps.Tenant != nil && models.IsValidLanguage(d.deps.Tenant.DefaultLanguage) {
		return d.deps.Tenant.DefaultLanguage
	}
	return "en"
}

func eventKind(k channel.EventKind) brain.EventKind {
	switch k {
	case channel.KindButton:
		return brain.EventButton
	case channel.KindVoiceText:
		return brain.EventVoiceText
	case channel.KindImageDescription:
		return brain.EventImageDescription
	case channel.KindFollowupTick:
		return brain.EventFollowupTick
	case channel.KindGhostTick:
		return brain.EventGhostTick
	default:
		return brain.EventText
	}
}
