package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatenexy/brain"
	"estatenexy/channel"
	"estatenexy/models"
	"estatenexy/session"
)

type fakeStore struct {
	mu      sync.Mutex
	leads   map[string]*models.Lead
	nextID  uint
	saveErr error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[string]*models.Lead)}
}

func (f *fakeStore) Resolve(ctx context.Context, tenantID uint, ch, identity, defaultLanguage string) (*models.Lead, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := identity
	if lead, ok := f.leads[key]; ok {
		return lead, false, nil
	}
	f.nextID++
	lead := &models.Lead{
		TenantID:          tenantID,
		Channel:           ch,
		ChannelIdentity:   identity,
		Language:          defaultLanguage,
		ConversationState: models.StateStart,
		Slots:             models.SlotMap{},
		Temperature:       models.TemperatureCold,
		FollowupEnabled:   true,
	}
	lead.ID = f.nextID
	f.leads[key] = lead
	return lead, true, nil
}

func (f *fakeStore) Save(ctx context.Context, lead *models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.leads[lead.ChannelIdentity] = lead
	return nil
}

func (f *fakeStore) get(identity string) *models.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leads[identity]
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []channel.Reply
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, reply channel.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, reply)
	return nil
}

func (f *fakeSender) replies() []channel.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.Reply(nil), f.sent...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, tenant *models.Tenant, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

type fakeGhost struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeGhost) EnqueueGhostNudge(ctx context.Context, leadID uint, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeGhost) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	candidates models.SlotMap
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, known models.SlotMap) models.SlotMap {
	if f.candidates == nil {
		return models.SlotMap{}
	}
	return f.candidates.Clone()
}

type fakeInference struct {
	answer string
	err    error
}

func (f *fakeInference) ExtractSlots(ctx context.Context, text string) (map[string]string, error) {
	return nil, nil
}

func (f *fakeInference) Answer(ctx context.Context, question, language string) (string, error) {
	return f.answer, f.err
}

type fixture struct {
	store    *fakeStore
	sender   *fakeSender
	notifier *fakeNotifier
	ghost    *fakeGhost
	disp     *Dispatcher
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(),
		sender:   &fakeSender{},
		notifier: &fakeNotifier{},
		ghost:    &fakeGhost{},
	}
	deps := Deps{
		Tenant:     &models.Tenant{DefaultLanguage: "en"},
		Channel:    models.ChannelTelegram,
		Store:      f.store,
		Brain:      brain.NewBrain(brain.Config{}),
		Extractor:  &fakeExtractor{},
		Inference:  &fakeInference{},
		Sender:     f.sender,
		Notifier:   f.notifier,
		Ghost:      f.ghost,
		Hub:        NewHub(),
		Locks:      session.NewKeyedMutex(),
		GhostDelay: time.Hour,
	}
	deps.Tenant.ID = 1
	if mutate != nil {
		mutate(&deps)
	}
	f.disp = New(deps)
	return f
}

func inbound(kind channel.EventKind, payload string) channel.InboundEvent {
	return channel.InboundEvent{
		TenantID:        1,
		Channel:         models.ChannelTelegram,
		ChannelIdentity: "12345",
		Kind:            kind,
		Payload:         payload,
		SenderName:      "Sara",
		Timestamp:       time.Now(),
	}
}

func TestFirstContactGreetsAndPersists(t *testing.T) {
	f := newFixture(t, nil)

	err := f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "hi"))
	require.NoError(t, err)

	lead := f.store.get("12345")
	require.NotNil(t, lead)
	assert.Equal(t, models.StateLanguageSelect, lead.ConversationState)
	assert.Equal(t, "Sara", lead.Name)
	assert.NotNil(t, lead.LastInboundAt)
	assert.NotNil(t, lead.NextFollowupAt)

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, brain.LanguageButtons, replies[0].Buttons)

	assert.Equal(t, 1, f.ghost.count())
}

func TestTurnEventPublishedToHub(t *testing.T) {
	f := newFixture(t, nil)
	events, cancel := f.disp.deps.Hub.Subscribe()
	defer cancel()

	require.NoError(t, f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "hi")))

	select {
	case ev := <-events:
		assert.Equal(t, uint(1), ev.TenantID)
		assert.Equal(t, string(models.StateLanguageSelect), ev.State)
	case <-time.After(time.Second):
		t.Fatal("no turn event published")
	}
}

func TestSaveFailureAbortsAndSendsFallback(t *testing.T) {
	f := newFixture(t, nil)
	f.store.saveErr = errors.New("db down")

	err := f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "hi"))
	require.Error(t, err)

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, brain.FallbackMessage("en"), replies[0].Text)
	assert.Zero(t, f.ghost.count())
}

func TestAdminNotificationFailureDoesNotFailTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.err = errors.New("smtp unreachable")

	// Walk the lead to CAPTURE_CONTACT so a phone triggers the alert.
	lead, _, err := f.store.Resolve(context.Background(), 1, models.ChannelTelegram, "12345", "en")
	require.NoError(t, err)
	lead.ConversationState = models.StateCaptureContact

	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "+971 50 123 4567"))
	require.NoError(t, err)

	saved := f.store.get("12345")
	assert.Equal(t, models.StateSlotFilling, saved.ConversationState)
	assert.Equal(t, "+971501234567", saved.Phone)
}

func TestQuestionAnsweredThroughInference(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Inference = &fakeInference{answer: "Yes, installment plans are available."}
	})
	lead, _, err := f.store.Resolve(context.Background(), 1, models.ChannelTelegram, "12345", "en")
	require.NoError(t, err)
	lead.ConversationState = models.StateEngagement

	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "do you offer payment plans?"))
	require.NoError(t, err)

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "Yes, installment plans are available.", replies[0].Text)
}

func TestQuestionFallsBackWhenInferenceDown(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Inference = &fakeInference{err: errors.New("rate limited")}
	})
	lead, _, err := f.store.Resolve(context.Background(), 1, models.ChannelTelegram, "12345", "en")
	require.NoError(t, err)
	lead.ConversationState = models.StateEngagement

	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "do you offer payment plans?"))
	require.NoError(t, err)

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, brain.FallbackMessage("en"), replies[0].Text)
}

func TestSyntheticTickDeliversBodyWithoutRearming(t *testing.T) {
	f := newFixture(t, nil)
	lead, _, err := f.store.Resolve(context.Background(), 1, models.ChannelTelegram, "12345", "en")
	require.NoError(t, err)
	lead.ConversationState = models.StateEngagement

	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindFollowupTick, "Still looking, Sara?"))
	require.NoError(t, err)

	saved := f.store.get("12345")
	assert.Nil(t, saved.LastInboundAt)
	assert.Nil(t, saved.NextFollowupAt)
	assert.NotNil(t, saved.LastContactedAt)

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "Still looking, Sara?", replies[0].Text)

	// Synthetic turns never schedule a ghost nudge.
	assert.Zero(t, f.ghost.count())
}

func TestSendFailureMarksReplyPending(t *testing.T) {
	f := newFixture(t, nil)
	f.sender.sendErr = errors.New("network unreachable")

	err := f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "hi"))
	require.NoError(t, err)

	saved := f.store.get("12345")
	assert.True(t, saved.ReplyPending)
	assert.NotEmpty(t, saved.LastError)
	// The failed reply must not roll back the state transition.
	assert.Equal(t, models.StateLanguageSelect, saved.ConversationState)
}

func TestGhostNotEnqueuedAfterHandoff(t *testing.T) {
	f := newFixture(t, nil)
	lead, _, err := f.store.Resolve(context.Background(), 1, models.ChannelTelegram, "12345", "en")
	require.NoError(t, err)
	lead.ConversationState = models.StateEngagement

	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "please book me a viewing"))
	require.NoError(t, err)

	saved := f.store.get("12345")
	assert.Equal(t, models.StateHandoff, saved.ConversationState)
	assert.Nil(t, saved.NextFollowupAt)
	assert.Zero(t, f.ghost.count())
}

type panickingSender struct{}

func (panickingSender) Send(ctx context.Context, reply channel.Reply) error {
	panic("transport library blew up")
}

func TestTurnPanicIsContained(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Sender = panickingSender{}
	})

	err := f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn panic")

	// The per-lead lock was released during unwinding; the next turn
	// for the same lead must not deadlock.
	f.disp.deps.Sender = f.sender
	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "hi"))
	require.NoError(t, err)
}

func TestRunSurvivesPanickingTurn(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Sender = panickingSender{}
	})

	events := make(chan channel.InboundEvent, 1)
	events <- inbound(channel.KindText, "hi")
	close(events)

	err := f.disp.Run(context.Background(), &stubSource{events: events})
	require.NoError(t, err)
}

func TestAnswerOnlyTurnMarksContact(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Inference = &fakeInference{answer: "Yes, the metro is five minutes away."}
	})
	lead, _, err := f.store.Resolve(context.Background(), 1, models.ChannelTelegram, "12345", "en")
	require.NoError(t, err)
	lead.ConversationState = models.StateCaptureContact

	// CAPTURE_CONTACT answers a question with no primary reply.
	err = f.disp.HandleEvent(context.Background(), inbound(channel.KindText, "is there a metro nearby?"))
	require.NoError(t, err)

	saved := f.store.get("12345")
	assert.NotNil(t, saved.LastContactedAt)
}

func TestRunDrainsInFlightTurnsOnSourceClose(t *testing.T) {
	f := newFixture(t, nil)

	events := make(chan channel.InboundEvent, 2)
	events <- inbound(channel.KindText, "hi")
	events <- channel.InboundEvent{
		TenantID:        1,
		Channel:         models.ChannelTelegram,
		ChannelIdentity: "67890",
		Kind:            channel.KindText,
		Payload:         "hello",
		Timestamp:       time.Now(),
	}
	close(events)

	src := &stubSource{events: events}
	err := f.disp.Run(context.Background(), src)
	require.NoError(t, err)

	assert.NotNil(t, f.store.get("12345"))
	assert.NotNil(t, f.store.get("67890"))
}

type stubSource struct {
	events chan channel.InboundEvent
}

func (s *stubSource) Events() <-chan channel.InboundEvent { return s.events }

func (s *stubSource) Run(ctx context.Context) error { return nil }
