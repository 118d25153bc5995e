package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatenexy/brain"
	"estatenexy/channel"
	"estatenexy/dispatcher"
	"estatenexy/models"
	"estatenexy/session"
)

type fakeClaims struct {
	mu       sync.Mutex
	grant    bool
	err      error
	acquired []string
	released []string
}

func (f *fakeClaims) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = append(f.acquired, key)
	return f.grant, f.err
}

func (f *fakeClaims) Release(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
}

type fakeTemplates struct {
	body string
	err  error
}

func (f *fakeTemplates) Body(ctx context.Context, stage int, language string, ghost bool) (string, error) {
	return f.body, f.err
}

type fakeProgress struct {
	advanced  []int
	disabled  []int
	ghostSent int
}

func (f *fakeProgress) Advance(ctx context.Context, lead *models.Lead, fromStage int) error {
	f.advanced = append(f.advanced, fromStage)
	return nil
}

func (f *fakeProgress) Disable(ctx context.Context, lead *models.Lead, fromStage int) error {
	f.disabled = append(f.disabled, fromStage)
	return nil
}

func (f *fakeProgress) MarkGhostSent(ctx context.Context, lead *models.Lead) error {
	f.ghostSent++
	return nil
}

type fakeLeads struct {
	lead *models.Lead
}

func (f *fakeLeads) GetByID(ctx context.Context, id uint) (*models.Lead, error) {
	if f.lead == nil || f.lead.ID != id {
		return nil, models.ErrLeadNotFound
	}
	return f.lead, nil
}

// turnStore backs the dispatcher the worker routes through.
type turnStore struct {
	mu         sync.Mutex
	lead       *models.Lead
	resolveErr error
}

func (s *turnStore) Resolve(ctx context.Context, tenantID uint, ch, identity, defaultLanguage string) (*models.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return nil, false, s.resolveErr
	}
	return s.lead, false, nil
}

func (s *turnStore) Save(ctx context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lead = lead
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []channel.Reply
}

func (s *recordingSender) Send(ctx context.Context, reply channel.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, reply)
	return nil
}

func (s *recordingSender) replies() []channel.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]channel.Reply(nil), s.sent...)
}

type staticRegistry struct {
	disp *dispatcher.Dispatcher
}

func (r staticRegistry) DispatcherFor(tenantID uint, ch string) (*dispatcher.Dispatcher, bool) {
	if r.disp == nil {
		return nil, false
	}
	return r.disp, true
}

func dueLead(stage int) *models.Lead {
	lead := &models.Lead{
		TenantID:          1,
		Channel:           models.ChannelTelegram,
		ChannelIdentity:   "12345",
		Language:          "en",
		Name:              "Sara",
		ConversationState: models.StateEngagement,
		Slots:             models.SlotMap{},
		FollowupEnabled:   true,
		FollowupStage:     stage,
	}
	lead.ID = 7
	return lead
}

type workerFixture struct {
	claims    *fakeClaims
	templates *fakeTemplates
	progress  *fakeProgress
	store     *turnStore
	sender    *recordingSender
	fw        *FollowupWorker
}

func newWorkerFixture(t *testing.T, lead *models.Lead) *workerFixture {
	t.Helper()
	f := &workerFixture{
		claims:    &fakeClaims{grant: true},
		templates: &fakeTemplates{body: "Hi {{name}}, still looking?"},
		progress:  &fakeProgress{},
		store:     &turnStore{lead: lead},
		sender:    &recordingSender{},
	}
	tenant := &models.Tenant{DefaultLanguage: "en"}
	tenant.ID = 1
	disp := dispatcher.New(dispatcher.Deps{
		Tenant:  tenant,
		Channel: models.ChannelTelegram,
		Store:   f.store,
		Brain:   brain.NewBrain(brain.Config{}),
		Sender:  f.sender,
		Locks:   session.NewKeyedMutex(),
	})
	f.fw = &FollowupWorker{
		leads:     &fakeLeads{lead: lead},
		claims:    f.claims,
		templates: f.templates,
		progress:  f.progress,
		registry:  staticRegistry{disp: disp},
		interval:  30 * time.Minute,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
	}
	return f
}

func TestFollowupSendsAndAdvancesStage(t *testing.T) {
	lead := dueLead(1)
	f := newWorkerFixture(t, lead)

	require.NoError(t, f.fw.processLead(context.Background(), lead))

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "Hi Sara, still looking?", replies[0].Text)
	assert.Equal(t, []int{1}, f.progress.advanced)
	assert.Empty(t, f.progress.disabled)
	assert.Empty(t, f.claims.released)
}

func TestOverlappingScansSendOnce(t *testing.T) {
	lead := dueLead(1)
	f := newWorkerFixture(t, lead)
	f.claims.grant = false

	// A sibling scan already holds the stage claim.
	require.NoError(t, f.fw.processLead(context.Background(), lead))

	assert.Empty(t, f.sender.replies())
	assert.Empty(t, f.progress.advanced)
	assert.Empty(t, f.progress.disabled)
	assert.Equal(t, []string{"followup:claim:7:1"}, f.claims.acquired)
}

func TestExitStageDisablesDrip(t *testing.T) {
	lead := dueLead(models.FollowupExitStage)
	f := newWorkerFixture(t, lead)

	require.NoError(t, f.fw.processLead(context.Background(), lead))

	require.Len(t, f.sender.replies(), 1)
	assert.Equal(t, []int{models.FollowupExitStage}, f.progress.disabled)
	assert.Empty(t, f.progress.advanced)
}

func TestClaimReleasedWhenDispatchFails(t *testing.T) {
	lead := dueLead(2)
	f := newWorkerFixture(t, lead)
	f.store.resolveErr = errors.New("db down")

	err := f.fw.processLead(context.Background(), lead)
	require.Error(t, err)

	// The failed window must stay claimable for the next scan.
	assert.Equal(t, []string{"followup:claim:7:2"}, f.claims.released)
	assert.Empty(t, f.progress.advanced)
	assert.Empty(t, f.progress.disabled)
}

func TestClaimReleasedWhenDispatcherOffline(t *testing.T) {
	lead := dueLead(0)
	f := newWorkerFixture(t, lead)
	f.fw.registry = staticRegistry{}

	err := f.fw.processLead(context.Background(), lead)
	require.ErrorIs(t, err, ErrDispatcherOffline)
	assert.Equal(t, []string{"followup:claim:7:0"}, f.claims.released)
}

func TestClaimReleasedWhenTemplateMissing(t *testing.T) {
	lead := dueLead(3)
	f := newWorkerFixture(t, lead)
	f.templates.err = errors.New("no template")

	err := f.fw.processLead(context.Background(), lead)
	require.Error(t, err)
	assert.Equal(t, []string{"followup:claim:7:3"}, f.claims.released)
	assert.Empty(t, f.sender.replies())
}

func TestRenderTemplate(t *testing.T) {
	assert.Equal(t, "Hi Sara, still looking?", RenderTemplate("Hi {{name}}, still looking?", "Sara"))
	assert.Equal(t, "Hi there, still looking?", RenderTemplate("Hi {{name}}, still looking?", ""))
	assert.Equal(t, "Hi there, still looking?", RenderTemplate("Hi {{name}}, still looking?", "   "))
	assert.Equal(t, "No placeholder here.", RenderTemplate("No placeholder here.", "Sara"))
}

func TestFollowupCadence(t *testing.T) {
	assert.Equal(t, 30*time.Minute, models.FollowupDelayForStage(0))
	assert.Equal(t, 4*time.Hour, models.FollowupDelayForStage(1))
	assert.Equal(t, 72*time.Hour, models.FollowupDelayForStage(models.FollowupExitStage))

	// Out-of-range stages clamp instead of panicking.
	assert.Equal(t, 30*time.Minute, models.FollowupDelayForStage(-1))
	assert.Equal(t, 72*time.Hour, models.FollowupDelayForStage(models.FollowupExitStage+3))
}
