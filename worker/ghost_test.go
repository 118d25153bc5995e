package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatenexy/brain"
	"estatenexy/dispatcher"
	"estatenexy/models"
	"estatenexy/session"
)

type ghostFixture struct {
	templates *fakeTemplates
	progress  *fakeProgress
	store     *turnStore
	sender    *recordingSender
	gw        *GhostWorker
}

func newGhostFixture(t *testing.T, lead *models.Lead) *ghostFixture {
	t.Helper()
	f := &ghostFixture{
		templates: &fakeTemplates{body: "Still there, {{name}}?"},
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
	f.gw = &GhostWorker{
		leads:     &fakeLeads{lead: lead},
		templates: f.templates,
		progress:  f.progress,
		registry:  staticRegistry{disp: disp},
		delay:     time.Hour,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
	}
	return f
}

func nudgeTask(t *testing.T, leadID uint) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(ghostPayload{LeadID: leadID})
	require.NoError(t, err)
	return asynq.NewTask(TaskGhostNudge, payload)
}

func TestGhostNudgeDeliversOnce(t *testing.T) {
	lead := dueLead(0)
	quiet := time.Now().Add(-2 * time.Hour)
	lead.LastInboundAt = &quiet
	f := newGhostFixture(t, lead)

	require.NoError(t, f.gw.handleNudge(context.Background(), nudgeTask(t, 7)))

	replies := f.sender.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "Still there, Sara?", replies[0].Text)
	assert.Equal(t, 1, f.progress.ghostSent)
}

func TestGhostNudgeSkippedWhenAlreadySent(t *testing.T) {
	lead := dueLead(0)
	lead.GhostReminderSent = true
	f := newGhostFixture(t, lead)

	require.NoError(t, f.gw.handleNudge(context.Background(), nudgeTask(t, 7)))

	assert.Empty(t, f.sender.replies())
	assert.Zero(t, f.progress.ghostSent)
}

func TestGhostNudgeSkippedWhenLeadCameBack(t *testing.T) {
	lead := dueLead(0)
	recent := time.Now().Add(-5 * time.Minute)
	lead.LastInboundAt = &recent
	f := newGhostFixture(t, lead)

	require.NoError(t, f.gw.handleNudge(context.Background(), nudgeTask(t, 7)))

	assert.Empty(t, f.sender.replies())
	assert.Zero(t, f.progress.ghostSent)
}

func TestGhostNudgeSkippedAfterHandoff(t *testing.T) {
	lead := dueLead(0)
	lead.ConversationState = models.StateHandoff
	f := newGhostFixture(t, lead)

	require.NoError(t, f.gw.handleNudge(context.Background(), nudgeTask(t, 7)))

	assert.Empty(t, f.sender.replies())
	assert.Zero(t, f.progress.ghostSent)
}

func TestGhostNudgeDroppedForDeletedLead(t *testing.T) {
	f := newGhostFixture(t, nil)

	// A lead deleted after the task was enqueued is not an error.
	require.NoError(t, f.gw.handleNudge(context.Background(), nudgeTask(t, 404)))
	assert.Empty(t, f.sender.replies())
}
