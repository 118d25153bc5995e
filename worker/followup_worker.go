package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/channel"
	"estatenexy/dispatcher"
	"estatenexy/models"
	"estatenexy/session"
)

// DispatcherRegistry hands out the live dispatcher for a tenant
// channel, so scheduled messages take the exact same path as inbound
// ones.
type DispatcherRegistry interface {
	DispatcherFor(tenantID uint, channel string) (*dispatcher.Dispatcher, bool)
}

var ErrDispatcherOffline = errors.New("worker: no running dispatcher for lead")

// stageClaims owns the short-lived per-stage locks that keep
// overlapping scans (or sibling processes) from double-sending.
type stageClaims interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// templateSource resolves the message body for a drip stage or the
// ghost nudge, falling back to English when the lead's language has no
// template.
type templateSource interface {
	Body(ctx context.Context, stage int, language string, ghost bool) (string, error)
}

// leadProgress applies the persistent state changes of a delivered
// scheduled message.
type leadProgress interface {
	Advance(ctx context.Context, lead *models.Lead, fromStage int) error
	Disable(ctx context.Context, lead *models.Lead, fromStage int) error
	MarkGhostSent(ctx context.Context, lead *models.Lead) error
}

type leadLoader interface {
	GetByID(ctx context.Context, id uint) (*models.Lead, error)
}

type redisClaims struct {
	client *redis.Client
}

func (c redisClaims) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, 1, ttl).Result()
}

func (c redisClaims) Release(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}

type dbTemplates struct {
	db *gorm.DB
}

func (t dbTemplates) Body(ctx context.Context, stage int, language string, ghost bool) (string, error) {
	lookup := func(lang string) (models.FollowupTemplate, error) {
		var tpl models.FollowupTemplate
		q := t.db.WithContext(ctx).Where("is_ghost = ?", ghost)
		if !ghost {
			q = q.Where("stage = ?", stage)
		}
		err := q.Where("language = ?", lang).First(&tpl).Error
		return tpl, err
	}

	tpl, err := lookup(language)
	if errors.Is(err, gorm.ErrRecordNotFound) && language != "en" {
		tpl, err = lookup("en")
	}
	if err != nil {
		return "", fmt.Errorf("worker: no template for stage %d (%s, ghost=%t): %w", stage, language, ghost, err)
	}
	return tpl.Body, nil
}

type dbProgress struct {
	db    *gorm.DB
	store *session.Store
}

// Advance bumps the stage counter exactly once. The guard on the
// current stage makes the update a no-op if a concurrent path already
// moved the lead along.
func (p dbProgress) Advance(ctx context.Context, lead *models.Lead, fromStage int) error {
	next := time.Now().Add(models.FollowupDelayForStage(fromStage + 1))
	err := p.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND followup_stage = ?", lead.ID, fromStage).
		Updates(map[string]interface{}{
			"followup_stage":   fromStage + 1,
			"next_followup_at": next,
		}).Error
	if err != nil {
		return fmt.Errorf("worker: advance lead %d: %w", lead.ID, err)
	}
	p.store.Invalidate(ctx, lead)
	return nil
}

func (p dbProgress) Disable(ctx context.Context, lead *models.Lead, fromStage int) error {
	err := p.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND followup_stage = ?", lead.ID, fromStage).
		Updates(map[string]interface{}{
			"followup_enabled": false,
			"next_followup_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("worker: disable follow-ups for lead %d: %w", lead.ID, err)
	}
	p.store.Invalidate(ctx, lead)
	return nil
}

func (p dbProgress) MarkGhostSent(ctx context.Context, lead *models.Lead) error {
	err := p.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ?", lead.ID).
		Update("ghost_reminder_sent", true).Error
	if err != nil {
		return fmt.Errorf("worker: mark ghost sent for lead %d: %w", lead.ID, err)
	}
	p.store.Invalidate(ctx, lead)
	return nil
}

// FollowupWorker drives the re-engagement drip. It scans for due leads
// on a fixed interval, claims each one so overlapping scans never
// double-send, routes the message through the dispatcher and advances
// the stage counter.
type FollowupWorker struct {
	db        *gorm.DB
	leads     leadLoader
	claims    stageClaims
	templates templateSource
	progress  leadProgress
	registry  DispatcherRegistry
	interval  time.Duration
	logger    *logrus.Entry
}

func NewFollowupWorker(db *gorm.DB, cache *redis.Client, store *session.Store, registry DispatcherRegistry, interval time.Duration, logger *logrus.Entry) *FollowupWorker {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &FollowupWorker{
		db:        db,
		leads:     store,
		claims:    redisClaims{client: cache},
		templates: dbTemplates{db: db},
		progress:  dbProgress{db: db, store: store},
		registry:  registry,
		interval:  interval,
		logger:    logger,
	}
}

func (fw *FollowupWorker) Start(ctx context.Context) {
	fw.logger.Info("starting follow-up worker")
	ticker := time.NewTicker(fw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fw.runOnce(ctx)
		case <-ctx.Done():
			fw.logger.Info("stopping follow-up worker")
			return
		}
	}
}

func (fw *FollowupWorker) runOnce(ctx context.Context) {
	var leads []models.Lead
	err := fw.db.WithContext(ctx).
		Where("followup_enabled = ? AND next_followup_at IS NOT NULL AND next_followup_at <= ?", true, time.Now()).
		Where("conversation_state NOT IN ?", []string{
			string(models.StateHandoff),
			string(models.StateClosedWon),
			string(models.StateClosedLost),
		}).
		Limit(500).
		Find(&leads).Error
	if err != nil {
		fw.logger.WithError(err).Error("follow-up scan failed")
		return
	}
	if len(leads) == 0 {
		return
	}

	fw.logger.WithField("count", len(leads)).Info("processing due follow-ups")
	for i := range leads {
		if ctx.Err() != nil {
			return
		}
		if err := fw.processLead(ctx, &leads[i]); err != nil {
			fw.logger.WithError(err).WithField("lead_id", leads[i].ID).Warn("follow-up failed")
		}
	}
}

// TriggerLead fires the lead's current follow-up stage immediately,
// used by the manual resend endpoint.
func (fw *FollowupWorker) TriggerLead(ctx context.Context, leadID uint) error {
	lead, err := fw.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if !lead.FollowupEnabled {
		return fmt.Errorf("worker: follow-ups disabled for lead %d", leadID)
	}
	if lead.ConversationState.IsTerminal() || lead.ConversationState == models.StateHandoff {
		return fmt.Errorf("worker: lead %d is no longer in an automated state", leadID)
	}
	return fw.processLead(ctx, lead)
}

func (fw *FollowupWorker) processLead(ctx context.Context, lead *models.Lead) error {
	stage := lead.FollowupStage

	claimKey := fmt.Sprintf("followup:claim:%d:%d", lead.ID, stage)
	claimed, err := fw.claims.Acquire(ctx, claimKey, fw.interval)
	if err != nil {
		return fmt.Errorf("worker: claim lead %d: %w", lead.ID, err)
	}
	if !claimed {
		// Another scan already owns this stage.
		return nil
	}

	body, err := fw.templates.Body(ctx, stage, lead.Language, false)
	if err != nil {
		fw.claims.Release(ctx, claimKey)
		return err
	}

	disp, ok := fw.registry.DispatcherFor(lead.TenantID, lead.Channel)
	if !ok {
		fw.claims.Release(ctx, claimKey)
		return ErrDispatcherOffline
	}

	err = disp.HandleEvent(ctx, channel.InboundEvent{
		TenantID:        lead.TenantID,
		Channel:         lead.Channel,
		ChannelIdentity: lead.ChannelIdentity,
		Kind:            channel.KindFollowupTick,
		Payload:         RenderTemplate(body, lead.Name),
		Timestamp:       time.Now(),
	})
	if err != nil {
		fw.claims.Release(ctx, claimKey)
		return fmt.Errorf("worker: dispatch follow-up for lead %d: %w", lead.ID, err)
	}

	if stage >= models.FollowupExitStage {
		// The exit message just went out; the drip is over.
		return fw.progress.Disable(ctx, lead, stage)
	}
	return fw.progress.Advance(ctx, lead, stage)
}

// RenderTemplate fills the {{name}} placeholder, falling back to a
// neutral greeting for leads that never shared one.
func RenderTemplate(body, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return strings.ReplaceAll(body, "{{name}}", name)
}
