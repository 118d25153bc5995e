package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/channel"
	"estatenexy/models"
	"estatenexy/session"
)

const TaskGhostNudge = "ghost:nudge"

type ghostPayload struct {
	LeadID uint `json:"lead_id"`
}

// GhostEnqueuer schedules the one-shot "are you still there?" nudge.
// The task ID pins one pending nudge per lead; enqueueing again while
// one is pending is a deliberate no-op.
type GhostEnqueuer struct {
	client *asynq.Client
	logger *logrus.Entry
}

func NewGhostEnqueuer(redisAddr, redisPassword string, redisDB int, logger *logrus.Entry) *GhostEnqueuer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &GhostEnqueuer{client: client, logger: logger}
}

func (g *GhostEnqueuer) EnqueueGhostNudge(ctx context.Context, leadID uint, delay time.Duration) error {
	payload, err := json.Marshal(ghostPayload{LeadID: leadID})
	if err != nil {
		return fmt.Errorf("worker: marshal ghost payload: %w", err)
	}

	task := asynq.NewTask(TaskGhostNudge, payload)
	_, err = g.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID(fmt.Sprintf("ghost:%d", leadID)),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("worker: enqueue ghost nudge for lead %d: %w", leadID, err)
	}
	return nil
}

func (g *GhostEnqueuer) Close() error {
	return g.client.Close()
}

// GhostWorker consumes scheduled nudges. A nudge only goes out when
// the lead has truly gone quiet; if they wrote back after the task was
// enqueued, the handler drops it and the next inbound turn schedules a
// fresh one.
type GhostWorker struct {
	leads     leadLoader
	templates templateSource
	progress  leadProgress
	registry  DispatcherRegistry
	delay     time.Duration
	logger    *logrus.Entry
	server    *asynq.Server
}

func NewGhostWorker(db *gorm.DB, store *session.Store, registry DispatcherRegistry, redisAddr, redisPassword string, redisDB int, delay time.Duration, logger *logrus.Entry) *GhostWorker {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB},
		asynq.Config{
			Concurrency: 5,
			Logger:      logger,
		},
	)
	return &GhostWorker{
		leads:     store,
		templates: dbTemplates{db: db},
		progress:  dbProgress{db: db, store: store},
		registry:  registry,
		delay:     delay,
		logger:    logger,
		server:    server,
	}
}

func (gw *GhostWorker) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGhostNudge, gw.handleNudge)

	go func() {
		<-ctx.Done()
		gw.server.Shutdown()
	}()

	gw.logger.Info("starting ghost worker")
	return gw.server.Run(mux)
}

func (gw *GhostWorker) handleNudge(ctx context.Context, task *asynq.Task) error {
	var payload ghostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("worker: bad ghost payload: %v: %w", err, asynq.SkipRetry)
	}

	lead, err := gw.leads.GetByID(ctx, payload.LeadID)
	if errors.Is(err, models.ErrLeadNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if lead.GhostReminderSent || lead.ConversationState.IsTerminal() || lead.ConversationState == models.StateHandoff {
		return nil
	}
	if lead.LastInboundAt != nil && time.Since(*lead.LastInboundAt) < gw.delay {
		// They came back; a new nudge gets enqueued off that turn.
		return nil
	}

	body, err := gw.templates.Body(ctx, 0, lead.Language, true)
	if err != nil {
		return err
	}

	disp, ok := gw.registry.DispatcherFor(lead.TenantID, lead.Channel)
	if !ok {
		return ErrDispatcherOffline
	}

	err = disp.HandleEvent(ctx, channel.InboundEvent{
		TenantID:        lead.TenantID,
		Channel:         lead.Channel,
		ChannelIdentity: lead.ChannelIdentity,
		Kind:            channel.KindGhostTick,
		Payload:         RenderTemplate(body, lead.Name),
		Timestamp:       time.Now(),
	})
	if err != nil {
		return fmt.Errorf("worker: dispatch ghost nudge for lead %d: %w", lead.ID, err)
	}

	if merr := gw.progress.MarkGhostSent(ctx, lead); merr != nil {
		gw.logger.WithError(merr).WithField("lead_id", lead.ID).Warn("could not mark ghost reminder sent")
	}

	gw.logger.WithField("lead_id", lead.ID).Info("ghost nudge delivered")
	return nil
}
