package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"estatenexy/brain"
	"estatenexy/channel"
	"estatenexy/channel/telegram"
	"estatenexy/config"
	"estatenexy/dispatcher"
	"estatenexy/extractor"
	"estatenexy/inference"
	"estatenexy/manager"
	"estatenexy/matching"
	"estatenexy/models"
	"estatenexy/notify"
	"estatenexy/routes"
	"estatenexy/session"
	"estatenexy/utils"
	"estatenexy/worker"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger := logrus.WithField("component", "main")

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database and cache connections
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := config.ConnectRedis(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared conversation machinery
	var infClient inference.Client = inference.Disabled{}
	if config.AppConfig.OpenAIAPIKey != "" {
		infClient = inference.NewOpenAI(config.AppConfig.OpenAIAPIKey, config.AppConfig.OpenAIModel)
	}

	store := session.NewStore(config.DB, config.Redis, config.AppConfig.SessionCacheTTL, logrus.WithField("component", "session"))
	locks := session.NewKeyedMutex()
	hub := dispatcher.NewHub()
	engine := brain.NewBrain(brain.Config{})
	slotExtractor := extractor.New(infClient, logrus.WithField("component", "extractor"))

	var matcher dispatcher.PropertyMatcher
	if config.AppConfig.MatchingServiceURL != "" {
		matcher = matching.NewClient(config.AppConfig.MatchingServiceURL)
	}

	var notifier notify.AdminNotifier
	if config.AppConfig.SMTP.Host != "" {
		notifier = notify.NewEmailNotifier(
			config.AppConfig.SMTP.Host,
			config.AppConfig.SMTP.Port,
			config.AppConfig.SMTP.Username,
			config.AppConfig.SMTP.Password,
			config.AppConfig.SMTP.From,
			logrus.WithField("component", "notify"),
		)
	}

	ghost := worker.NewGhostEnqueuer(
		config.AppConfig.RedisAddr,
		config.AppConfig.RedisPassword,
		config.AppConfig.RedisDB,
		logrus.WithField("component", "ghost"),
	)
	defer ghost.Close()

	// Builder handed to the manager: one dispatcher per tenant channel.
	build := func(tenant *models.Tenant, cred *models.BotCredential) (*dispatcher.Dispatcher, channel.UpdateSource, error) {
		token, err := utils.DecryptToken(cred.TokenEncrypted)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt credential: %w", err)
		}

		var src channel.UpdateSource
		var sender channel.Sender
		switch cred.Channel {
		case models.ChannelTelegram:
			client, err := telegram.New(token, tenant.ID, logrus.WithFields(logrus.Fields{
				"component": "telegram",
				"tenant_id": tenant.ID,
			}))
			if err != nil {
				return nil, nil, err
			}
			src = client
			sender = client
		default:
			return nil, nil, fmt.Errorf("channel %q is not supported yet", cred.Channel)
		}

		disp := dispatcher.New(dispatcher.Deps{
			Tenant:       tenant,
			Channel:      cred.Channel,
			Store:        store,
			Brain:        engine,
			Extractor:    slotExtractor,
			Matcher:      matcher,
			Inference:    infClient,
			Sender:       sender,
			Notifier:     notifier,
			Ghost:        ghost,
			Hub:          hub,
			Locks:        locks,
			GhostDelay:   config.AppConfig.GhostDelay,
			DrainTimeout: config.AppConfig.DrainTimeout,
			Logger: logrus.WithFields(logrus.Fields{
				"component": "dispatcher",
				"tenant_id": tenant.ID,
				"channel":   cred.Channel,
			}),
		})
		return disp, src, nil
	}

	mgr := manager.New(config.DB, build, config.AppConfig.DrainTimeout, logrus.WithField("component", "manager"))
	if err := mgr.StartAll(ctx); err != nil {
		logger.Fatalf("Failed to start bot fleet: %v", err)
	}

	// Background workers
	followups := worker.NewFollowupWorker(
		config.DB, config.Redis, store, mgr,
		config.AppConfig.FollowupInterval,
		logrus.WithField("component", "followup"),
	)
	go followups.Start(ctx)

	ghostWorker := worker.NewGhostWorker(
		config.DB, store, mgr,
		config.AppConfig.RedisAddr,
		config.AppConfig.RedisPassword,
		config.AppConfig.RedisDB,
		config.AppConfig.GhostDelay,
		logrus.WithField("component", "ghost"),
	)
	go func() {
		if err := ghostWorker.Start(ctx); err != nil {
			logger.WithError(err).Error("ghost worker stopped")
		}
	}()

	// Management API
	app := fiber.New(fiber.Config{
		AppName: "estatenexy",
	})
	routes.SetupRoutes(app, config.DB, mgr, followups, hub)

	go func() {
		port := config.AppConfig.ServerPort
		if port == "" {
			port = "8080"
		}
		if err := app.Listen(":" + port); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	mgr.StopAll(shutdownCtx)
	if err := app.Shutdown(); err != nil {
		logger.WithError(err).Warn("server shutdown failed")
	}
}
