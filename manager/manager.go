// Package manager owns the fleet: exactly one running channel
// dispatcher per (tenant, channel) pair, with explicit start/stop
// lifecycle and per-tenant crash isolation.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/channel"
	"estatenexy/dispatcher"
	"estatenexy/models"
)

// Builder constructs the dispatcher and its update source for one
// tenant credential. Channel authentication happens here, so auth
// failures surface per-tenant and never crash the manager.
type Builder func(tenant *models.Tenant, cred *models.BotCredential) (*dispatcher.Dispatcher, channel.UpdateSource, error)

var (
	ErrNotRunning = errors.New("manager: dispatcher not running")
	ErrNoTenant   = errors.New("manager: tenant not found")
	ErrNoCred     = errors.New("manager: no active credential for channel")
)

type botKey struct {
	tenantID uint
	channel  string
}

type runningBot struct {
	dispatcher *dispatcher.Dispatcher
	cancel     context.CancelFunc
	done       chan struct{}
}

type Manager struct {
	db           *gorm.DB
	build        Builder
	logger       *logrus.Entry
	drainTimeout time.Duration

	mu   sync.Mutex
	bots map[botKey]*runningBot
}

func New(db *gorm.DB, build Builder, drainTimeout time.Duration, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &Manager{
		db:           db,
		build:        build,
		logger:       logger,
		drainTimeout: drainTimeout,
		bots:         make(map[botKey]*runningBot),
	}
}

// Start launches the dispatcher for (tenant, channel). Starting an
// already-running dispatcher is a no-op.
func (m *Manager) Start(ctx context.Context, tenantID uint, channelName string) error {
	key := botKey{tenantID: tenantID, channel: channelName}

	// Reserve the slot before any loading or channel authentication.
	// A concurrent Start for the same pair returns here, so at most one
	// caller ever builds a client and nothing built gets thrown away.
	botCtx, cancel := context.WithCancel(context.Background())
	rb := &runningBot{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, ok := m.bots[key]; ok {
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.bots[key] = rb
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		if m.bots[key] == rb {
			delete(m.bots, key)
		}
		m.mu.Unlock()
		cancel()
		close(rb.done)
	}

	var tenant models.Tenant
	if err := m.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		release()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoTenant
		}
		return fmt.Errorf("manager: load tenant %d: %w", tenantID, err)
	}

	var cred models.BotCredential
	err := m.db.WithContext(ctx).
		Where("tenant_id = ? AND channel = ? AND is_active = ?", tenantID, channelName, true).
		First(&cred).Error
	if err != nil {
		release()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoCred
		}
		return fmt.Errorf("manager: load credential: %w", err)
	}

	disp, src, err := m.build(&tenant, &cred)
	if err != nil {
		release()
		m.recordCredentialError(cred.ID, err)
		return fmt.Errorf("manager: start %d/%s: %w", tenantID, channelName, err)
	}

	m.mu.Lock()
	rb.dispatcher = disp
	m.mu.Unlock()

	go m.run(botCtx, key, rb, src, cred.ID)

	m.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"channel":   channelName,
	}).Info("dispatcher started")
	return nil
}

// run hosts one dispatcher. A panic here is captured and isolated: the
// bot is removed from the registry and every other tenant keeps going.
func (m *Manager) run(ctx context.Context, key botKey, rb *runningBot, src channel.UpdateSource, credID uint) {
	defer close(rb.done)
	defer func() {
		m.mu.Lock()
		if m.bots[key] == rb {
			delete(m.bots, key)
		}
		m.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("dispatcher panic (tenant %d, %s): %v", key.tenantID, key.channel, r)
			sentry.CaptureException(err)
			m.logger.WithError(err).Error("dispatcher crashed")
			m.recordCredentialError(credID, err)
		}
	}()

	if err := rb.dispatcher.Run(ctx, src); err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": key.tenantID,
			"channel":   key.channel,
		}).Error("dispatcher stopped with error")
		m.recordCredentialError(credID, err)
	}
}

// Stop cancels the dispatcher and waits for in-flight turns to drain
// within the bounded timeout.
func (m *Manager) Stop(ctx context.Context, tenantID uint, channelName string) error {
	key := botKey{tenantID: tenantID, channel: channelName}

	m.mu.Lock()
	rb, ok := m.bots[key]
	if ok {
		delete(m.bots, key)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	rb.cancel()
	select {
	case <-rb.done:
	case <-time.After(m.drainTimeout):
		m.logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"channel":   channelName,
		}).Warn("dispatcher did not drain in time")
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"channel":   channelName,
	}).Info("dispatcher stopped")
	return nil
}

func (m *Manager) Restart(ctx context.Context, tenantID uint, channelName string) error {
	if err := m.Stop(ctx, tenantID, channelName); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return m.Start(ctx, tenantID, channelName)
}

// StartAll boots every active credential. Per-tenant failures are
// logged and skipped; one broken token never blocks the fleet.
func (m *Manager) StartAll(ctx context.Context) error {
	var creds []models.BotCredential
	if err := m.db.WithContext(ctx).Where("is_active = ?", true).Find(&creds).Error; err != nil {
		return fmt.Errorf("manager: list credentials: %w", err)
	}

	for _, cred := range creds {
		if err := m.Start(ctx, cred.TenantID, cred.Channel); err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"tenant_id": cred.TenantID,
				"channel":   cred.Channel,
			}).Error("failed to start dispatcher")
		}
	}
	return nil
}

// StopAll shuts the fleet down, used on process exit.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	keys := make([]botKey, 0, len(m.bots))
	for k := range m.bots {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, k := range keys {
		if err := m.Stop(ctx, k.tenantID, k.channel); err != nil && !errors.Is(err, ErrNotRunning) {
			m.logger.WithError(err).Warn("stop failed during shutdown")
		}
	}
}

// DispatcherFor exposes the running dispatcher for the scheduler path.
func (m *Manager) DispatcherFor(tenantID uint, channelName string) (*dispatcher.Dispatcher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rb, ok := m.bots[botKey{tenantID: tenantID, channel: channelName}]
	if !ok || rb.dispatcher == nil {
		// A nil dispatcher is a reservation still being built.
		return nil, false
	}
	return rb.dispatcher, true
}

// Running reports whether a dispatcher is live for the pair.
func (m *Manager) Running(tenantID uint, channelName string) bool {
	_, ok := m.DispatcherFor(tenantID, channelName)
	return ok
}

func (m *Manager) recordCredentialError(credID uint, err error) {
	if credID == 0 {
		return
	}
	uerr := m.db.Model(&models.BotCredential{}).Where("id = ?", credID).
		Update("last_error", err.Error()).Error
	if uerr != nil {
		m.logger.WithError(uerr).Warn("could not record credential error")
	}
}
