// Package session owns durable conversation state: leads in Postgres
// with a Redis fast path in front. It is the only component that writes
// lead rows; everything else goes through it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/models"
)

type Store struct {
	db     *gorm.DB
	cache  *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

func NewStore(db *gorm.DB, cache *redis.Client, ttl time.Duration, logger *logrus.Entry) *Store {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{db: db, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(tenantID uint, channel, identity string) string {
	return fmt.Sprintf("lead:%d:%s:%s", tenantID, channel, identity)
}

// Resolve loads the lead for a channel identity, creating it on first
// contact. The created flag tells the dispatcher this is a brand-new
// conversation.
func (s *Store) Resolve(ctx context.Context, tenantID uint, channel, identity, defaultLanguage string) (*models.Lead, bool, error) {
	if lead := s.fromCache(ctx, tenantID, channel, identity); lead != nil {
		return lead, false, nil
	}

	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND channel = ? AND channel_identity = ?", tenantID, channel, identity).
		First(&lead).Error
	if err == nil {
		s.toCache(ctx, &lead)
		return &lead, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("session: lookup lead: %w", err)
	}

	lead = models.Lead{
		TenantID:          tenantID,
		Channel:           channel,
		ChannelIdentity:   identity,
		Language:          defaultLanguage,
		ConversationState: models.StateStart,
		Slots:             models.SlotMap{},
		Temperature:       models.TemperatureCold,
		FollowupEnabled:   true,
	}
	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, false, fmt.Errorf("session: create lead: %w", err)
	}
	s.toCache(ctx, &lead)
	return &lead, true, nil
}

// GetByID loads a lead by primary key, bypassing the identity cache.
func (s *Store) GetByID(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load lead %d: %w", id, err)
	}
	return &lead, nil
}

// Save persists the lead. The database write is authoritative: on
// failure the cache entry is dropped so the prior durable state wins.
func (s *Store) Save(ctx context.Context, lead *models.Lead) error {
	if err := s.db.WithContext(ctx).Save(lead).Error; err != nil {
		s.invalidate(ctx, lead)
		return fmt.Errorf("session: save lead %d: %w", lead.ID, err)
	}
	s.toCache(ctx, lead)
	return nil
}

func (s *Store) fromCache(ctx context.Context, tenantID uint, channel, identity string) *models.Lead {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(tenantID, channel, identity)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		s.logger.WithError(err).Warn("session cache read failed")
		return nil
	}
	var lead models.Lead
	if err := json.Unmarshal([]byte(raw), &lead); err != nil {
		s.logger.WithError(err).Warn("session cache entry corrupt, dropping")
		s.cache.Del(ctx, cacheKey(tenantID, channel, identity))
		return nil
	}
	return &lead
}

func (s *Store) toCache(ctx context.Context, lead *models.Lead) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(lead)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(lead.TenantID, lead.Channel, lead.ChannelIdentity), raw, s.ttl).Err(); err != nil {
		s.logger.WithError(err).Warn("session cache write failed")
	}
}

// Invalidate drops the cached entry for a lead. Callers that update
// lead columns outside Save (the scheduler's stage bookkeeping) use
// this to keep the cache honest.
func (s *Store) Invalidate(ctx context.Context, lead *models.Lead) {
	s.invalidate(ctx, lead)
}

func (s *Store) invalidate(ctx context.Context, lead *models.Lead) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(lead.TenantID, lead.Channel, lead.ChannelIdentity)).Err(); err != nil {
		s.logger.WithError(err).Warn("session cache invalidate failed")
	}
}
