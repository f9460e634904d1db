package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Service interface {
	GetActiveSession(ctx context.Context, key string) (*session.Session, error)
	UpdateSessionActivity(ctx context.Context, key string) error
	CacheActiveSession(ctx context.Context, session *session.Session) error
	InvalidateSession(ctx context.Context, userID, sessionID string) error
	SaveUserStats(ctx context.Context, stats *models.Stats) error
	GetUserStats(ctx context.Context) (*models.Stats, error)
}

type cacheService struct {
	client     *redis.Client
	cfg        *config.CacheConfig
	sessionCfg *config.SessionConfig
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client:     client,
		cfg:        &cfg.Cache,
		sessionCfg: &cfg.Session,
	}
}

// SessionKey builds the cache key for a user session.
func SessionKey(userID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", userID, sessionID)
}

func (c *cacheService) GetActiveSession(ctx context.Context, key string) (*session.Session, error) {
	logrus.WithField("key", key).Debug("Getting active session from cache")

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("key", key).Debug("Session not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to get session from cache")
		return nil, models.ErrRedisGet
	}

	var s session.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to unmarshal session from cache")
		return nil, models.ErrRedisGet
	}

	logrus.WithField("key", key).Debug("Session retrieved from cache successfully")
	return &s, nil
}

func (c *cacheService) UpdateSessionActivity(ctx context.Context, key string) error {
	logrus.WithField("key", key).Debug("Updating session activity in cache")

	s, err := c.GetActiveSession(ctx, key)
	if err != nil || s == nil {
		return err
	}

	s.LastActiveAt = time.Now()

	data, err := json.Marshal(s)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal session for activity update")
		return models.ErrRedisSet
	}

	// Cache TTL is extended on activity; the absolute session expiry is
	// still enforced against the stored row.
	extendedTTL := time.Duration(c.sessionCfg.SessionExpirationMinutes) * time.Minute
	if remaining := time.Until(s.ExpiresAt); remaining < extendedTTL {
		extendedTTL = remaining
	}
	if extendedTTL <= 0 {
		return nil
	}

	err = c.client.Set(ctx, key, data, extendedTTL).Err()
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to update session activity")
		return models.ErrRedisSet
	}

	logrus.WithField("key", key).Debug("Session activity updated successfully")
	return nil
}

func (c *cacheService) CacheActiveSession(ctx context.Context, s *session.Session) error {
	key := SessionKey(s.UserID, s.SessionID)

	data, err := json.Marshal(s)
	if err != nil {
		logrus.WithError(err).WithField("session_id", s.SessionID).Error("Failed to marshal session for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.sessionCfg.SessionExpirationMinutes) * time.Minute
	if remaining := time.Until(s.ExpiresAt); remaining < expiration {
		expiration = remaining
	}
	if expiration <= 0 {
		logrus.WithField("session_id", s.SessionID).Warn("Session already expired, not caching")
		return nil
	}

	err = c.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		logrus.WithError(err).WithField("session_id", s.SessionID).Error("Failed to cache session")
		return models.ErrRedisSet
	}

	logrus.WithField("session_id", s.SessionID).Debug("Session cached successfully")
	return nil
}

func (c *cacheService) InvalidateSession(ctx context.Context, userID, sessionID string) error {
	key := SessionKey(userID, sessionID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to invalidate session in cache")
		return models.ErrRedisDelete
	}

	logrus.WithField("key", key).Debug("Session invalidated in cache")
	return nil
}

func (c *cacheService) SaveUserStats(ctx context.Context, stats *models.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal user stats for cache")
		return models.ErrRedisSet
	}
	expiration := time.Duration(c.cfg.UserStatExpirationMinutes) * time.Minute
	err = c.client.Set(ctx, c.cfg.UserStatKey, data, expiration).Err()
	if err != nil {
		logrus.WithError(err).Error("Failed to cache stats")
		return models.ErrRedisSet
	}
	return nil
}

func (c *cacheService) GetUserStats(ctx context.Context) (*models.Stats, error) {
	data, err := c.client.Get(ctx, c.cfg.UserStatKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.Debug("User stats not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).Error("Failed to get user stats from cache")
		return nil, models.ErrRedisGet
	}

	var stats models.Stats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal user stats from cache")
		return nil, models.ErrRedisGet
	}

	logrus.Debug("User stats retrieved from cache successfully")
	return &stats, nil
}
