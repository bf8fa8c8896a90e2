package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presenceKeyPrefix = "presence:agent:"
	lastUploadKey     = "presence:last_upload"
)

// PresenceService tracks agent liveness and the timestamp of the most recent
// batch upload in Redis. Heartbeats expire on their own, so a crashed client
// simply drops off the active list.
type PresenceService struct {
	redis  *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewPresenceService creates the service. ttl bounds how long a heartbeat
// counts as alive.
func NewPresenceService(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceService{redis: client, logger: logger, ttl: ttl}
}

// Heartbeat refreshes the liveness key for a username.
func (s *PresenceService) Heartbeat(ctx context.Context, username string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Set(ctx, presenceKeyPrefix+username, time.Now().Unix(), s.ttl).Err()
}

// Clear drops the liveness key, used on logout.
func (s *PresenceService) Clear(ctx context.Context, username string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, presenceKeyPrefix+username).Err()
}

// ActiveAgents returns usernames with a live heartbeat.
func (s *PresenceService) ActiveAgents(ctx context.Context) ([]string, error) {
	if s.redis == nil {
		return nil, nil
	}
	var (
		cursor uint64
		names  []string
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, presenceKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			names = append(names, key[len(presenceKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return names, nil
		}
	}
}

// MarkUpload records when the most recent batch landed. Failures are logged
// and swallowed; the marker is advisory.
func (s *PresenceService) MarkUpload(ctx context.Context, at time.Time) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, lastUploadKey, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		s.logger.Warn("failed to record upload time", zap.Error(err))
	}
}

// LastUpload returns the most recent upload time, or the zero time when no
// batch has ever been recorded.
func (s *PresenceService) LastUpload(ctx context.Context) (time.Time, error) {
	if s.redis == nil {
		return time.Time{}, nil
	}
	raw, err := s.redis.Get(ctx, lastUploadKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}
