package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hivelabs/hivetally/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyEventIngestChat = "events:ingest:chat:%d"

	eventLockTTL = 5 * time.Second
)

// EventIngestLimiter throttles event ingestion per chat and guards against
// concurrent deliveries of the same message. Nil when rate limiting is
// disabled; every method degrades to allow.
type EventIngestLimiter struct {
	enabled bool

	bucket *TokenBucket
	lock   *MessageLock

	chatRate  float64
	chatBurst int
}

func NewEventIngestLimiter(cfg config.Config) (*EventIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.EventRate <= 0 || limitCfg.EventBurst <= 0 {
		return nil, errors.New("event rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &EventIngestLimiter{
		enabled:   true,
		bucket:    NewTokenBucket(client),
		lock:      NewMessageLock(client),
		chatRate:  limitCfg.EventRate,
		chatBurst: limitCfg.EventBurst,
	}, nil
}

func (l *EventIngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *EventIngestLimiter) AllowChat(ctx context.Context, chatID int64) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEventIngestChat, chatID), l.chatRate, l.chatBurst)
}

// TryLockMessage serializes concurrent deliveries of the same message.
func (l *EventIngestLimiter) TryLockMessage(ctx context.Context, chatID, messageID int64) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.lock.Acquire(ctx, chatID, messageID, eventLockTTL)
}

func (l *EventIngestLimiter) ReleaseMessage(ctx context.Context, chatID, messageID int64, lease string) error {
	if !l.Enabled() {
		return nil
	}
	return l.lock.Release(ctx, chatID, messageID, lease)
}
