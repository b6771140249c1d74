package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// leaseReleaseScript deletes the lease only when the caller still holds it,
// so an expired lease taken over by another delivery is never released by
// the original holder.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// MessageLock serializes deliveries of one (chat, message) across instances.
// The transport retries or replays events at-least-once; whoever acquires the
// lease processes the event, everyone else backs off until it expires or is
// released.
type MessageLock struct {
	client *redis.Client
	script *redis.Script
}

func NewMessageLock(client *redis.Client) *MessageLock {
	if client == nil {
		return nil
	}
	return &MessageLock{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
	}
}

// Acquire takes the delivery lease for a message. Returns the lease token and
// whether this caller won it.
func (l *MessageLock) Acquire(ctx context.Context, chatID, messageID int64, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("message lock client not configured")
	}
	if chatID == 0 || messageID == 0 {
		return "", false, errors.New("message lock needs chat and message ids")
	}
	if ttl <= 0 {
		return "", false, errors.New("message lock ttl must be positive")
	}

	lease := uuid.NewString()
	ok, err := l.client.SetNX(ctx, deliveryKey(chatID, messageID), lease, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return lease, ok, nil
}

// Release gives the lease back. Releasing with a stale lease token is a
// silent no-op.
func (l *MessageLock) Release(ctx context.Context, chatID, messageID int64, lease string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if lease == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{deliveryKey(chatID, messageID)}, lease).Err()
}

func deliveryKey(chatID, messageID int64) string {
	return fmt.Sprintf("events:ingest:lock:%d:%d", chatID, messageID)
}
