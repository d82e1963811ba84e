package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const slotKeyPrefix = "mi42:scheduler:"

// SlotKey names the lock guarding one briefing slot. Every replica derives
// the same key for the same firing time, so only the first SETNX wins the
// slot.
func SlotKey(briefingType string, slotTime time.Time) string {
	return slotKeyPrefix + briefingType + ":" + slotTime.UTC().Format(time.RFC3339)
}

// releaseIfOwner deletes the key only when it still holds the caller's
// token, so a replica whose lock already expired cannot release a lock
// that a newer holder re-acquired.
const releaseIfOwner = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a best-effort distributed lock keeping multiple instances from
// generating the same briefing slot. A nil Locker never grants locks.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseIfOwner),
	}
}

// TryLock attempts to claim the key for ttl. The returned token identifies
// this holder and is required to release the lock early.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("slot lock: redis not configured")
	}
	if key == "" {
		return "", false, errors.New("slot lock: key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("slot lock: ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release gives the lock up before its TTL runs out. Only the holder of
// token can release; anyone else is a no-op.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
