package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseScript deletes the lock only while it still carries our token, so
// a checkout that outlived its TTL cannot free a lock taken by the next one.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Lock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{Client: client, TTL: ttl}
}

func lockKey(userID string) string {
	return "checkout_lock:" + userID
}

func (l *Lock) Acquire(ctx context.Context, userID, token string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(userID), token, l.TTL).Result()
}

func (l *Lock) Release(ctx context.Context, userID, token string) error {
	return releaseScript.Run(ctx, l.Client, []string{lockKey(userID)}, token).Err()
}
