package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotHeld = errors.New("lock not held")

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseLock is a single-holder lease over one redis key.
type LeaseLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewLeaseLock(client *redis.Client, key string, ttl time.Duration) *LeaseLock {
	return &LeaseLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// TryAcquire reports whether this holder now owns the lease.
func (l *LeaseLock) TryAcquire(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return false, ErrCacheNotAvailable
	}
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *LeaseLock) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return ErrCacheNotAvailable
	}
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
