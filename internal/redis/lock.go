package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireDriverLock attempts to acquire a lock for the given driver.
// Returns the lock token and true if the lock was acquired, false if already held.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error) {
	key := fmt.Sprintf("lock:driver:%s", driverID)
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseDriverLock releases the driver's lock if token still owns it.
func (s *LockStore) ReleaseDriverLock(ctx context.Context, driverID, token string) error {
	key := fmt.Sprintf("lock:driver:%s", driverID)

	return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
}
