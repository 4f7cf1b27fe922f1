package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireInitiationLock attempts to acquire the per-loan initiation
// lock, narrowing the window in which two concurrent initiations both
// reach the gateway. The conditional write on the loan row remains the
// authority; the lock only avoids issuing a push that is doomed to
// lose the race. Returns true if the lock was acquired.
func (s *LockStore) AcquireInitiationLock(ctx context.Context, loanID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:initiation:%s", loanID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseInitiationLock releases the initiation lock for the loan.
func (s *LockStore) ReleaseInitiationLock(ctx context.Context, loanID string) error {
	key := fmt.Sprintf("lock:initiation:%s", loanID)

	return s.client.Del(ctx, key).Err()
}
