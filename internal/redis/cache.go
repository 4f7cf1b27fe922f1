package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCacheTTL bounds how stale a cached payment status may be. Kept
// short so a poll observes a terminal status within one interval tick
// of the callback landing.
const StatusCacheTTL = 2 * time.Second

const statusCachePrefix = "cache:loan-status:"

// StatusCache caches loan payment statuses for the poll-heavy status
// endpoint.
type StatusCache struct {
	client *redis.Client
}

// NewStatusCache creates a new StatusCache.
func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

// Get retrieves a cached status. Returns "" on a cache miss.
func (s *StatusCache) Get(ctx context.Context, loanID string) (string, error) {
	status, err := s.client.Get(ctx, statusCachePrefix+loanID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", err
	}
	return status, nil
}

// Set stores a status.
func (s *StatusCache) Set(ctx context.Context, loanID, status string) error {
	return s.client.Set(ctx, statusCachePrefix+loanID, status, StatusCacheTTL).Err()
}

// Invalidate removes a cached status. Called when a callback resolves
// the payment so the next poll reads the terminal status from the
// store.
func (s *StatusCache) Invalidate(ctx context.Context, loanID string) error {
	return s.client.Del(ctx, statusCachePrefix+loanID).Err()
}
