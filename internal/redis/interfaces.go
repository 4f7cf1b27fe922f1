package redis

import (
	"context"
	"time"
)

// StatusCacheInterface defines the interface for payment status caching.
type StatusCacheInterface interface {
	Get(ctx context.Context, loanID string) (string, error)
	Set(ctx context.Context, loanID, status string) error
	Invalidate(ctx context.Context, loanID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireInitiationLock(ctx context.Context, loanID string, ttl time.Duration) (bool, error)
	ReleaseInitiationLock(ctx context.Context, loanID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ StatusCacheInterface = (*StatusCache)(nil)
	_ LockStoreInterface   = (*LockStore)(nil)
)
