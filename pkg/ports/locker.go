package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes writers of one session across processes.
//
// Lock blocks until key is held or ctx ends. A holder that never unlocks
// loses the lock after ttl. Callers must invoke the returned UnlockFunc.
type DistributedLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
