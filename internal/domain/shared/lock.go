package shared

import (
	"context"
	"time"
)

// Locker guards a named critical section shared by every process that uses
// the same backing store.
type Locker interface {
	// TryLock attempts to take the lock without waiting. ok is false when
	// another holder owns it. The returned token must be passed to Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Unlock releases the lock only if token still owns it.
	Unlock(ctx context.Context, key, token string) error
}
