package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"go.uber.org/zap"
)

// RunLockKey is the key shared by every process that executes runs or
// generates purchase requests.
const RunLockKey = "mrp:lock"

// DefaultRunLockTTL bounds how long a crashed holder can block other runs
const DefaultRunLockTTL = 10 * time.Minute

// RunLock makes run execution and purchase request generation single-writer.
type RunLock struct {
	locker shared.Locker
	ttl    time.Duration
	logger *zap.Logger
}

// NewRunLock creates a RunLock backed by locker
func NewRunLock(locker shared.Locker, ttl time.Duration, log *zap.Logger) *RunLock {
	if ttl <= 0 {
		ttl = DefaultRunLockTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RunLock{locker: locker, ttl: ttl, logger: log}
}

// Acquire takes the lock without waiting. A held lock is reported as
// STATE_CONFLICT. The returned release func must be called exactly once.
func (l *RunLock) Acquire(ctx context.Context) (release func(), err error) {
	token, ok, err := l.locker.TryLock(ctx, RunLockKey, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire MRP run lock: %w", err)
	}
	if !ok {
		return nil, shared.NewDomainError(shared.CodeStateConflict, "another MRP run is in progress")
	}
	return func() {
		// Release even if the request context was cancelled mid-run.
		if err := l.locker.Unlock(context.WithoutCancel(ctx), RunLockKey, token); err != nil {
			l.logger.Warn("Failed to release MRP run lock; it will expire on its own",
				zap.Duration("ttl", l.ttl),
				zap.Error(err),
			)
		}
	}, nil
}
