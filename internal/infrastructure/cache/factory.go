package cache

import (
	"context"
	"fmt"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Locker is a shared.Locker the server can health-check and close
type Locker interface {
	shared.Locker
	Ping(ctx context.Context) error
	Close() error
}

// LockerFactory creates run lockers based on configuration
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory locker. Default is true.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis locker when Redis is configured and reachable.
// Otherwise it returns the in-memory locker, or an error when fallback is off.
func (f *LockerFactory) Create() (Locker, error) {
	if f.redisConfig.Host == "" {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis.host is required for the MRP run lock")
		}
		f.logger.Info("Redis not configured, using in-memory run lock")
		return NewInMemoryLocker(), nil
	}

	locker, err := NewRedisLocker(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for the MRP run lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Concurrent MRP runs from other instances will not be excluded.",
		zap.Error(err),
	)
	return NewInMemoryLocker(), nil
}
