// Package scheduler runs recurring background work inside the server process.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"go.uber.org/zap"
)

// RunFunc is the work a trigger fires
type RunFunc func(ctx context.Context) error

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultDailyTriggerConfig returns the default configuration: 02:00, checked every minute
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          2,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// ParseDailyTime builds a config from a "15:04" wall clock time
func ParseDailyTime(at string) (DailyTriggerConfig, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return DailyTriggerConfig{}, fmt.Errorf("invalid daily time %q: %w", at, err)
	}
	cfg := DefaultDailyTriggerConfig()
	cfg.Hour, cfg.Minute = t.Hour(), t.Minute()
	return cfg, nil
}

// DailyTrigger fires a RunFunc once a day at a fixed local time. It is used
// for the nightly MRP run.
type DailyTrigger struct {
	name   string
	config DailyTriggerConfig
	run    RunFunc
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(name string, config DailyTriggerConfig, run RunFunc, logger *zap.Logger) *DailyTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTrigger{
		name:   name,
		config: config,
		run:    run,
		logger: logger.With(zap.String("trigger", name)),
		now:    time.Now,
	}
}

// Start starts the trigger loop
func (d *DailyTrigger) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	d.wg.Add(1)
	go d.runLoop(ctx)

	d.logger.Info("Daily trigger started",
		zap.String("at", fmt.Sprintf("%02d:%02d", d.config.Hour, d.config.Minute)),
		zap.Duration("check_interval", d.config.CheckInterval),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return
func (d *DailyTrigger) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DailyTrigger) runLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires the run when the wall clock is at the configured
// minute and it has not fired yet today. It reports whether it fired.
func (d *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := d.now()
	currentDate := now.Format("2006-01-02")

	if now.Hour() != d.config.Hour || now.Minute() != d.config.Minute {
		return false
	}

	d.mu.Lock()
	if d.lastRunDate == currentDate {
		d.mu.Unlock()
		return false
	}
	d.lastRunDate = currentDate
	d.mu.Unlock()

	d.logger.Info("Triggering scheduled run")
	start := time.Now()
	err := d.run(ctx)
	switch {
	case err == nil:
		d.logger.Info("Scheduled run finished", zap.Duration("duration", time.Since(start)))
	case shared.ErrorCode(err) == shared.CodeStateConflict:
		// A manual run holds the lock; today's run is covered by it.
		d.logger.Info("Scheduled run skipped, another run is in progress")
	default:
		d.logger.Error("Scheduled run failed", zap.Error(err))
	}
	return true
}
