package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PlanHealer re-walks every stored plan and persists drifted applications
type PlanHealer interface {
	HealAll(ctx context.Context) (int, error)
}

// ConsistencyWorker runs the plan consistency sweep on a cron schedule
type ConsistencyWorker struct {
	healer PlanHealer
	logger *zap.Logger
	config ConsistencyWorkerConfig
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

// ConsistencyWorkerConfig configuration for the consistency worker
type ConsistencyWorkerConfig struct {
	Schedule   string        // standard five-field cron expression or @every
	Timeout    time.Duration // upper bound of one sweep
	RunOnStart bool
}

// DefaultConsistencyWorkerConfig returns default configuration
func DefaultConsistencyWorkerConfig() ConsistencyWorkerConfig {
	return ConsistencyWorkerConfig{
		Schedule: "0 3 * * *",
		Timeout:  10 * time.Minute,
	}
}

// NewConsistencyWorker creates a new consistency worker
func NewConsistencyWorker(healer PlanHealer, logger *zap.Logger, config ConsistencyWorkerConfig) (*ConsistencyWorker, error) {
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", config.Schedule, err)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConsistencyWorkerConfig().Timeout
	}
	return &ConsistencyWorker{
		healer: healer,
		logger: logger,
		config: config,
		cron:   cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
	}, nil
}

// Start schedules the sweep and blocks until ctx is cancelled. A running
// sweep is allowed to finish before Start returns.
func (w *ConsistencyWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting consistency worker",
		zap.String("schedule", w.config.Schedule),
		zap.Duration("timeout", w.config.Timeout))

	if _, err := w.cron.AddFunc(w.config.Schedule, func() { w.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	w.cron.Start()

	if w.config.RunOnStart {
		go w.Sweep(ctx)
	}

	<-ctx.Done()
	w.logger.Info("Consistency worker shutting down")
	<-w.cron.Stop().Done()
	return nil
}

// Sweep heals every plan once. Overlapping runs are skipped; it reports
// whether this call did the work.
func (w *ConsistencyWorker) Sweep(ctx context.Context) bool {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn("Previous consistency sweep still running, skipping")
		return false
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	start := time.Now()
	healed, err := w.healer.HealAll(ctx)
	if err != nil {
		w.logger.Error("Consistency sweep finished with errors",
			zap.Int("healed", healed),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return true
	}
	w.logger.Info("Consistency sweep finished",
		zap.Int("healed", healed),
		zap.Duration("duration", time.Since(start)))
	return true
}

// cronLogger routes cron's own messages through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
