// Package scheduler drives the extraction engine: dead-letter recovery at
// startup, an immediate first run, then periodic ticks until cancellation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/extraction"
	"github.com/guttosm/powerpulse/internal/logger"
)

// Runner is the slice of the extraction engine the scheduler drives.
type Runner interface {
	Run(ctx context.Context, at time.Time) error
	RunRecovery(ctx context.Context, entry models.FailedExtraction) bool
}

// Scheduler owns the service's single background loop. Ticks come from a cron
// schedule wrapped with SkipIfStillRunning, so an in-flight extraction delays
// the next tick and missed ticks coalesce into one; extractions never overlap.
//
// Business failures never stop the loop: anything escaping the runner is
// logged and swallowed, and only cancellation ends Start.
type Scheduler struct {
	runner   Runner
	queue    extraction.DeadLetterQueue
	interval time.Duration

	cron   *cron.Cron
	nowUTC func() time.Time // test indirection
}

// New constructs a Scheduler ticking every interval.
func New(runner Runner, queue extraction.DeadLetterQueue, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be > 0, got %s", interval)
	}
	return &Scheduler{
		runner:   runner,
		queue:    queue,
		interval: interval,
		nowUTC:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start blocks until ctx is cancelled.
//
// Sequence: drain the dead-letter queue, run one immediate extraction, then
// tick every interval. On cancellation it stops the schedule and waits for any
// in-flight extraction before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.drainDLQ(ctx)
	s.runOnce(ctx)

	if ctx.Err() != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{}),
		cron.SkipIfStillRunning(cronLogger{}),
	))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	s.cron = c
	c.Start()
	logger.L().Info().Dur("interval", s.interval).Msg("scheduler started")

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop halts the schedule and awaits graceful completion of any running tick.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	logger.L().Info().Msg("scheduler stopped")
}

// runOnce performs a single extraction, containing every failure. This is the
// outer layer of the two-layer containment: the runner absorbs attempt-level
// errors into the audit trail, and whatever still escapes is logged here so
// the loop survives to the next tick.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.L().Error().Interface("panic", rec).Msg("extraction panicked")
		}
	}()
	if err := s.runner.Run(ctx, s.nowUTC()); err != nil {
		logger.L().Error().Err(err).Msg("extraction run failed")
	}
}

// drainDLQ atomically takes every queued entry (already sorted by ascending
// extraction time) and replays each through the runner. A failed replay is
// re-enqueued with its retry count bumped; a per-entry failure never aborts
// the drain. Cancellation stops the drain and returns the untouched remainder
// to the queue unchanged.
func (s *Scheduler) drainDLQ(ctx context.Context) {
	entries, err := s.queue.DequeueAll(ctx)
	if err != nil {
		logger.L().Error().Err(err).Msg("dead letter drain failed to dequeue")
		return
	}
	if len(entries) == 0 {
		return
	}
	logger.L().Info().Int("entries", len(entries)).Msg("draining dead letter queue")

	for i, entry := range entries {
		if ctx.Err() != nil {
			s.requeue(ctx, entries[i:])
			return
		}
		if s.runner.RunRecovery(ctx, entry) {
			continue
		}
		if ctx.Err() != nil {
			// The replay was cut short, not refused; keep the entry as it was.
			s.requeue(ctx, entries[i:])
			return
		}
		entry.RetryCount++
		entry.FailedAtUtc = s.nowUTC()
		if err := s.queue.Enqueue(ctx, entry); err != nil {
			logger.L().Error().Err(err).
				Time("extraction_time_utc", entry.ExtractionTimeUtc).
				Msg("re-enqueue after failed replay failed, entry lost")
		}
	}
}

func (s *Scheduler) requeue(ctx context.Context, entries []models.FailedExtraction) {
	for _, entry := range entries {
		if err := s.queue.Enqueue(context.WithoutCancel(ctx), entry); err != nil {
			logger.L().Error().Err(err).
				Time("extraction_time_utc", entry.ExtractionTimeUtc).
				Msg("returning entry to dead letter queue failed")
		}
	}
}

// cronLogger adapts the global zerolog logger to cron's logging interface.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	logger.L().Debug().Fields(kv).Msg(msg)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	logger.L().Error().Err(err).Fields(kv).Msg(msg)
}
