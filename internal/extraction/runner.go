// Package extraction drives a single extraction through fetch, aggregation,
// report write, and audit, with bounded retry and dead-lettering on
// exhaustion.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/guttosm/powerpulse/internal/audit"
	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/logger"
	"github.com/guttosm/powerpulse/internal/tradingday"
)

// runTimeOverrideEnv lets an operator retarget a live service at a fixed
// extraction instant. It is read on every extraction, never cached, so setting
// it takes effect on the next tick. The value must be an RFC 3339 instant.
const runTimeOverrideEnv = "DOTNET_RUNTIME"

// exhaustedMessage is the LastError recorded when the retry budget runs out.
const exhaustedMessage = "All retry attempts exhausted"

// AuditSink records one row per extraction attempt.
type AuditSink interface {
	LogAttempt(ctx context.Context, a audit.Attempt) error
}

// Runner executes one extraction at a time: it picks the effective run
// instant, derives the target trading date, runs the fetch→aggregate→report
// pipeline under a bounded retry loop, and always leaves exactly one audit row
// per attempt. Exhausted runs are handed to the dead-letter queue.
type Runner struct {
	source  TradeSource
	agg     Aggregator
	cal     *tradingday.Calendar
	reports ReportSink
	audits  AuditSink
	queue   DeadLetterQueue

	attempts   int
	runTimeCfg *time.Time

	// test indirections
	nowUTC   func() time.Time
	newDelay func() backoff.BackOff
}

// NewRunner wires a Runner from its capabilities.
//
// Parameters:
//   - attempts: retry budget per extraction (>= 1).
//   - delay: fixed pause between attempts.
//   - runTime: optional configured extraction instant; nil means "now".
func NewRunner(
	source TradeSource,
	agg Aggregator,
	cal *tradingday.Calendar,
	reports ReportSink,
	audits AuditSink,
	queue DeadLetterQueue,
	attempts int,
	delay time.Duration,
	runTime *time.Time,
) *Runner {
	return &Runner{
		source:     source,
		agg:        agg,
		cal:        cal,
		reports:    reports,
		audits:     audits,
		queue:      queue,
		attempts:   attempts,
		runTimeCfg: runTime,
		nowUTC:     func() time.Time { return time.Now().UTC() },
		newDelay:   func() backoff.BackOff { return backoff.NewConstantBackOff(delay) },
	}
}

// Run performs one extraction for the effective run instant derived from at.
//
// The retry state machine: attempt n either succeeds (Done), fails with the
// budget left (RetryAttempt, sleep, attempt n+1), or fails on the final
// attempt (Failed, dead-letter). Cancellation ends the current attempt with a
// Cancelled row and returns without touching the queue.
//
// The only error Run surfaces is a dead-letter enqueue failure at the end of
// an exhausted run; everything else is absorbed into the audit trail.
func (r *Runner) Run(ctx context.Context, at time.Time) error {
	extractionUTC := r.effectiveRunTime(at)
	runID := uuid.NewString()
	log := logger.L().With().
		Str("run_id", runID).
		Time("extraction_time_utc", extractionUTC).
		Str("target_date", r.cal.FormatDate(extractionUTC)).
		Logger()
	log.Info().Int("budget", r.attempts).Msg("extraction started")

	delay := r.newDelay()
	for n := 1; n <= r.attempts; n++ {
		failureStatus := audit.StatusRetryAttempt
		if n == r.attempts {
			failureStatus = audit.StatusFailed
		}

		err := r.attempt(ctx, extractionUTC, n, audit.StatusDone, failureStatus)
		if err == nil {
			log.Info().Int("attempt", n).Msg("extraction done")
			return nil
		}
		if ctx.Err() != nil {
			log.Warn().Int("attempt", n).Msg("extraction cancelled")
			return nil
		}
		log.Warn().Int("attempt", n).Err(err).Msg("extraction attempt failed")

		if n < r.attempts {
			if serr := r.sleep(ctx, delay.NextBackOff()); serr != nil {
				log.Warn().Msg("retry wait interrupted")
				return nil
			}
			continue
		}

		entry := models.FailedExtraction{
			ExtractionTimeUtc: extractionUTC,
			FailedAtUtc:       r.nowUTC(),
			RetryCount:        r.attempts,
			LastError:         exhaustedMessage,
		}
		if qerr := r.queue.Enqueue(ctx, entry); qerr != nil {
			return fmt.Errorf("enqueue failed extraction: %w", qerr)
		}
		log.Error().Msg("retry budget exhausted, extraction dead-lettered")
	}
	return nil
}

// RunRecovery replays one dead-letter entry with a single attempt at its
// original extraction instant, continuing the attempt counter where the entry
// left off. Returns whether the replay succeeded; re-enqueueing on failure is
// the caller's responsibility.
func (r *Runner) RunRecovery(ctx context.Context, entry models.FailedExtraction) bool {
	attemptNo := entry.RetryCount + 1
	logger.L().Info().
		Time("extraction_time_utc", entry.ExtractionTimeUtc).
		Int("attempt", attemptNo).
		Msg("replaying dead-lettered extraction")

	err := r.attempt(ctx, entry.ExtractionTimeUtc, attemptNo, audit.StatusRecoveredFromDLQ, audit.StatusFailed)
	if err != nil {
		logger.L().Warn().Err(err).
			Time("extraction_time_utc", entry.ExtractionTimeUtc).
			Msg("dead letter replay failed")
		return false
	}
	return true
}

// attempt runs the single-attempt pipeline and, in a guaranteed finalization,
// emits exactly one audit row carrying the attempt's local start/end times.
// The audit write survives cancellation and its own failures never escape.
func (r *Runner) attempt(ctx context.Context, extractionUTC time.Time, attemptNo int, successStatus, failureStatus audit.Status) (err error) {
	startUTC := r.nowUTC()
	targetDate := r.cal.DateOf(extractionUTC)
	reportFile := ""

	defer func() {
		endUTC := r.nowUTC()
		status := successStatus
		message := ""
		if err != nil {
			status = failureStatus
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				status = audit.StatusCancelled
			}
			message = err.Error()
		}
		row := audit.Attempt{
			StartLocal:     r.cal.ToLocal(startUTC),
			EndLocal:       r.cal.ToLocal(endUTC),
			TargetDate:     targetDate,
			Status:         status,
			Attempt:        attemptNo,
			ErrorMessage:   message,
			ReportFileName: reportFile,
		}
		if aerr := r.audits.LogAttempt(context.WithoutCancel(ctx), row); aerr != nil {
			// A missing audit row is preferable to failing the pipeline over it.
			logger.L().Error().Err(aerr).Msg("audit write failed")
		}
	}()

	trades, err := r.source.Fetch(ctx, targetDate)
	if err != nil {
		return fmt.Errorf("fetch trades: %w", err)
	}

	positions, err := r.agg.Aggregate(trades, targetDate)
	if err != nil {
		return err
	}
	if len(positions) != 24 {
		return fmt.Errorf("incomplete snapshot: expected 24 positions, got %d", len(positions))
	}

	path, err := r.reports.Write(ctx, positions, r.cal.ToLocal(extractionUTC))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	reportFile = filepath.Base(path)
	return nil
}

// effectiveRunTime resolves the extraction instant: the environment override
// wins, then the configured RunTime, then the caller's clock. Everything is
// normalized to UTC.
func (r *Runner) effectiveRunTime(at time.Time) time.Time {
	if v := os.Getenv(runTimeOverrideEnv); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
		logger.L().Warn().Str("value", v).Str("env", runTimeOverrideEnv).Msg("runtime override not parseable, ignoring")
	}
	if r.runTimeCfg != nil {
		return r.runTimeCfg.UTC()
	}
	return at.UTC()
}

// sleep waits out the retry delay, ending promptly on cancellation.
func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d == backoff.Stop {
		return errors.New("retry policy stopped")
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
