package extraction

import (
	"context"
	"time"

	"github.com/guttosm/powerpulse/internal/domain/models"
)

// TradeSource is the capability the engine consumes to obtain intraday trades
// for a trading date. Implementations wrap the external trading API; the
// engine never interprets their errors beyond "this attempt failed", so every
// failure is treated as retryable.
type TradeSource interface {
	Fetch(ctx context.Context, targetDate time.Time) ([]models.Trade, error)
}

// Aggregator folds raw trades into the trading day's hourly positions.
type Aggregator interface {
	Aggregate(trades []models.Trade, targetDate time.Time) ([]models.Position, error)
}

// ReportSink persists one snapshot and returns the path it was written to.
type ReportSink interface {
	Write(ctx context.Context, positions []models.Position, extractionLocal time.Time) (string, error)
}

// DeadLetterQueue is the persistent store of extractions that exhausted their
// retry budget.
type DeadLetterQueue interface {
	Enqueue(ctx context.Context, entry models.FailedExtraction) error
	DequeueAll(ctx context.Context) ([]models.FailedExtraction, error)
	PeekAll(ctx context.Context) ([]models.FailedExtraction, error)
	Count(ctx context.Context) (int, error)
	Remove(ctx context.Context, extractionTimeUtc time.Time) (bool, error)
}
