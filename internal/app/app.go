package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/powerpulse/config"
	"github.com/guttosm/powerpulse/internal/aggregate"
	"github.com/guttosm/powerpulse/internal/api"
	"github.com/guttosm/powerpulse/internal/audit"
	"github.com/guttosm/powerpulse/internal/dlq"
	"github.com/guttosm/powerpulse/internal/extraction"
	"github.com/guttosm/powerpulse/internal/report"
	"github.com/guttosm/powerpulse/internal/scheduler"
	"github.com/guttosm/powerpulse/internal/tradesim"
	"github.com/guttosm/powerpulse/internal/tradingday"
)

// App bundles the wired service: the ops HTTP router, the background
// scheduler, and the extraction runner (exposed for one-shot mode).
type App struct {
	Router    *gin.Engine
	Scheduler *scheduler.Scheduler
	Runner    *extraction.Runner
}

// sourceCtor is an indirection for creating the trade source; tests can
// override this, and it is the seam where a real trading-API client replaces
// the simulator.
var sourceCtor = func() extraction.TradeSource {
	return tradesim.New()
}

// InitializeApp sets up all application dependencies from the global
// configuration and returns the wired App.
//
// Responsibilities:
//   - Builds the trading-day calendar for the configured zone.
//   - Constructs the report, audit, and dead-letter stores (creating their
//     directories; construction failures are configuration errors).
//   - Wires the extraction runner and the scheduler around it.
//   - Configures the ops router with status/DLQ routes and health probes.
func InitializeApp() (*App, error) {
	cfg := config.AppConfig.Extraction

	cal := tradingday.NewCalendar(cfg.Location)
	agg := aggregate.New(cal)

	reports, err := report.NewSink(cfg.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report sink: %w", err)
	}
	audits, err := audit.NewSink(cfg.AuditDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit sink: %w", err)
	}
	queue, err := dlq.New(cfg.DlqDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dead letter queue: %w", err)
	}

	runner := extraction.NewRunner(
		sourceCtor(),
		agg,
		cal,
		reports,
		audits,
		queue,
		cfg.RetryAttempts,
		time.Duration(cfg.RetryDelaySeconds)*time.Second,
		cfg.RunTimeUTC,
	)

	sched, err := scheduler.New(runner, queue, time.Duration(cfg.IntervalMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	handler := api.NewHandler(queue, cal, cfg)
	router := api.NewRouter(handler)

	healthHandler := api.NewHealthHandler(func() error {
		_, err := queue.Count(context.Background())
		return err
	})
	healthHandler.Register(router)

	return &App{
		Router:    router,
		Scheduler: sched,
		Runner:    runner,
	}, nil
}
