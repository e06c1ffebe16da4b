package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/powerpulse/config"
	"github.com/guttosm/powerpulse/internal/app"
	"github.com/guttosm/powerpulse/internal/logger"
)

// startServer initializes and starts the ops HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("ops server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("ops server failed to start")
		}
	}()

	return server
}

// main is the entry point of the powerpulse service.
//
// Modes (selected via --mode flag):
//   - service: Runs the extraction scheduler and the ops API until SIGINT/SIGTERM.
//   - once:    Performs a single extraction (with DLQ semantics) and exits.
//
// Flags:
//   - --mode: Execution mode ("service" or "once"). Default: "service".
//   - --port: Port for the ops API. Defaults to value from config (SERVER_PORT).
func main() {
	// Load configuration from environment or .env file
	if err := config.LoadConfig(); err != nil {
		logger.Init()
		logger.L().Fatal().Err(err).Msg("configuration rejected")
	}

	// Initialize JSON logger
	logger.Init()

	mode := flag.String("mode", "service", "Mode: service or once")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for the ops API")
	flag.Parse()

	application, err := app.InitializeApp()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("app init error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "service":
		logger.L().Info().Msg("starting extraction service")
		server := startServer(application.Router, *port)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return application.Scheduler.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Fatal().Err(err).Msg("service exited with error")
		}
		logger.L().Info().Msg("service exited gracefully")

	case "once":
		logger.L().Info().Msg("running single extraction")
		if err := application.Runner.Run(ctx, time.Now().UTC()); err != nil {
			logger.L().Fatal().Err(err).Msg("extraction failed")
		}
		logger.L().Info().Msg("extraction completed")

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
