package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/powerpulse/config"
	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/extraction"
)

func seedConfig(t *testing.T) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	base := t.TempDir()
	config.AppConfig = config.Config{
		Server: config.ServerConfig{Port: "0"},
		Extraction: config.ExtractionConfig{
			IntervalMinutes:   5,
			OutputDirectory:   filepath.Join(base, "reports"),
			AuditDirectory:    filepath.Join(base, "audit"),
			DlqDirectory:      filepath.Join(base, "dlq"),
			TimeZoneID:        "Europe/London",
			RetryAttempts:     3,
			RetryDelaySeconds: 1,
			Location:          loc,
		},
	}
}

func TestInitializeApp_WiresEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)
	seedConfig(t)

	application, err := InitializeApp()
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	if application.Router == nil || application.Scheduler == nil || application.Runner == nil {
		t.Fatalf("incomplete app: %+v", application)
	}

	// Probes must be live on the wired router.
	for _, path := range []string{"/healthz", "/readyz", "/api/v1/status"} {
		w := httptest.NewRecorder()
		application.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d, want 200", path, w.Code)
		}
	}
}

func TestInitializeApp_RunsExtractionEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	seedConfig(t)

	application, err := InitializeApp()
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}

	// The default simulated source yields a clean 48-period day, so a run
	// must produce a snapshot and leave the DLQ empty.
	if err := application.Runner.Run(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("run: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(config.AppConfig.Extraction.OutputDirectory, "PowerPosition_*.csv"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("reports = %d, want 1", len(matches))
	}
}

type emptySource struct{}

func (emptySource) Fetch(_ context.Context, _ time.Time) ([]models.Trade, error) {
	return []models.Trade{}, nil
}

func TestInitializeApp_SourceCtorOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	seedConfig(t)

	// One attempt keeps the test fast; the outcome is deterministic anyway.
	config.AppConfig.Extraction.RetryAttempts = 1

	orig := sourceCtor
	defer func() { sourceCtor = orig }()
	sourceCtor = func() extraction.TradeSource { return emptySource{} }

	application, err := InitializeApp()
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	// An empty trade list fails aggregation on every attempt and dead-letters.
	if err := application.Runner.Run(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("run: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(config.AppConfig.Extraction.DlqDirectory, "FailedExtractions.json"))
	if len(matches) != 1 {
		t.Fatalf("dlq file missing after exhaustion")
	}
}
