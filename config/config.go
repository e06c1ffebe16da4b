package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// It is composed of smaller structs that represent different concerns of the system:
// the extraction engine itself, and the operational HTTP server.
//
// Example YAML/ENV equivalent:
//
//	INTERVAL_MINUTES=5
//	OUTPUT_DIRECTORY=./data/reports
//	AUDIT_DIRECTORY=./data/audit
//	DLQ_DIRECTORY=./data/dlq
//	TIME_ZONE_ID=Europe/London
//	RETRY_ATTEMPTS=3
//	RETRY_DELAY_SECONDS=10
//	SERVER_PORT=8085
type Config struct {
	Server     ServerConfig     // Ops HTTP server settings
	Extraction ExtractionConfig // Extraction engine settings
}

// ServerConfig holds ops HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string // The TCP port the ops HTTP server will listen on (e.g., "8085")
}

// ExtractionConfig defines the extraction engine's runtime parameters.
//
// Fields:
//   - IntervalMinutes: minutes between scheduled extractions (must be > 0).
//   - OutputDirectory: directory for snapshot report CSVs.
//   - AuditDirectory: directory for daily audit CSVs.
//   - DlqDirectory: directory for the dead-letter queue file.
//   - TimeZoneID: IANA zone the trading day is aligned to (default Europe/London).
//   - RunTime: optional fixed extraction instant (RFC 3339); empty means "now".
//   - RetryAttempts: attempts per extraction before dead-lettering (must be >= 1).
//   - RetryDelaySeconds: fixed delay between attempts (must be >= 1).
//   - Location: resolved *time.Location for TimeZoneID, populated by LoadConfig.
//   - RunTimeUTC: parsed RunTime normalized to UTC, nil when RunTime is empty.
type ExtractionConfig struct {
	IntervalMinutes   int
	OutputDirectory   string
	AuditDirectory    string
	DlqDirectory      string
	TimeZoneID        string
	RunTime           string
	RetryAttempts     int
	RetryDelaySeconds int

	Location   *time.Location
	RunTimeUTC *time.Time
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
// All services should import this package and read from AppConfig instead of
// reloading environment variables directly.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Behavior:
//   - Sets defaults for all fields.
//   - Reads environment variables automatically with viper.AutomaticEnv().
//   - Resolves the configured time zone and parses the optional RunTime override.
//   - Validates every constraint and returns a single error listing all violations.
//
// Invalid configuration is the only fatal error class in this service: callers
// are expected to refuse to start when LoadConfig fails.
func LoadConfig() error {
	// Default values
	viper.SetDefault("SERVER_PORT", "8085")

	viper.SetDefault("INTERVAL_MINUTES", 5)
	viper.SetDefault("OUTPUT_DIRECTORY", "./data/reports")
	viper.SetDefault("AUDIT_DIRECTORY", "./data/audit")
	viper.SetDefault("DLQ_DIRECTORY", "./data/dlq")
	viper.SetDefault("TIME_ZONE_ID", "Europe/London")
	viper.SetDefault("RUN_TIME", "")
	viper.SetDefault("RETRY_ATTEMPTS", 3)
	viper.SetDefault("RETRY_DELAY_SECONDS", 10)

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	// Read environment variables automatically
	viper.AutomaticEnv()

	// Populate global config instance
	AppConfig = Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Extraction: ExtractionConfig{
			IntervalMinutes:   viper.GetInt("INTERVAL_MINUTES"),
			OutputDirectory:   viper.GetString("OUTPUT_DIRECTORY"),
			AuditDirectory:    viper.GetString("AUDIT_DIRECTORY"),
			DlqDirectory:      viper.GetString("DLQ_DIRECTORY"),
			TimeZoneID:        viper.GetString("TIME_ZONE_ID"),
			RunTime:           viper.GetString("RUN_TIME"),
			RetryAttempts:     viper.GetInt("RETRY_ATTEMPTS"),
			RetryDelaySeconds: viper.GetInt("RETRY_DELAY_SECONDS"),
		},
	}

	return validateConfig()
}

// validateConfig checks every constraint of the loaded configuration and
// collects all violations into one error so operators see the full picture
// in a single failed start instead of fixing keys one at a time.
//
// It also resolves derived fields (Location, RunTimeUTC) as a side effect,
// since resolution and validation are the same operation for those keys.
func validateConfig() error {
	var problems []string
	ext := &AppConfig.Extraction

	if AppConfig.Server.Port == "" {
		problems = append(problems, "SERVER_PORT must not be empty")
	}
	if ext.IntervalMinutes <= 0 {
		problems = append(problems, fmt.Sprintf("INTERVAL_MINUTES must be > 0, got %d", ext.IntervalMinutes))
	}
	if ext.OutputDirectory == "" {
		problems = append(problems, "OUTPUT_DIRECTORY must not be empty")
	}
	if ext.AuditDirectory == "" {
		problems = append(problems, "AUDIT_DIRECTORY must not be empty")
	}
	if ext.DlqDirectory == "" {
		problems = append(problems, "DLQ_DIRECTORY must not be empty")
	}
	if ext.RetryAttempts < 1 {
		problems = append(problems, fmt.Sprintf("RETRY_ATTEMPTS must be >= 1, got %d", ext.RetryAttempts))
	}
	if ext.RetryDelaySeconds < 1 {
		problems = append(problems, fmt.Sprintf("RETRY_DELAY_SECONDS must be >= 1, got %d", ext.RetryDelaySeconds))
	}

	if ext.TimeZoneID == "" {
		problems = append(problems, "TIME_ZONE_ID must not be empty")
	} else if loc, err := time.LoadLocation(ext.TimeZoneID); err != nil {
		problems = append(problems, fmt.Sprintf("TIME_ZONE_ID %q is not a resolvable IANA zone", ext.TimeZoneID))
	} else {
		ext.Location = loc
	}

	if ext.RunTime != "" {
		t, err := time.Parse(time.RFC3339, ext.RunTime)
		if err != nil {
			problems = append(problems, fmt.Sprintf("RUN_TIME %q is not a valid RFC 3339 instant", ext.RunTime))
		} else {
			utc := t.UTC()
			ext.RunTimeUTC = &utc
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
