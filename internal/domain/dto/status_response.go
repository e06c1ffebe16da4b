package dto

import "time"

// StatusResponse describes the running service for operators.
type StatusResponse struct {
	Status          string    `json:"status" example:"running"`
	TimeZone        string    `json:"time_zone" example:"Europe/London"`
	IntervalMinutes int       `json:"interval_minutes" example:"5"`
	RetryAttempts   int       `json:"retry_attempts" example:"3"`
	DlqDepth        int       `json:"dlq_depth" example:"0"`
	StartedAt       time.Time `json:"started_at"`
}

// DLQEntryResponse is one dead-letter queue entry as exposed by the ops API.
// TargetDate is derived server-side so operators see which trading day a
// replay would cover.
type DLQEntryResponse struct {
	ExtractionTimeUtc time.Time `json:"extraction_time_utc"`
	FailedAtUtc       time.Time `json:"failed_at_utc"`
	RetryCount        int       `json:"retry_count" example:"3"`
	LastError         string    `json:"last_error" example:"All retry attempts exhausted"`
	TargetDate        string    `json:"target_date" example:"2025-12-10"`
}
