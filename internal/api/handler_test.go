package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/powerpulse/config"
	"github.com/guttosm/powerpulse/internal/domain/dto"
	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/tradingday"
)

type stubQueue struct {
	entries []models.FailedExtraction
	err     error
	removed []time.Time
}

func (s *stubQueue) Enqueue(_ context.Context, e models.FailedExtraction) error {
	s.entries = append(s.entries, e)
	return s.err
}

func (s *stubQueue) DequeueAll(_ context.Context) ([]models.FailedExtraction, error) {
	out := s.entries
	s.entries = nil
	return out, s.err
}

func (s *stubQueue) PeekAll(_ context.Context) ([]models.FailedExtraction, error) {
	return s.entries, s.err
}

func (s *stubQueue) Count(_ context.Context) (int, error) {
	return len(s.entries), s.err
}

func (s *stubQueue) Remove(_ context.Context, ts time.Time) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.removed = append(s.removed, ts)
	for i, e := range s.entries {
		if e.ExtractionTimeUtc.Equal(ts) {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func testConfig(t *testing.T) (config.ExtractionConfig, *tradingday.Calendar) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	cfg := config.ExtractionConfig{
		IntervalMinutes: 5,
		TimeZoneID:      "Europe/London",
		RetryAttempts:   3,
		Location:        loc,
	}
	return cfg, tradingday.NewCalendar(loc)
}

func TestGetStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, cal := testConfig(t)
	q := &stubQueue{entries: []models.FailedExtraction{
		{ExtractionTimeUtc: time.Date(2025, 12, 10, 14, 5, 0, 0, time.UTC), RetryCount: 3},
	}}
	router := NewRouter(NewHandler(q, cal, cfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp dto.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "running" || resp.DlqDepth != 1 || resp.TimeZone != "Europe/London" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetStatus_QueueError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, cal := testConfig(t)
	q := &stubQueue{err: errors.New("disk gone")}
	router := NewRouter(NewHandler(q, cal, cfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestListDLQ(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, cal := testConfig(t)
	q := &stubQueue{entries: []models.FailedExtraction{
		{
			ExtractionTimeUtc: time.Date(2025, 12, 10, 14, 5, 0, 0, time.UTC),
			FailedAtUtc:       time.Date(2025, 12, 10, 14, 6, 0, 0, time.UTC),
			RetryCount:        3,
			LastError:         "All retry attempts exhausted",
		},
	}}
	router := NewRouter(NewHandler(q, cal, cfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dlq", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var entries []dto.DLQEntryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].TargetDate != "2025-12-10" {
		t.Fatalf("target date = %q, want 2025-12-10", entries[0].TargetDate)
	}
	if entries[0].RetryCount != 3 {
		t.Fatalf("retry count = %d, want 3", entries[0].RetryCount)
	}
}

func TestListDLQ_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, cal := testConfig(t)
	router := NewRouter(NewHandler(&stubQueue{}, cal, cfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dlq", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var entries []dto.DLQEntryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

func TestRemoveDLQEntry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, cal := testConfig(t)

	cases := []struct {
		name      string
		timestamp string
		seed      []models.FailedExtraction
		wantCode  int
	}{
		{
			name:      "removes present entry",
			timestamp: "2025-12-10T14:05:00Z",
			seed: []models.FailedExtraction{
				{ExtractionTimeUtc: time.Date(2025, 12, 10, 14, 5, 0, 0, time.UTC)},
			},
			wantCode: http.StatusNoContent,
		},
		{
			name:      "absent entry",
			timestamp: "2025-12-10T14:05:00Z",
			wantCode:  http.StatusNotFound,
		},
		{
			name:      "bad timestamp",
			timestamp: "yesterday",
			wantCode:  http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &stubQueue{entries: tc.seed}
			router := NewRouter(NewHandler(q, cal, cfg))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/dlq/"+tc.timestamp, nil))
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
		})
	}
}
