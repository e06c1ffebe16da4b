package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/powerpulse/config"
	"github.com/guttosm/powerpulse/internal/domain/dto"
	"github.com/guttosm/powerpulse/internal/extraction"
	"github.com/guttosm/powerpulse/internal/tradingday"
)

// Handler provides HTTP handlers for the operational API: service status and
// dead-letter queue inspection. The extraction pipeline itself is not driven
// over HTTP; this surface exists for operators and probes.
type Handler struct {
	queue     extraction.DeadLetterQueue
	cal       *tradingday.Calendar
	cfg       config.ExtractionConfig
	startedAt time.Time
}

// NewHandler constructs a Handler over the dead-letter queue and the service
// configuration it reports.
func NewHandler(queue extraction.DeadLetterQueue, cal *tradingday.Calendar, cfg config.ExtractionConfig) *Handler {
	return &Handler{
		queue:     queue,
		cal:       cal,
		cfg:       cfg,
		startedAt: time.Now().UTC(),
	}
}

// GetStatus handles GET /api/v1/status.
//
// Responses:
//   - 200 OK: StatusResponse with the engine's configuration and DLQ depth.
//   - 500 Internal Server Error: the dead-letter store could not be read.
func (h *Handler) GetStatus(c *gin.Context) {
	depth, err := h.queue.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to read dead letter queue", err))
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		Status:          "running",
		TimeZone:        h.cfg.TimeZoneID,
		IntervalMinutes: h.cfg.IntervalMinutes,
		RetryAttempts:   h.cfg.RetryAttempts,
		DlqDepth:        depth,
		StartedAt:       h.startedAt,
	})
}

// ListDLQ handles GET /api/v1/dlq, returning every queued entry in replay
// order without modifying the queue.
func (h *Handler) ListDLQ(c *gin.Context) {
	entries, err := h.queue.PeekAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to read dead letter queue", err))
		return
	}

	out := make([]dto.DLQEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.DLQEntryResponse{
			ExtractionTimeUtc: e.ExtractionTimeUtc,
			FailedAtUtc:       e.FailedAtUtc,
			RetryCount:        e.RetryCount,
			LastError:         e.LastError,
			TargetDate:        h.cal.FormatDate(e.TargetDate(h.cal.Location())),
		})
	}
	c.JSON(http.StatusOK, out)
}

// RemoveDLQEntry handles DELETE /api/v1/dlq/:timestamp, where :timestamp is
// the entry's ExtractionTimeUtc in RFC 3339. Removing an entry abandons its
// replay permanently.
//
// Responses:
//   - 204 No Content: entry removed.
//   - 400 Bad Request: timestamp not parseable.
//   - 404 Not Found: no entry with that extraction time.
func (h *Handler) RemoveDLQEntry(c *gin.Context) {
	raw := c.Param("timestamp")
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid timestamp, expected RFC 3339", err))
		return
	}

	removed, err := h.queue.Remove(c.Request.Context(), ts.UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to update dead letter queue", err))
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("no dead letter entry for that extraction time", nil))
		return
	}
	c.Status(http.StatusNoContent)
}
