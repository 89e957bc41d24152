package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/logarchive/internal/logger"
	"github.com/timmy/logarchive/internal/service"
)

// WatermarkReader reads the current archive watermark.
type WatermarkReader interface {
	HighestStoredID(ctx context.Context) (int64, bool, error)
}

// StatusHandler reports archiver progress.
type StatusHandler struct {
	tracker   *service.StatusTracker
	watermark WatermarkReader
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(tracker *service.StatusTracker, watermark WatermarkReader) *StatusHandler {
	return &StatusHandler{tracker: tracker, watermark: watermark}
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Watermark int64 `json:"watermark"`
	service.StatusSnapshot
}

// Health reports liveness. The process stays up across failed runs, so this
// is always ok; failed_runs tells whether the archiver is making progress.
func (h *StatusHandler) Health(c *gin.Context) {
	snap := h.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"runs":        snap.Runs,
		"failed_runs": snap.FailedRuns,
	})
}

// Status returns the current watermark and the outcome of recent runs.
func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	watermark, _, err := h.watermark.HighestStoredID(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to read watermark")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watermark unavailable"})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Watermark:      watermark,
		StatusSnapshot: h.tracker.Snapshot(),
	})
}
