// Package tasks serves the authenticated processing callback used by
// push-based queue deliveries.
package tasks

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/pkg/response"
)

// Runner executes the processing pipeline for one meeting.
type Runner interface {
	Run(ctx context.Context, meetingID uuid.UUID, transcriptKey string) error
}

// Records marks meetings failed when a pushed task cannot complete.
type Records interface {
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Handler runs pipeline tasks delivered over HTTP. The route must sit behind
// the service-token middleware; by the time a request lands here its origin
// is already verified.
type Handler struct {
	runner  Runner
	records Records
	logger  *zap.Logger
}

// NewHandler creates the task handler.
func NewHandler(runner Runner, records Records, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, records: records, logger: logger}
}

// RegisterRoutes mounts the task endpoint.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/tasks/process", h.Process)
}

type processRequest struct {
	MeetingID     uuid.UUID `json:"meeting_id" binding:"required"`
	TranscriptKey string    `json:"transcript_key"`
}

// Process runs the pipeline synchronously for the pushed task. A non-2xx
// response tells the queue to redeliver, which is safe because the pipeline
// is idempotent.
func (h *Handler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "meeting_id is required")
		return
	}
	ctx := c.Request.Context()
	if err := h.runner.Run(ctx, req.MeetingID, req.TranscriptKey); err != nil {
		h.logger.Error("pushed task failed", zap.String("meeting_id", req.MeetingID.String()), zap.Error(err))
		if markErr := h.records.MarkFailed(ctx, req.MeetingID, err.Error()); markErr != nil {
			h.logger.Error("mark failed", zap.String("meeting_id", req.MeetingID.String()), zap.Error(markErr))
		}
		response.Internal(c, "processing failed")
		return
	}
	response.OK(c, gin.H{"meeting_id": req.MeetingID, "status": models.StatusCompleted})
}
