package schedule

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/middleware"
	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/validate"
	"github.com/meetscribe/backend/pkg/response"
)

// Handler serves the scheduled-meeting API.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates the schedule handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes mounts the schedule API. The group is expected to carry the
// JWT middleware.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/schedules", h.Create)
	r.GET("/schedules", h.List)
	r.DELETE("/schedules/:id", h.Cancel)
}

type createRequest struct {
	MeetingURL string `json:"meeting_url" binding:"required"`
	// TargetTime is a wall-clock time interpreted in Timezone.
	TargetTime string `json:"target_time" binding:"required"` // RFC3339 or "2006-01-02 15:04"
	Timezone   string `json:"timezone"`
}

// Create schedules a future join. The target time is converted to UTC here,
// exactly once; the stored value is never re-derived.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "meeting_url and target_time are required")
		return
	}
	if err := validate.MeetingURL(req.MeetingURL); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		response.BadRequest(c, "unknown timezone")
		return
	}
	target, err := parseTarget(req.TargetTime, loc)
	if err != nil {
		response.BadRequest(c, "target_time must be RFC3339 or \"2006-01-02 15:04\"")
		return
	}
	if target.Before(time.Now()) {
		response.BadRequest(c, "target_time is in the past")
		return
	}

	s := &models.ScheduledMeeting{
		UserID:     c.GetString(middleware.ContextUserID),
		MeetingURL: req.MeetingURL,
		TargetTime: target.UTC(),
		Timezone:   req.Timezone,
		Status:     models.ScheduleStatusScheduled,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create schedule", zap.Error(err))
		response.Internal(c, "could not create schedule")
		return
	}
	response.Created(c, s)
}

// List returns the caller's scheduled meetings, soonest first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.logger.Error("list schedules", zap.Error(err))
		response.Internal(c, "could not list schedules")
		return
	}
	if list == nil {
		list = []models.ScheduledMeeting{}
	}
	response.OK(c, list)
}

// Cancel stops a still-scheduled request. Promoted or failed requests are
// immutable and report a conflict.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return
	}
	ctx := c.Request.Context()
	s, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.logger.Error("get schedule", zap.String("schedule_id", id.String()), zap.Error(err))
		response.Internal(c, "could not load schedule")
		return
	}
	if s == nil || s.UserID != c.GetString(middleware.ContextUserID) {
		response.NotFound(c, "schedule not found")
		return
	}
	cancelled, err := h.repo.Cancel(ctx, id)
	if err != nil {
		h.logger.Error("cancel schedule", zap.String("schedule_id", id.String()), zap.Error(err))
		response.Internal(c, "could not cancel schedule")
		return
	}
	if !cancelled {
		response.Conflict(c, "schedule already "+s.Status)
		return
	}
	response.OK(c, gin.H{"status": models.ScheduleStatusCancelled})
}

// parseTarget accepts RFC3339 (which carries its own offset) or a local
// wall-clock string interpreted in loc.
func parseTarget(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", raw, loc)
}
