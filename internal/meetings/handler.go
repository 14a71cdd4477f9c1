package meetings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/middleware"
	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/plugins"
	"github.com/meetscribe/backend/internal/providers"
	"github.com/meetscribe/backend/internal/transcript"
	"github.com/meetscribe/backend/internal/validate"
	"github.com/meetscribe/backend/pkg/response"
)

// Dispatcher hands transcripts to the processing queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, meetingID uuid.UUID, segments []transcript.Segment) error
	DispatchStaged(ctx context.Context, meetingID uuid.UUID, transcriptKey string) error
}

// Artifacts is the slice of blob storage the handler needs for cleanup and
// downloads.
type Artifacts interface {
	DeleteObject(ctx context.Context, bucket, key string) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
	TranscriptsBucket() string
	OutputsBucket() string
}

// Handler serves the meeting API.
type Handler struct {
	repo       *Repository
	registry   *providers.Registry
	plugins    *plugins.Registry
	dispatcher Dispatcher
	artifacts  Artifacts
	botName    string
	logger     *zap.Logger
}

// NewHandler creates the meetings handler. botName is the display name bots
// use when joining.
func NewHandler(repo *Repository, registry *providers.Registry, pluginRegistry *plugins.Registry, dispatcher Dispatcher, artifacts Artifacts, botName string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if botName == "" {
		botName = "MeetScribe Notetaker"
	}
	return &Handler{
		repo:       repo,
		registry:   registry,
		plugins:    pluginRegistry,
		dispatcher: dispatcher,
		artifacts:  artifacts,
		botName:    botName,
		logger:     logger,
	}
}

// RegisterRoutes mounts the meeting API. The group is expected to carry the
// JWT middleware.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/meetings", h.Create)
	r.GET("/meetings", h.List)
	r.GET("/meetings/:id", h.Get)
	r.DELETE("/meetings/:id", h.Delete)
	r.POST("/meetings/:id/leave", h.Leave)
	r.POST("/meetings/:id/reprocess", h.Reprocess)
	r.GET("/meetings/:id/outputs/:name", h.DownloadURL)
	r.POST("/meetings/upload", h.Upload)
}

type createRequest struct {
	MeetingURL   string         `json:"meeting_url" binding:"required"`
	DisplayName  string         `json:"display_name"`
	ProviderType string         `json:"provider_type"`
	ContentType  string         `json:"content_type"`
	Settings     map[string]any `json:"settings"`
}

// validateSettings checks content_type and per-request settings by resolving
// and configuring the plugin the pipeline would use. Bad combinations fail
// here with a 400 instead of failing the meeting hours later.
func (h *Handler) validateSettings(contentType string, settings map[string]any) error {
	if h.plugins == nil {
		return nil
	}
	_, err := h.plugins.ResolveConfigured(contentType, nil, settings)
	return err
}

// Create requests a bot session: validates the URL against the allow-list,
// persists the record and instructs the provider to join.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "meeting_url is required")
		return
	}
	if err := validate.MeetingURL(req.MeetingURL); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.ProviderType == "" {
		req.ProviderType = models.ProviderRecall
	}
	provider, err := h.registry.Get(req.ProviderType)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.validateSettings(req.ContentType, req.Settings); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	m := &models.Meeting{
		UserID:       c.GetString(middleware.ContextUserID),
		MeetingURL:   req.MeetingURL,
		DisplayName:  req.DisplayName,
		Status:       models.StatusRequesting,
		ProviderType: req.ProviderType,
		ContentType:  req.ContentType,
		Settings:     req.Settings,
	}
	if err := h.repo.Create(ctx, m); err != nil {
		h.logger.Error("create meeting record", zap.Error(err))
		response.Internal(c, "could not create meeting")
		return
	}

	botID, err := provider.CreateSession(ctx, req.MeetingURL, providers.CreateOptions{
		UserID:      m.UserID,
		DisplayName: h.botName,
	})
	if err != nil {
		// Vendor failures surface as failed with the error recorded; retry is
		// the caller's decision, not this layer's.
		if markErr := h.repo.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
			h.logger.Error("mark failed", zap.String("meeting_id", m.ID.String()), zap.Error(markErr))
		}
		h.logger.Error("create session", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "provider could not join the meeting")
		return
	}

	if _, err := h.repo.Advance(ctx, m.ID, models.StatusJoining, models.MeetingPatch{BotID: &botID}); err != nil {
		h.logger.Error("advance to joining", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "could not update meeting")
		return
	}
	m.Status = models.StatusJoining
	m.BotID = botID
	response.Created(c, m)
}

// List returns the caller's meetings, newest first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.logger.Error("list meetings", zap.Error(err))
		response.Internal(c, "could not list meetings")
		return
	}
	if list == nil {
		list = []models.Meeting{}
	}
	response.OK(c, list)
}

// Get returns one meeting owned by the caller.
func (h *Handler) Get(c *gin.Context) {
	m, ok := h.owned(c)
	if !ok {
		return
	}
	response.OK(c, m)
}

// Delete removes a meeting and its stored artifacts.
func (h *Handler) Delete(c *gin.Context) {
	m, ok := h.owned(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	h.deleteArtifacts(ctx, m)
	if err := h.repo.Delete(ctx, m.ID); err != nil {
		h.logger.Error("delete meeting", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "could not delete meeting")
		return
	}
	response.NoContent(c)
}

// Leave asks the provider to exit the meeting.
func (h *Handler) Leave(c *gin.Context) {
	m, ok := h.owned(c)
	if !ok {
		return
	}
	if models.StatusTerminal(m.Status) {
		response.Conflict(c, "meeting already finished")
		return
	}
	provider, err := h.registry.Get(m.ProviderType)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := provider.LeaveSession(ctx, m.BotID); err != nil {
		h.logger.Error("leave session", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "provider could not leave the meeting")
		return
	}
	if _, err := h.repo.Advance(ctx, m.ID, models.StatusLeaving, models.MeetingPatch{}); err != nil {
		h.logger.Error("advance to leaving", zap.String("meeting_id", m.ID.String()), zap.Error(err))
	}
	response.OK(c, gin.H{"status": models.StatusLeaving})
}

// Reprocess re-runs the pipeline for a meeting. A staged transcript is
// reused; otherwise the transcript is fetched from the provider again.
func (h *Handler) Reprocess(c *gin.Context) {
	m, ok := h.owned(c)
	if !ok {
		return
	}
	if m.Status != models.StatusCompleted && m.Status != models.StatusFailed {
		response.Conflict(c, "meeting is still in progress")
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.ResetForReprocess(ctx, m.ID); err != nil {
		h.logger.Error("reset for reprocess", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "could not reset meeting")
		return
	}

	if m.TranscriptKey != "" {
		if err := h.dispatcher.DispatchStaged(ctx, m.ID, m.TranscriptKey); err != nil {
			h.logger.Error("reprocess dispatch", zap.String("meeting_id", m.ID.String()), zap.Error(err))
			response.Internal(c, "could not queue reprocessing")
			return
		}
		response.Accepted(c, gin.H{"status": models.StatusQueued})
		return
	}

	provider, err := h.registry.Get(m.ProviderType)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sessionID := m.BotID
	if sessionID == "" {
		sessionID = m.TranscriptID
	}
	segments, err := provider.GetTranscript(ctx, sessionID)
	if err != nil {
		if markErr := h.repo.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
			h.logger.Error("mark failed", zap.String("meeting_id", m.ID.String()), zap.Error(markErr))
		}
		response.Internal(c, "could not fetch transcript")
		return
	}
	if err := h.dispatcher.Dispatch(ctx, m.ID, segments); err != nil {
		h.logger.Error("reprocess dispatch", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "could not queue reprocessing")
		return
	}
	response.Accepted(c, gin.H{"status": models.StatusQueued})
}

// DownloadURL returns a pre-signed URL for one output artifact.
func (h *Handler) DownloadURL(c *gin.Context) {
	m, ok := h.owned(c)
	if !ok {
		return
	}
	name := c.Param("name")
	key, exists := m.Outputs[name]
	if !exists {
		response.NotFound(c, fmt.Sprintf("no output named %q", name))
		return
	}
	url, err := h.artifacts.GeneratePresignedDownloadURL(c.Request.Context(), h.artifacts.OutputsBucket(), key, h.artifacts.PresignExpire())
	if err != nil {
		h.logger.Error("presign output", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "could not generate download url")
		return
	}
	response.OK(c, gin.H{"name": name, "url": url, "expires_in_seconds": int(h.artifacts.PresignExpire().Seconds())})
}

// Upload accepts a transcript directly (JSON segments, WebVTT, or bracket
// dialogue) and queues processing without any vendor session.
func (h *Handler) Upload(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil || len(body) == 0 {
		response.BadRequest(c, "transcript body required")
		return
	}
	segments, err := transcript.Parse(body)
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("unsupported transcript: %v", err))
		return
	}
	contentType := c.Query("content_type")
	var settings map[string]any
	if raw := c.Query("settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			response.BadRequest(c, "settings must be a JSON object")
			return
		}
	}
	if err := h.validateSettings(contentType, settings); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	m := &models.Meeting{
		UserID:       c.GetString(middleware.ContextUserID),
		DisplayName:  c.Query("display_name"),
		Status:       models.StatusTranscribing,
		ProviderType: models.ProviderManual,
		ContentType:  contentType,
		Settings:     settings,
	}
	if err := h.repo.Create(ctx, m); err != nil {
		h.logger.Error("create upload record", zap.Error(err))
		response.Internal(c, "could not create meeting")
		return
	}
	if err := h.dispatcher.Dispatch(ctx, m.ID, segments); err != nil {
		h.logger.Error("upload dispatch", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "could not queue processing")
		return
	}
	response.Accepted(c, gin.H{"id": m.ID, "status": models.StatusQueued, "segments": len(segments)})
}

const maxUploadBytes = 32 << 20 // 32MB transcript upload cap

// owned loads the meeting from the path ID and checks the caller owns it.
func (h *Handler) owned(c *gin.Context) (*models.Meeting, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return nil, false
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get meeting", zap.String("meeting_id", id.String()), zap.Error(err))
		response.Internal(c, "could not load meeting")
		return nil, false
	}
	if m == nil || m.UserID != c.GetString(middleware.ContextUserID) {
		response.NotFound(c, "meeting not found")
		return nil, false
	}
	return m, true
}

// deleteArtifacts removes everything stored for a meeting. Best effort: a
// missing object must not block record deletion.
func (h *Handler) deleteArtifacts(ctx context.Context, m *models.Meeting) {
	if h.artifacts == nil {
		return
	}
	if m.TranscriptKey != "" {
		if err := h.artifacts.DeleteObject(ctx, h.artifacts.TranscriptsBucket(), m.TranscriptKey); err != nil {
			h.logger.Warn("delete staged transcript", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		}
	}
	for name, key := range m.Outputs {
		if err := h.artifacts.DeleteObject(ctx, h.artifacts.OutputsBucket(), key); err != nil {
			h.logger.Warn("delete output", zap.String("meeting_id", m.ID.String()), zap.String("name", name), zap.Error(err))
		}
	}
}
