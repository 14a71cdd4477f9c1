package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/providers"
	"github.com/meetscribe/backend/internal/transcript"
	"github.com/meetscribe/backend/pkg/response"
)

// Store is the slice of the meeting repository the webhook handler needs.
type Store interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByBotID(ctx context.Context, botID string) (*models.Meeting, error)
	GetByTranscriptID(ctx context.Context, transcriptID string) (*models.Meeting, error)
	Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Dispatcher hands a fetched transcript to the processing queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, meetingID uuid.UUID, segments []transcript.Segment) error
}

// Handler receives vendor webhooks and drives lifecycle transitions.
// Signature verification happens upstream; payloads here are trusted.
type Handler struct {
	store          Store
	registry       *providers.Registry
	dispatcher     Dispatcher
	fallbackUserID string
	logger         *zap.Logger
}

// NewHandler creates the webhook handler. fallbackUserID owns records
// auto-created for transcript-ready events that match nothing.
func NewHandler(store Store, registry *providers.Registry, dispatcher Dispatcher, fallbackUserID string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:          store,
		registry:       registry,
		dispatcher:     dispatcher,
		fallbackUserID: fallbackUserID,
		logger:         logger,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhooks/events", h.HandleEvent)
}

// HandleEvent ingests one vendor event. Unknown events are acknowledged with
// 200 and dropped; a non-2xx would only trigger pointless redelivery.
func (h *Handler) HandleEvent(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}

	ev, err := Normalize(payload)
	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			h.logger.Info("dropping unknown webhook event", zap.Error(err))
			response.OK(c, gin.H{"dropped": true})
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if ev.Vendor == VendorCalendar {
		h.handleCalendar(c, ctx, payload)
		return
	}

	switch ev.Type {
	case EventSessionJoining:
		h.advance(ctx, ev, models.StatusJoining, models.MeetingPatch{})
	case EventSessionEnded:
		h.advance(ctx, ev, models.StatusEnded, models.MeetingPatch{})
	case EventRecordingReady:
		patch := models.MeetingPatch{}
		if ev.RecordingID != "" {
			patch.RecordingID = &ev.RecordingID
		}
		h.advance(ctx, ev, models.StatusRecordingReady, patch)
	case EventTranscriptFailed:
		h.fail(ctx, ev)
	case EventTranscriptReady:
		if err := h.transcriptReady(ctx, ev, models.ProviderRecall, ""); err != nil {
			h.logger.Error("transcript ready handling failed",
				zap.String("bot_id", ev.SessionID), zap.Error(err))
			response.Internal(c, "processing dispatch failed")
			return
		}
	}
	response.OK(c, gin.H{"event": ev.Type})
}

// handleCalendar finishes push-envelope resolution through the calendar
// provider, then runs the shared transcript-ready path.
func (h *Handler) handleCalendar(c *gin.Context, ctx context.Context, payload []byte) {
	p, err := h.registry.Get(models.ProviderCalendar)
	if err != nil {
		h.logger.Warn("calendar event received but provider not configured", zap.Error(err))
		response.OK(c, gin.H{"dropped": true})
		return
	}
	result, err := p.HandleWebhook(ctx, payload)
	if err != nil {
		if errors.Is(err, providers.ErrUnresolvedOwner) {
			// Dropped by decision: the subscription mapping will not appear
			// on redelivery, and reprocess covers recovery later.
			response.OK(c, gin.H{"dropped": true})
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	if !result.Ready {
		response.OK(c, gin.H{"event": "ignored"})
		return
	}
	ev := &Event{Vendor: VendorCalendar, Type: EventTranscriptReady, TranscriptID: result.SessionID}
	if err := h.transcriptReady(ctx, ev, models.ProviderCalendar, result.UserID); err != nil {
		h.logger.Error("calendar transcript handling failed",
			zap.String("transcript_id", result.SessionID), zap.Error(err))
		response.Internal(c, "processing dispatch failed")
		return
	}
	response.OK(c, gin.H{"event": EventTranscriptReady})
}

// advance applies a forward-only lifecycle transition for the correlated
// record. Duplicate delivery is a no-op; an unmatched correlation ID is
// logged and dropped.
func (h *Handler) advance(ctx context.Context, ev *Event, status string, patch models.MeetingPatch) {
	m, err := h.lookup(ctx, ev)
	if err != nil {
		h.logger.Error("webhook record lookup failed", zap.String("bot_id", ev.SessionID), zap.Error(err))
		return
	}
	if m == nil {
		h.logger.Warn("webhook for unknown session", zap.String("bot_id", ev.SessionID), zap.String("event", ev.Type))
		return
	}
	advanced, err := h.store.Advance(ctx, m.ID, status, patch)
	if err != nil {
		h.logger.Error("lifecycle advance failed",
			zap.String("meeting_id", m.ID.String()), zap.String("to", status), zap.Error(err))
		return
	}
	if !advanced {
		h.logger.Debug("duplicate event, record already past state",
			zap.String("meeting_id", m.ID.String()), zap.String("to", status))
	}
}

func (h *Handler) fail(ctx context.Context, ev *Event) {
	m, err := h.lookup(ctx, ev)
	if err != nil || m == nil {
		h.logger.Warn("transcript failure for unknown session", zap.String("bot_id", ev.SessionID), zap.Error(err))
		return
	}
	msg := ev.ErrorMessage
	if msg == "" {
		msg = "vendor reported transcript failure"
	}
	if err := h.store.MarkFailed(ctx, m.ID, msg); err != nil {
		h.logger.Error("mark failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
	}
}

// transcriptReady correlates (or auto-creates) the record, fetches the
// transcript from the owning provider and hands it to the dispatcher.
func (h *Handler) transcriptReady(ctx context.Context, ev *Event, providerType, userID string) error {
	m, err := h.lookup(ctx, ev)
	if err != nil {
		return fmt.Errorf("lookup record: %w", err)
	}
	if m == nil {
		if userID == "" {
			userID = h.fallbackUserID
		}
		m = &models.Meeting{
			UserID:       userID,
			Status:       models.StatusTranscribing,
			ProviderType: providerType,
			BotID:        ev.SessionID,
			TranscriptID: ev.TranscriptID,
		}
		if err := h.store.Create(ctx, m); err != nil {
			return fmt.Errorf("auto-create record: %w", err)
		}
		h.logger.Info("auto-created record for unmatched transcript",
			zap.String("meeting_id", m.ID.String()), zap.String("transcript_id", ev.TranscriptID))
	} else {
		patch := models.MeetingPatch{}
		if ev.TranscriptID != "" {
			patch.TranscriptID = &ev.TranscriptID
		}
		advanced, err := h.store.Advance(ctx, m.ID, models.StatusTranscribing, patch)
		if err != nil {
			return fmt.Errorf("advance to transcribing: %w", err)
		}
		if !advanced {
			// Already at or past transcribing (or terminal): the transcript
			// was fetched and dispatched on a previous delivery. Fetching
			// again would start a second pipeline run over the same inputs.
			h.logger.Debug("duplicate transcript event, record already handled",
				zap.String("meeting_id", m.ID.String()), zap.String("status", m.Status))
			return nil
		}
	}

	p, err := h.registry.Get(m.ProviderType)
	if err != nil {
		return err
	}
	sessionID := m.BotID
	if sessionID == "" {
		sessionID = ev.TranscriptID
	}
	segments, err := p.GetTranscript(ctx, sessionID)
	if err != nil {
		if markErr := h.store.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
			h.logger.Error("mark failed", zap.String("meeting_id", m.ID.String()), zap.Error(markErr))
		}
		return fmt.Errorf("fetch transcript: %w", err)
	}
	if err := h.dispatcher.Dispatch(ctx, m.ID, segments); err != nil {
		if markErr := h.store.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
			h.logger.Error("mark failed", zap.String("meeting_id", m.ID.String()), zap.Error(markErr))
		}
		return err
	}
	return nil
}

// lookup correlates an event to a record: bot ID first, transcript ID second.
func (h *Handler) lookup(ctx context.Context, ev *Event) (*models.Meeting, error) {
	if ev.SessionID != "" {
		m, err := h.store.GetByBotID(ctx, ev.SessionID)
		if err != nil || m != nil {
			return m, err
		}
	}
	if ev.TranscriptID != "" {
		return h.store.GetByTranscriptID(ctx, ev.TranscriptID)
	}
	return nil, nil
}
