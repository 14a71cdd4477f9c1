package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/providers"
)

const promotionBatch = 50

// ScheduleStore is the slice of the schedule repository the scheduler needs.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMeeting, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPromoted(ctx context.Context, id, meetingID uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// MeetingStore is the slice of the meeting repository the scheduler needs.
type MeetingStore interface {
	Create(ctx context.Context, m *models.Meeting) error
	Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Meeting, error)
}

// Artifacts deletes stored objects during the retention sweep.
type Artifacts interface {
	DeleteObject(ctx context.Context, bucket, key string) error
	TranscriptsBucket() string
	OutputsBucket() string
}

// Scheduler is the background polling loop: it promotes due scheduled
// requests into live sessions and sweeps expired records. The promoting
// claim in the store is what keeps concurrent pollers off the same row.
type Scheduler struct {
	schedules ScheduleStore
	meetings  MeetingStore
	registry  *providers.Registry
	artifacts Artifacts
	interval  time.Duration
	retention bool
	botName   string
	logger    *zap.Logger
}

// NewScheduler creates the polling loop. retention enables the expiry sweep.
func NewScheduler(schedules ScheduleStore, meetings MeetingStore, registry *providers.Registry, artifacts Artifacts, interval time.Duration, retention bool, botName string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if botName == "" {
		botName = "MeetScribe Notetaker"
	}
	return &Scheduler{
		schedules: schedules,
		meetings:  meetings,
		registry:  registry,
		artifacts: artifacts,
		interval:  interval,
		retention: retention,
		botName:   botName,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.PromoteDue(ctx)
			if s.retention {
				s.SweepExpired(ctx)
			}
		}
	}
}

// PromoteDue joins every scheduled meeting whose target time has arrived.
func (s *Scheduler) PromoteDue(ctx context.Context) {
	due, err := s.schedules.ListDue(ctx, time.Now().UTC(), promotionBatch)
	if err != nil {
		s.logger.Error("list due schedules", zap.Error(err))
		return
	}
	for _, req := range due {
		claimed, err := s.schedules.Claim(ctx, req.ID)
		if err != nil {
			s.logger.Error("claim schedule", zap.String("schedule_id", req.ID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		s.promote(ctx, req)
	}
}

// promote creates the meeting record and asks the provider to join.
func (s *Scheduler) promote(ctx context.Context, req models.ScheduledMeeting) {
	m := &models.Meeting{
		UserID:       req.UserID,
		MeetingURL:   req.MeetingURL,
		Status:       models.StatusRequesting,
		ProviderType: models.ProviderRecall,
	}
	if err := s.meetings.Create(ctx, m); err != nil {
		s.logger.Error("create meeting for schedule", zap.String("schedule_id", req.ID.String()), zap.Error(err))
		s.fail(ctx, req.ID, err.Error())
		return
	}

	provider, err := s.registry.Get(m.ProviderType)
	if err != nil {
		s.fail(ctx, req.ID, err.Error())
		_ = s.meetings.MarkFailed(ctx, m.ID, err.Error())
		return
	}
	botID, err := provider.CreateSession(ctx, req.MeetingURL, providers.CreateOptions{
		UserID:      req.UserID,
		DisplayName: s.botName,
	})
	if err != nil {
		s.logger.Error("scheduled join failed",
			zap.String("schedule_id", req.ID.String()), zap.String("meeting_id", m.ID.String()), zap.Error(err))
		s.fail(ctx, req.ID, err.Error())
		_ = s.meetings.MarkFailed(ctx, m.ID, err.Error())
		return
	}
	if _, err := s.meetings.Advance(ctx, m.ID, models.StatusJoining, models.MeetingPatch{BotID: &botID}); err != nil {
		s.logger.Error("advance promoted meeting", zap.String("meeting_id", m.ID.String()), zap.Error(err))
	}
	if err := s.schedules.MarkPromoted(ctx, req.ID, m.ID); err != nil {
		s.logger.Error("mark schedule promoted", zap.String("schedule_id", req.ID.String()), zap.Error(err))
		return
	}
	s.logger.Info("scheduled meeting promoted",
		zap.String("schedule_id", req.ID.String()), zap.String("meeting_id", m.ID.String()))
}

func (s *Scheduler) fail(ctx context.Context, id uuid.UUID, msg string) {
	if err := s.schedules.MarkFailed(ctx, id, msg); err != nil {
		s.logger.Error("mark schedule failed", zap.String("schedule_id", id.String()), zap.Error(err))
	}
}

// SweepExpired deletes records past their expiry along with their stored
// artifacts.
func (s *Scheduler) SweepExpired(ctx context.Context) {
	expired, err := s.meetings.ListExpired(ctx, time.Now().UTC(), promotionBatch)
	if err != nil {
		s.logger.Error("list expired meetings", zap.Error(err))
		return
	}
	for _, m := range expired {
		if s.artifacts != nil {
			if m.TranscriptKey != "" {
				if err := s.artifacts.DeleteObject(ctx, s.artifacts.TranscriptsBucket(), m.TranscriptKey); err != nil {
					s.logger.Warn("sweep transcript delete", zap.String("meeting_id", m.ID.String()), zap.Error(err))
				}
			}
			for name, key := range m.Outputs {
				if err := s.artifacts.DeleteObject(ctx, s.artifacts.OutputsBucket(), key); err != nil {
					s.logger.Warn("sweep output delete",
						zap.String("meeting_id", m.ID.String()), zap.String("name", name), zap.Error(err))
				}
			}
		}
		if err := s.meetings.Delete(ctx, m.ID); err != nil {
			s.logger.Error("sweep record delete", zap.String("meeting_id", m.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("expired meeting removed", zap.String("meeting_id", m.ID.String()))
	}
}
