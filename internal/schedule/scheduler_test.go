package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/providers"
	"github.com/meetscribe/backend/internal/transcript"
)

type fakeScheduleStore struct {
	due      []models.ScheduledMeeting
	status   map[uuid.UUID]string
	promoted map[uuid.UUID]uuid.UUID // schedule ID -> meeting ID
	failed   map[uuid.UUID]string
	claimErr error
}

func newFakeScheduleStore(due ...models.ScheduledMeeting) *fakeScheduleStore {
	s := &fakeScheduleStore{
		due:      due,
		status:   map[uuid.UUID]string{},
		promoted: map[uuid.UUID]uuid.UUID{},
		failed:   map[uuid.UUID]string{},
	}
	for _, d := range due {
		s.status[d.ID] = d.Status
	}
	return s
}

func (s *fakeScheduleStore) ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMeeting, error) {
	return s.due, nil
}

func (s *fakeScheduleStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	if s.status[id] != models.ScheduleStatusScheduled {
		return false, nil
	}
	s.status[id] = models.ScheduleStatusPromoting
	return true, nil
}

func (s *fakeScheduleStore) MarkPromoted(ctx context.Context, id, meetingID uuid.UUID) error {
	s.status[id] = models.ScheduleStatusCompleted
	s.promoted[id] = meetingID
	return nil
}

func (s *fakeScheduleStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.status[id] = models.ScheduleStatusFailed
	s.failed[id] = errMsg
	return nil
}

type fakeMeetingStore struct {
	created   []*models.Meeting
	advanced  map[uuid.UUID]string
	failed    map[uuid.UUID]string
	deleted   []uuid.UUID
	expired   []models.Meeting
	createErr error
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{advanced: map[uuid.UUID]string{}, failed: map[uuid.UUID]string{}}
}

func (f *fakeMeetingStore) Create(ctx context.Context, m *models.Meeting) error {
	if f.createErr != nil {
		return f.createErr
	}
	m.ID = uuid.New()
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMeetingStore) Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error) {
	f.advanced[id] = status
	return true, nil
}

func (f *fakeMeetingStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeMeetingStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMeetingStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Meeting, error) {
	return f.expired, nil
}

type fakeArtifacts struct {
	deleted []string // bucket/key
}

func (f *fakeArtifacts) DeleteObject(ctx context.Context, bucket, key string) error {
	f.deleted = append(f.deleted, bucket+"/"+key)
	return nil
}

func (f *fakeArtifacts) TranscriptsBucket() string { return "transcripts" }
func (f *fakeArtifacts) OutputsBucket() string     { return "outputs" }

// failingProvider errors on join so promotion failure paths can be exercised.
type failingProvider struct{}

func (failingProvider) CreateSession(ctx context.Context, meetingURL string, opts providers.CreateOptions) (string, error) {
	return "", errors.New("vendor is down")
}
func (failingProvider) GetTranscript(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	return nil, providers.ErrNotImplemented
}
func (failingProvider) GetStatus(ctx context.Context, sessionID string) (string, error) {
	return "", providers.ErrNotImplemented
}
func (failingProvider) HandleWebhook(ctx context.Context, payload []byte) (*providers.WebhookResult, error) {
	return nil, providers.ErrNotImplemented
}
func (failingProvider) LeaveSession(ctx context.Context, sessionID string) error { return nil }

func registryWith(t *testing.T, p providers.TranscriptProvider) *providers.Registry {
	t.Helper()
	r := providers.NewRegistry()
	require.NoError(t, r.Register(models.ProviderRecall, p))
	return r
}

func dueRequest(userID string) models.ScheduledMeeting {
	return models.ScheduledMeeting{
		ID:         uuid.New(),
		UserID:     userID,
		MeetingURL: "https://meet.google.com/abc-defg-hij",
		TargetTime: time.Now().UTC().Add(-time.Minute),
		Status:     models.ScheduleStatusScheduled,
	}
}

func TestPromoteDue_JoinsAndCompletes(t *testing.T) {
	req := dueRequest("user-1")
	schedules := newFakeScheduleStore(req)
	meetings := newFakeMeetingStore()
	registry := registryWith(t, providers.NewStubProvider())

	s := NewScheduler(schedules, meetings, registry, nil, time.Minute, false, "Notetaker", nil)
	s.PromoteDue(context.Background())

	require.Len(t, meetings.created, 1)
	m := meetings.created[0]
	assert.Equal(t, "user-1", m.UserID)
	assert.Equal(t, req.MeetingURL, m.MeetingURL)
	assert.Equal(t, models.StatusJoining, meetings.advanced[m.ID])

	assert.Equal(t, models.ScheduleStatusCompleted, schedules.status[req.ID])
	assert.Equal(t, m.ID, schedules.promoted[req.ID], "completed request links its meeting")
}

func TestPromoteDue_SkipsAlreadyClaimed(t *testing.T) {
	req := dueRequest("user-1")
	schedules := newFakeScheduleStore(req)
	schedules.status[req.ID] = models.ScheduleStatusPromoting
	meetings := newFakeMeetingStore()

	s := NewScheduler(schedules, meetings, registryWith(t, providers.NewStubProvider()), nil, time.Minute, false, "", nil)
	s.PromoteDue(context.Background())

	assert.Empty(t, meetings.created, "a claimed request must not be promoted twice")
	assert.Empty(t, schedules.promoted)
}

func TestPromoteDue_ProviderFailureMarksBothFailed(t *testing.T) {
	req := dueRequest("user-1")
	schedules := newFakeScheduleStore(req)
	meetings := newFakeMeetingStore()

	s := NewScheduler(schedules, meetings, registryWith(t, failingProvider{}), nil, time.Minute, false, "", nil)
	s.PromoteDue(context.Background())

	assert.Equal(t, models.ScheduleStatusFailed, schedules.status[req.ID])
	assert.Contains(t, schedules.failed[req.ID], "vendor is down")
	assert.Empty(t, schedules.promoted, "a failed promotion must never read as completed")

	require.Len(t, meetings.created, 1)
	assert.Contains(t, meetings.failed[meetings.created[0].ID], "vendor is down")
}

func TestPromoteDue_CreateFailureFailsTheRequest(t *testing.T) {
	req := dueRequest("user-1")
	schedules := newFakeScheduleStore(req)
	meetings := newFakeMeetingStore()
	meetings.createErr = errors.New("db unavailable")

	s := NewScheduler(schedules, meetings, registryWith(t, providers.NewStubProvider()), nil, time.Minute, false, "", nil)
	s.PromoteDue(context.Background())

	assert.Equal(t, models.ScheduleStatusFailed, schedules.status[req.ID])
	assert.Empty(t, schedules.promoted)
}

func TestSweepExpired_DeletesArtifactsAndRecords(t *testing.T) {
	expired := models.Meeting{
		ID:            uuid.New(),
		Status:        models.StatusCompleted,
		TranscriptKey: "transcripts/old.json",
		Outputs:       map[string]string{"study_guide.md": "outputs/old/study_guide.md"},
	}
	meetings := newFakeMeetingStore()
	meetings.expired = []models.Meeting{expired}
	artifacts := &fakeArtifacts{}

	s := NewScheduler(newFakeScheduleStore(), meetings, registryWith(t, providers.NewStubProvider()), artifacts, time.Minute, true, "", nil)
	s.SweepExpired(context.Background())

	assert.Contains(t, artifacts.deleted, "transcripts/transcripts/old.json")
	assert.Contains(t, artifacts.deleted, "outputs/outputs/old/study_guide.md")
	assert.Equal(t, []uuid.UUID{expired.ID}, meetings.deleted)
}
