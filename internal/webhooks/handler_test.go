package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/providers"
	"github.com/meetscribe/backend/internal/transcript"
)

type fakeStore struct {
	byBot        map[string]*models.Meeting
	byTranscript map[string]*models.Meeting
	created      []*models.Meeting
	advances     []string
	advanced     bool
	failedMsg    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byBot:        map[string]*models.Meeting{},
		byTranscript: map[string]*models.Meeting{},
		advanced:     true,
	}
}

func (f *fakeStore) Create(ctx context.Context, m *models.Meeting) error {
	m.ID = uuid.New()
	f.created = append(f.created, m)
	return nil
}

func (f *fakeStore) GetByBotID(ctx context.Context, botID string) (*models.Meeting, error) {
	return f.byBot[botID], nil
}

func (f *fakeStore) GetByTranscriptID(ctx context.Context, transcriptID string) (*models.Meeting, error) {
	return f.byTranscript[transcriptID], nil
}

func (f *fakeStore) Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error) {
	f.advances = append(f.advances, status)
	return f.advanced, nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failedMsg = errMsg
	return nil
}

type fakeDispatcher struct {
	dispatched []uuid.UUID
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, meetingID uuid.UUID, segments []transcript.Segment) error {
	f.dispatched = append(f.dispatched, meetingID)
	return nil
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/events", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	return w
}

func testHandler(store *fakeStore, dispatcher *fakeDispatcher) *Handler {
	registry := providers.NewRegistry()
	registry.Register(models.ProviderStub, providers.NewStubProvider())
	return NewHandler(store, registry, dispatcher, "fallback-user", nil)
}

func TestHandleEvent_StatusChangeAdvances(t *testing.T) {
	store := newFakeStore()
	store.byBot["bot-1"] = &models.Meeting{ID: uuid.New(), BotID: "bot-1", Status: models.StatusRequesting}
	h := testHandler(store, &fakeDispatcher{})

	w := post(t, h, `{"event": "bot.status_change", "data": {"bot_id": "bot-1", "status": {"code": "joining_call"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{models.StatusJoining}, store.advances)
}

func TestHandleEvent_DuplicateDeliveryIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.advanced = false // record already past the target state
	store.byBot["bot-1"] = &models.Meeting{ID: uuid.New(), BotID: "bot-1", Status: models.StatusEnded}
	h := testHandler(store, &fakeDispatcher{})

	w := post(t, h, `{"event": "bot.status_change", "data": {"bot_id": "bot-1", "status": {"code": "call_ended"}}}`)
	assert.Equal(t, http.StatusOK, w.Code, "duplicates are acknowledged, not errored")
}

func TestHandleEvent_UnknownEventDropped(t *testing.T) {
	h := testHandler(newFakeStore(), &fakeDispatcher{})

	w := post(t, h, `{"event": "participant.join", "data": {"bot_id": "b"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dropped")
}

func TestHandleEvent_UnknownSessionDropped(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store, &fakeDispatcher{})

	w := post(t, h, `{"event": "recording.done", "data": {"bot_id": "nobody-home"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.advances)
}

func TestHandleEvent_TranscriptFailed(t *testing.T) {
	store := newFakeStore()
	store.byBot["bot-1"] = &models.Meeting{ID: uuid.New(), BotID: "bot-1"}
	h := testHandler(store, &fakeDispatcher{})

	w := post(t, h, `{"event": "transcript.failed", "data": {"bot_id": "bot-1", "error": "diarization timeout"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "diarization timeout", store.failedMsg)
}

func TestHandleEvent_TranscriptReadyDispatches(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.byBot["bot-1"] = &models.Meeting{ID: id, BotID: "bot-1", ProviderType: models.ProviderStub, Status: models.StatusRecordingReady}
	dispatcher := &fakeDispatcher{}
	h := testHandler(store, dispatcher)

	w := post(t, h, `{"event": "transcript.done", "data": {"bot_id": "bot-1", "transcript_id": "tr-9"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{models.StatusTranscribing}, store.advances)
	assert.Equal(t, []uuid.UUID{id}, dispatcher.dispatched)
}

func TestHandleEvent_TranscriptReadyDuplicateDoesNotRedispatch(t *testing.T) {
	store := newFakeStore()
	store.advanced = false // completed record: the advance guard rejects it
	store.byBot["bot-1"] = &models.Meeting{ID: uuid.New(), BotID: "bot-1", ProviderType: models.ProviderStub, Status: models.StatusCompleted}
	dispatcher := &fakeDispatcher{}
	h := testHandler(store, dispatcher)

	w := post(t, h, `{"event": "transcript.done", "data": {"bot_id": "bot-1", "transcript_id": "tr-9"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dispatcher.dispatched, "a finished meeting must not be reprocessed by redelivery")
}

func TestHandleEvent_TranscriptReadyAutoCreates(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}

	// Auto-created records get the recall provider type; register a stub
	// under that key so the fetch succeeds.
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(models.ProviderRecall, providers.NewStubProvider()))
	h := NewHandler(store, registry, dispatcher, "fallback-user", nil)

	w := post(t, h, `{"event": "transcript.done", "data": {"bot_id": "bot-x", "transcript_id": "tr-9"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.Equal(t, "fallback-user", created.UserID)
	assert.Equal(t, models.StatusTranscribing, created.Status)
	assert.Equal(t, "bot-x", created.BotID)
	assert.Equal(t, "tr-9", created.TranscriptID)
	assert.Equal(t, []uuid.UUID{created.ID}, dispatcher.dispatched)
}

func TestHandleEvent_CalendarProviderMissing(t *testing.T) {
	h := testHandler(newFakeStore(), &fakeDispatcher{})

	w := post(t, h, `{"message": {"data": "e30="}, "subscription": "s"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dropped")
}

func TestHandleEvent_Garbage(t *testing.T) {
	h := testHandler(newFakeStore(), &fakeDispatcher{})
	w := post(t, h, "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
