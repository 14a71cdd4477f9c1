package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/backend/config"
)

type mapResolver map[string]string

func (m mapResolver) ResolveOwner(ctx context.Context, subscriptionID string) (string, error) {
	user, ok := m[subscriptionID]
	if !ok {
		return "", errors.New("no mapping")
	}
	return user, nil
}

func envelope(t *testing.T, note string) []byte {
	t.Helper()
	data := base64.StdEncoding.EncodeToString([]byte(note))
	return []byte(`{"message": {"data": "` + data + `"}, "subscription": "s"}`)
}

func newCalendar(t *testing.T, baseURL string, tokens TokenSource, resolver SubscriptionResolver) *CalendarProvider {
	t.Helper()
	if tokens == nil {
		tokens = StaticTokenSource{AccessToken: "tok"}
	}
	p, err := NewCalendarProvider(config.CalendarConfig{BaseURL: baseURL}, tokens, resolver, nil)
	require.NoError(t, err)
	return p
}

func TestCalendar_HandleWebhook(t *testing.T) {
	p := newCalendar(t, "https://unused.local", nil, mapResolver{"sub-1": "user-9"})

	res, err := p.HandleWebhook(context.Background(),
		envelope(t, `{"subscriptionId": "sub-1", "resourceId": "tr-5", "changeType": "created"}`))
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Equal(t, "tr-5", res.SessionID)
	assert.Equal(t, "user-9", res.UserID)
}

func TestCalendar_HandleWebhookIgnoresOtherChangeTypes(t *testing.T) {
	p := newCalendar(t, "https://unused.local", nil, nil)

	res, err := p.HandleWebhook(context.Background(),
		envelope(t, `{"subscriptionId": "sub-1", "resourceId": "tr-5", "changeType": "deleted"}`))
	require.NoError(t, err)
	assert.False(t, res.Ready)
}

func TestCalendar_HandleWebhookUnresolvedOwner(t *testing.T) {
	p := newCalendar(t, "https://unused.local", nil, mapResolver{})

	_, err := p.HandleWebhook(context.Background(),
		envelope(t, `{"subscriptionId": "sub-x", "resourceId": "tr-5", "changeType": "created"}`))
	assert.ErrorIs(t, err, ErrUnresolvedOwner)
}

func TestCalendar_HandleWebhookNilResolver(t *testing.T) {
	p := newCalendar(t, "https://unused.local", nil, nil)

	res, err := p.HandleWebhook(context.Background(),
		envelope(t, `{"subscriptionId": "sub-1", "resourceId": "tr-5", "changeType": "created"}`))
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Empty(t, res.UserID, "no resolver leaves the record unattributed")
}

func TestCalendar_HandleWebhookBadEnvelope(t *testing.T) {
	p := newCalendar(t, "https://unused.local", nil, nil)

	_, err := p.HandleWebhook(context.Background(), []byte(`{"message": {"data": "!!!not-base64"}, "subscription": "s"}`))
	assert.Error(t, err)

	_, err = p.HandleWebhook(context.Background(), envelope(t, `{"subscriptionId": "s", "changeType": "created"}`))
	assert.Error(t, err, "missing resource id")
}

func TestCalendar_GetTranscript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcripts/tr-5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id": "tr-5", "meetingSubject": "Weekly sync"}`))
	})
	mux.HandleFunc("/transcripts/tr-5/entries", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"speaker": "Alice", "text": "status update", "start_seconds": 0, "end_seconds": 4}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	segs, err := newCalendar(t, srv.URL, nil, nil).GetTranscript(context.Background(), "tr-5")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "status update", segs[0].Text)
}

type refreshingSource struct {
	refreshed atomic.Bool
}

func (s *refreshingSource) Token(ctx context.Context) (string, error) { return "stale", nil }
func (s *refreshingSource) Refresh(ctx context.Context) (string, error) {
	s.refreshed.Store(true)
	return "fresh", nil
}

func TestCalendar_RefreshRetryOn401(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcripts/tr-5", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id": "tr-5"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tokens := &refreshingSource{}
	status, err := newCalendar(t, srv.URL, tokens, nil).GetStatus(context.Background(), "tr-5")
	require.NoError(t, err)
	assert.Equal(t, "transcript_ready", status)
	assert.True(t, tokens.refreshed.Load())
}

func TestCalendar_CreateAndLeaveNotSupported(t *testing.T) {
	p := newCalendar(t, "https://unused.local", nil, nil)

	_, err := p.CreateSession(context.Background(), "https://zoom.us/j/1", CreateOptions{})
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.ErrorIs(t, p.LeaveSession(context.Background(), "x"), ErrNotImplemented)
}
