package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meetscribe/backend/config"
	"github.com/meetscribe/backend/internal/transcript"
)

// ErrUnresolvedOwner marks a push notification whose subscription matches no
// known user. Such events are dropped with a warning: the mapping will not
// appear later without operator action, and the manual reprocess path covers
// recovery once it does.
var ErrUnresolvedOwner = errors.New("no owner for subscription")

// TokenSource supplies the vendor access token. Refresh exchanges a new one
// after an authorization failure; the OAuth mechanics behind it are an
// external collaborator.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource serves a fixed token, for deployments that inject the
// credential directly. Refresh returns the same token, so an expired
// credential surfaces as a vendor error instead of being papered over.
type StaticTokenSource struct {
	AccessToken string
}

func (s StaticTokenSource) Token(ctx context.Context) (string, error)   { return s.AccessToken, nil }
func (s StaticTokenSource) Refresh(ctx context.Context) (string, error) { return s.AccessToken, nil }

// SubscriptionResolver maps a vendor subscription ID to the owning user.
type SubscriptionResolver interface {
	ResolveOwner(ctx context.Context, subscriptionID string) (string, error)
}

// CalendarProvider is the event-driven vendor integration. It never joins a
// meeting; a push notification references a finished transcript, which is
// resolved with a metadata fetch plus an entries fetch.
type CalendarProvider struct {
	baseURL    string
	tokens     TokenSource
	resolver   SubscriptionResolver
	httpClient *http.Client
	logger     *zap.Logger
}

var _ TranscriptProvider = (*CalendarProvider)(nil)

// NewCalendarProvider builds the event-driven vendor client.
func NewCalendarProvider(cfg config.CalendarConfig, tokens TokenSource, resolver SubscriptionResolver, logger *zap.Logger) (*CalendarProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("calendar provider: base url required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("calendar provider: token source required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     tokens,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// CreateSession is not supported: this provider is reactive, it never joins.
func (p *CalendarProvider) CreateSession(ctx context.Context, meetingURL string, opts CreateOptions) (string, error) {
	return "", ErrNotImplemented
}

// pushEnvelope is the signed push-notification body. Signature verification
// happens upstream; here the base64 data field carries the actual event.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"` // base64-encoded notificationData
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type notificationData struct {
	SubscriptionID string `json:"subscriptionId"`
	ResourceID     string `json:"resourceId"`
	ChangeType     string `json:"changeType"`
}

// HandleWebhook decodes the push envelope and resolves the owning user. A
// transcript is ready when the change type is "created".
func (p *CalendarProvider) HandleWebhook(ctx context.Context, payload []byte) (*WebhookResult, error) {
	var env pushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode push envelope: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("decode envelope data: %w", err)
	}
	var note notificationData
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if note.ChangeType != "" && note.ChangeType != "created" {
		return &WebhookResult{Ready: false}, nil
	}
	if note.ResourceID == "" {
		return nil, fmt.Errorf("notification missing resource id")
	}

	userID := ""
	if p.resolver != nil && note.SubscriptionID != "" {
		userID, err = p.resolver.ResolveOwner(ctx, note.SubscriptionID)
		if err != nil {
			p.logger.Warn("dropping notification with unresolved owner",
				zap.String("subscription_id", note.SubscriptionID),
				zap.String("resource_id", note.ResourceID),
				zap.Error(err))
			return nil, fmt.Errorf("subscription %s: %w", note.SubscriptionID, ErrUnresolvedOwner)
		}
	}
	return &WebhookResult{Ready: true, SessionID: note.ResourceID, UserID: userID}, nil
}

type transcriptMetadata struct {
	ID             string `json:"id"`
	MeetingSubject string `json:"meetingSubject"`
}

// GetTranscript resolves a transcript reference: metadata fetch, then
// entries fetch. An authorization failure triggers one transparent
// credential refresh and retry.
func (p *CalendarProvider) GetTranscript(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	var meta transcriptMetadata
	metaRaw, err := p.get(ctx, "/transcripts/"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("transcript metadata: %w", err)
	}
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("decode transcript metadata: %w", err)
	}
	if meta.ID == "" {
		meta.ID = sessionID
	}

	entries, err := p.get(ctx, "/transcripts/"+meta.ID+"/entries")
	if err != nil {
		return nil, fmt.Errorf("transcript entries: %w", err)
	}

	segs, err := transcript.Parse(entries)
	if err != nil {
		return nil, fmt.Errorf("normalize transcript: %w", err)
	}
	return segs, nil
}

// GetStatus reports whether the transcript resource exists yet.
func (p *CalendarProvider) GetStatus(ctx context.Context, sessionID string) (string, error) {
	_, err := p.get(ctx, "/transcripts/"+sessionID)
	if err != nil {
		return "", err
	}
	return "transcript_ready", nil
}

// LeaveSession is not supported: nothing to leave, nothing was joined.
func (p *CalendarProvider) LeaveSession(ctx context.Context, sessionID string) error {
	return ErrNotImplemented
}

// get performs an authenticated GET with one refresh-and-retry on 401.
func (p *CalendarProvider) get(ctx context.Context, path string) ([]byte, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	data, status, err := p.getWithToken(ctx, path, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, err = p.tokens.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		data, status, err = p.getWithToken(ctx, path, token)
		if err != nil {
			return nil, err
		}
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("vendor error %d: %s", status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (p *CalendarProvider) getWithToken(ctx context.Context, path, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
