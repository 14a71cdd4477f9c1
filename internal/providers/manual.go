package providers

import (
	"context"

	"github.com/google/uuid"

	"github.com/meetscribe/backend/internal/transcript"
)

// ManualProvider backs user-uploaded transcripts. The upload endpoint stages
// the transcript directly, so most capabilities have nothing to do here and
// say so explicitly.
type ManualProvider struct{}

var _ TranscriptProvider = (*ManualProvider)(nil)

// NewManualProvider creates the manual-upload provider.
func NewManualProvider() *ManualProvider {
	return &ManualProvider{}
}

// CreateSession mints a local session ID; no vendor is involved.
func (p *ManualProvider) CreateSession(ctx context.Context, meetingURL string, opts CreateOptions) (string, error) {
	return uuid.New().String(), nil
}

// GetTranscript is not supported: the transcript arrives with the upload and
// is staged straight to blob storage.
func (p *ManualProvider) GetTranscript(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	return nil, ErrNotImplemented
}

// GetStatus always reports ready; there is no vendor to ask.
func (p *ManualProvider) GetStatus(ctx context.Context, sessionID string) (string, error) {
	return "transcript_ready", nil
}

// HandleWebhook is not supported; manual sessions receive no events.
func (p *ManualProvider) HandleWebhook(ctx context.Context, payload []byte) (*WebhookResult, error) {
	return nil, ErrNotImplemented
}

// LeaveSession is a no-op success; nothing joined a meeting.
func (p *ManualProvider) LeaveSession(ctx context.Context, sessionID string) error {
	return nil
}
