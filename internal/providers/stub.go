package providers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/meetscribe/backend/internal/transcript"
)

// StubProvider returns a canned transcript. Used in development and tests so
// the pipeline can run without vendor credentials.
type StubProvider struct{}

var _ TranscriptProvider = (*StubProvider)(nil)

// NewStubProvider creates the stub provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// CreateSession mints a fake session ID.
func (p *StubProvider) CreateSession(ctx context.Context, meetingURL string, opts CreateOptions) (string, error) {
	return "stub-" + uuid.New().String(), nil
}

// GetTranscript returns a small fixed two-speaker transcript.
func (p *StubProvider) GetTranscript(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	segs := []transcript.Segment{
		{Speaker: "Instructor", Text: "Today we cover dependency injection and why constructors beat globals.", StartSeconds: 0, EndSeconds: 30},
		{Speaker: "Instructor", Text: "Pass collaborators in explicitly and your tests stop fighting hidden state.", StartSeconds: 30, EndSeconds: 70},
		{Speaker: "Student", Text: "Does that apply to loggers too?", StartSeconds: 70, EndSeconds: 78},
		{Speaker: "Instructor", Text: "Yes, inject the logger like anything else.", StartSeconds: 78, EndSeconds: 95},
	}
	for i := range segs {
		segs[i].WordCount = len(strings.Fields(segs[i].Text))
	}
	return segs, nil
}

// GetStatus always reports done.
func (p *StubProvider) GetStatus(ctx context.Context, sessionID string) (string, error) {
	return "done", nil
}

// HandleWebhook is not supported; the stub emits no events.
func (p *StubProvider) HandleWebhook(ctx context.Context, payload []byte) (*WebhookResult, error) {
	return nil, ErrNotImplemented
}

// LeaveSession is a no-op success.
func (p *StubProvider) LeaveSession(ctx context.Context, sessionID string) error {
	return nil
}
