// Package providers abstracts recording/transcription vendors behind a
// single interface. Bot-based vendors are imperative (told to join, later
// polled for a transcript); event-driven vendors are reactive (a push
// notification carries a transcript reference to resolve).
package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/meetscribe/backend/internal/transcript"
)

// ErrNotImplemented marks a capability a provider variant does not support,
// or a provider type that is not configured. Callers must surface it, never
// silently no-op.
var ErrNotImplemented = errors.New("not implemented for this provider")

// CreateOptions are session creation parameters.
type CreateOptions struct {
	UserID      string
	DisplayName string // bot display name shown in the meeting
}

// WebhookResult is the outcome of a provider-specific webhook: when Ready,
// SessionID identifies a session whose transcript can now be fetched.
type WebhookResult struct {
	Ready     bool
	SessionID string
	UserID    string // resolved owner, when the vendor payload carries one
}

// TranscriptProvider is the capability set every vendor integration
// implements.
type TranscriptProvider interface {
	// CreateSession instructs the vendor to join a meeting and returns the
	// vendor session ID.
	CreateSession(ctx context.Context, meetingURL string, opts CreateOptions) (string, error)
	// GetTranscript fetches and normalizes the transcript for a session.
	GetTranscript(ctx context.Context, sessionID string) ([]transcript.Segment, error)
	// GetStatus returns the vendor's status string for a session. Used as a
	// repair path when a webhook was missed, never as the primary driver.
	GetStatus(ctx context.Context, sessionID string) (string, error)
	// HandleWebhook interprets a vendor-specific payload.
	HandleWebhook(ctx context.Context, payload []byte) (*WebhookResult, error)
	// LeaveSession tells the vendor to leave the meeting.
	LeaveSession(ctx context.Context, sessionID string) error
}

// Registry maps provider-type keys to singleton instances.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]TranscriptProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]TranscriptProvider)}
}

// Register adds a provider under a type key. Registering two providers under
// the same key is a configuration error raised at startup.
func (r *Registry) Register(providerType string, p TranscriptProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[providerType]; exists {
		return fmt.Errorf("provider %q already registered", providerType)
	}
	r.providers[providerType] = p
	return nil
}

// Get returns the provider for a type key, or a clear not-implemented error
// for unconfigured types.
func (r *Registry) Get(providerType string) (TranscriptProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", providerType, ErrNotImplemented)
	}
	return p, nil
}

// List returns registered provider type keys, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
