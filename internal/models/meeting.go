package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting lifecycle statuses. The main chain is totally ordered; transitions
// only ever move forward (see StatusAdvances), so duplicate webhook delivery
// of an already-applied event is a no-op.
const (
	StatusRequesting     = "requesting"
	StatusJoining        = "joining"
	StatusInSession      = "in_session"
	StatusLeaving        = "leaving"
	StatusEnded          = "ended"
	StatusRecordingReady = "recording_ready"
	StatusTranscribing   = "transcribing"
	StatusQueued         = "queued"
	StatusProcessing     = "processing"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusCancelled      = "cancelled"
)

// statusRank orders the main lifecycle chain. Absorbing states (failed,
// cancelled) are not ranked; they are reachable from any non-terminal state.
var statusRank = map[string]int{
	StatusRequesting:     1,
	StatusJoining:        2,
	StatusInSession:      3,
	StatusLeaving:        4,
	StatusEnded:          5,
	StatusRecordingReady: 6,
	StatusTranscribing:   7,
	StatusQueued:         8,
	StatusProcessing:     9,
	StatusCompleted:      10,
}

// StatusTerminal reports whether no further transitions are allowed.
func StatusTerminal(s string) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StatusAdvances reports whether a record currently in `from` may move to
// `to`. Absorbing states are reachable from any non-terminal state; chain
// states only advance, never regress.
func StatusAdvances(from, to string) bool {
	if StatusTerminal(from) {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// StatusesBefore returns all statuses from which `to` is reachable, used as
// the guard list in advance-only UPDATEs.
func StatusesBefore(to string) []string {
	if to == StatusFailed || to == StatusCancelled {
		out := make([]string, 0, len(statusRank))
		for s := range statusRank {
			if s != StatusCompleted {
				out = append(out, s)
			}
		}
		return out
	}
	toRank, ok := statusRank[to]
	if !ok {
		return nil
	}
	var out []string
	for s, r := range statusRank {
		if r < toRank {
			out = append(out, s)
		}
	}
	return out
}

// Provider type keys.
const (
	ProviderRecall   = "recall"
	ProviderCalendar = "calendar"
	ProviderManual   = "manual"
	ProviderStub     = "stub"
)

// MeetingPatch is a partial-update write: only non-nil fields are applied,
// so a webhook event touches just the columns it carries.
type MeetingPatch struct {
	BotID         *string
	RecordingID   *string
	TranscriptID  *string
	TranscriptKey *string
	ContentType   *string
	DisplayName   *string
}

// Meeting is one bot/meeting lifecycle record: from session request through
// transcript processing to final study-guide outputs.
type Meeting struct {
	ID            uuid.UUID         `json:"id"`
	UserID        string            `json:"user_id"`
	MeetingURL    string            `json:"meeting_url"`
	DisplayName   string            `json:"display_name,omitempty"`
	Status        string            `json:"status"`
	ProviderType  string            `json:"provider_type"`
	BotID         string            `json:"bot_id,omitempty"`        // vendor session/bot correlation ID
	RecordingID   string            `json:"recording_id,omitempty"`  // vendor recording correlation ID
	TranscriptID  string            `json:"transcript_id,omitempty"` // vendor transcript correlation ID
	TranscriptKey string            `json:"transcript_key,omitempty"` // staged transcript blob key
	ContentType   string            `json:"content_type,omitempty"`
	Settings      map[string]any    `json:"settings,omitempty"` // per-request plugin setting overrides
	Outputs       map[string]string `json:"outputs,omitempty"`  // artifact name -> storage key
	LastError     string            `json:"last_error,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
