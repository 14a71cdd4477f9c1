// Package webhooks ingests vendor event payloads, translates them into a
// canonical taxonomy and applies the matching lifecycle transition.
package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Canonical event types. Every vendor payload maps onto one of these or is
// dropped.
const (
	EventSessionJoining   = "session_joining"
	EventSessionEnded     = "session_ended"
	EventRecordingReady   = "recording_ready"
	EventTranscriptReady  = "transcript_ready"
	EventTranscriptFailed = "transcript_failed"
)

// Vendor discriminators.
const (
	VendorBot      = "bot"
	VendorCalendar = "calendar"
)

// ErrUnknownEvent marks a payload that maps to no canonical event. Callers
// log and drop it; redelivery would not help, so it is not an error response.
var ErrUnknownEvent = errors.New("unknown webhook event")

// Event is a vendor payload translated into the canonical taxonomy. Calendar
// push envelopes are only detected here; resolving their transcript reference
// needs the provider's credentials, so the handler finishes that step.
type Event struct {
	Vendor       string
	Type         string
	SessionID    string
	RecordingID  string
	TranscriptID string
	ErrorMessage string
}

// probe covers the discriminating fields of both vendors' payloads.
type probe struct {
	Event string `json:"event"`
	Data  struct {
		BotID        string `json:"bot_id"`
		RecordingID  string `json:"recording_id"`
		TranscriptID string `json:"transcript_id"`
		Error        string `json:"error"`
		Status       struct {
			Code string `json:"code"`
		} `json:"status"`
	} `json:"data"`
	// Calendar push envelope shape.
	Message      json.RawMessage `json:"message"`
	Subscription string          `json:"subscription"`
}

// Normalize detects the vendor by event-name prefix or envelope shape and
// translates the payload. Unknown event types return ErrUnknownEvent.
func Normalize(payload []byte) (*Event, error) {
	var pr probe
	if err := json.Unmarshal(payload, &pr); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	if len(pr.Message) > 0 && pr.Subscription != "" {
		// Signed push envelope: always a transcript-ready notification, the
		// reference inside is resolved by the calendar provider.
		return &Event{Vendor: VendorCalendar, Type: EventTranscriptReady}, nil
	}

	if pr.Event == "" {
		return nil, ErrUnknownEvent
	}

	ev := &Event{
		Vendor:       VendorBot,
		SessionID:    pr.Data.BotID,
		RecordingID:  pr.Data.RecordingID,
		TranscriptID: pr.Data.TranscriptID,
		ErrorMessage: pr.Data.Error,
	}

	switch {
	case pr.Event == "bot.status_change":
		t, ok := botStatusEvent(pr.Data.Status.Code)
		if !ok {
			return nil, fmt.Errorf("status code %q: %w", pr.Data.Status.Code, ErrUnknownEvent)
		}
		ev.Type = t
	case pr.Event == "recording.done":
		ev.Type = EventRecordingReady
	case pr.Event == "transcript.done":
		ev.Type = EventTranscriptReady
	case pr.Event == "transcript.failed":
		ev.Type = EventTranscriptFailed
	case strings.HasPrefix(pr.Event, "bot.") || strings.HasPrefix(pr.Event, "recording.") || strings.HasPrefix(pr.Event, "transcript."):
		// Known vendor, event type we do not act on.
		return nil, fmt.Errorf("event %q: %w", pr.Event, ErrUnknownEvent)
	default:
		return nil, fmt.Errorf("event %q: %w", pr.Event, ErrUnknownEvent)
	}

	if ev.SessionID == "" && ev.TranscriptID == "" {
		return nil, fmt.Errorf("event %q has no correlation id", pr.Event)
	}
	return ev, nil
}

// botStatusEvent maps bot lifecycle status codes onto canonical events.
func botStatusEvent(code string) (string, bool) {
	switch code {
	case "ready", "joining_call", "in_waiting_room", "in_call_not_recording", "in_call_recording":
		return EventSessionJoining, true
	case "call_ended", "done":
		return EventSessionEnded, true
	case "recording_done":
		return EventRecordingReady, true
	case "fatal", "error":
		return EventTranscriptFailed, true
	default:
		return "", false
	}
}
