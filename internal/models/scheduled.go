package models

import (
	"time"

	"github.com/google/uuid"
)

// Scheduled meeting request statuses. promoting is the transient claim state
// between picking a due request up and linking the created meeting; a crash
// mid-promotion leaves the row visibly stuck there instead of looking done.
// Terminal states are immutable; only a scheduled request may be cancelled.
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusPromoting = "promoting"
	ScheduleStatusCompleted = "completed"
	ScheduleStatusFailed    = "failed"
	ScheduleStatusCancelled = "cancelled"
)

// ScheduledMeeting is a request to join a meeting at a future time. The
// target time is converted to UTC exactly once at creation; Timezone retains
// the originating zone for display only.
type ScheduledMeeting struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"user_id"`
	MeetingURL string     `json:"meeting_url"`
	TargetTime time.Time  `json:"target_time"` // always UTC
	Timezone   string     `json:"timezone,omitempty"`
	Status     string     `json:"status"`
	MeetingID  *uuid.UUID `json:"meeting_id,omitempty"` // set once promoted
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
