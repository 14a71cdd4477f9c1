// Package schedule manages future meeting-join requests and the polling loop
// that promotes them into live sessions.
package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetscribe/backend/internal/models"
)

const scheduledColumns = `id, user_id, meeting_url, target_time, timezone, status,
	meeting_id, COALESCE(last_error,''), created_at, updated_at`

// Repository handles scheduled-meeting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a schedule repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a scheduled request. TargetTime must already be UTC; the
// conversion happens once in the handler, never here.
func (r *Repository) Create(ctx context.Context, s *models.ScheduledMeeting) error {
	const q = `INSERT INTO scheduled_meetings (user_id, meeting_url, target_time, timezone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	if s.Status == "" {
		s.Status = models.ScheduleStatusScheduled
	}
	return r.pool.QueryRow(ctx, q, s.UserID, s.MeetingURL, s.TargetTime.UTC(), s.Timezone, s.Status).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns one scheduled request, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduledMeeting, error) {
	q := `SELECT ` + scheduledColumns + ` FROM scheduled_meetings WHERE id = $1`
	s, err := scanScheduled(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ListByUser returns a user's scheduled requests, soonest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.ScheduledMeeting, error) {
	q := `SELECT ` + scheduledColumns + ` FROM scheduled_meetings WHERE user_id = $1 ORDER BY target_time`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ScheduledMeeting
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// ListDue returns requests whose target time has arrived and are still
// scheduled.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMeeting, error) {
	q := `SELECT ` + scheduledColumns + ` FROM scheduled_meetings
		WHERE status = $1 AND target_time <= $2 ORDER BY target_time LIMIT $3`
	rows, err := r.pool.Query(ctx, q, models.ScheduleStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ScheduledMeeting
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Claim moves a scheduled request into promoting before any provider work
// happens. The status guard makes the claim exclusive: a re-observed row or a
// second scheduler instance racing on the same row loses the UPDATE. Rows
// that crash mid-promotion stay in promoting, never in completed.
func (r *Repository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE scheduled_meetings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, models.ScheduleStatusPromoting, id, models.ScheduleStatusScheduled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPromoted completes a claimed request, linking it to the meeting record
// it produced.
func (r *Repository) MarkPromoted(ctx context.Context, id, meetingID uuid.UUID) error {
	const q = `UPDATE scheduled_meetings SET status = $1, meeting_id = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.ScheduleStatusCompleted, meetingID, id)
	return err
}

// MarkFailed records a promotion failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `UPDATE scheduled_meetings SET status = $1, last_error = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.ScheduleStatusFailed, errMsg, id)
	return err
}

// Cancel marks a still-scheduled request cancelled. Terminal requests are
// immutable, so the guard keeps cancel from resurrecting them.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE scheduled_meetings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, models.ScheduleStatusCancelled, id, models.ScheduleStatusScheduled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanScheduled(row pgx.Row) (*models.ScheduledMeeting, error) {
	var s models.ScheduledMeeting
	err := row.Scan(&s.ID, &s.UserID, &s.MeetingURL, &s.TargetTime, &s.Timezone, &s.Status,
		&s.MeetingID, &s.LastError, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
