package meetings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetscribe/backend/internal/models"
)

const meetingColumns = `id, user_id, meeting_url, display_name, status, provider_type,
	COALESCE(bot_id,''), COALESCE(recording_id,''), COALESCE(transcript_id,''), COALESCE(transcript_key,''),
	COALESCE(content_type,''), settings, outputs, COALESCE(last_error,''), expires_at, created_at, updated_at, completed_at`

// Repository handles meeting record persistence. retention > 0 stamps
// completed records with an expiry so the sweep can remove them later.
type Repository struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool, retention time.Duration) *Repository {
	return &Repository{pool: pool, retention: retention}
}

// retentionExpiry computes when a record completed at the given time leaves
// retention. Zero retention keeps records indefinitely.
func retentionExpiry(completed time.Time, retention time.Duration) *time.Time {
	if retention <= 0 {
		return nil
	}
	t := completed.Add(retention)
	return &t
}

// Create inserts a new meeting record.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	if m.Status == "" {
		m.Status = models.StatusRequesting
	}
	outputs, err := marshalOutputs(m.Outputs)
	if err != nil {
		return err
	}
	settings, err := marshalSettings(m.Settings)
	if err != nil {
		return err
	}
	const q = `INSERT INTO meetings (id, user_id, meeting_url, display_name, status, provider_type, bot_id, recording_id, transcript_id, transcript_key, content_type, settings, outputs, expires_at)
		VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), $12, $13, $14)
		RETURNING id, created_at, updated_at`
	var id *uuid.UUID
	if m.ID != uuid.Nil {
		id = &m.ID
	}
	return r.pool.QueryRow(ctx, q, id, m.UserID, m.MeetingURL, m.DisplayName, m.Status, m.ProviderType,
		m.BotID, m.RecordingID, m.TranscriptID, m.TranscriptKey, m.ContentType, settings, outputs, m.ExpiresAt).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a meeting by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

// GetByBotID returns the meeting correlated to a vendor bot/session ID.
func (r *Repository) GetByBotID(ctx context.Context, botID string) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE bot_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, botID))
}

// GetByTranscriptID returns the meeting correlated to a vendor transcript ID.
func (r *Repository) GetByTranscriptID(ctx context.Context, transcriptID string) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE transcript_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, transcriptID))
}

// ListByUser returns a user's meetings, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Advance moves a record's status forward, applying only the partial fields
// relevant to the triggering event. The write is guarded by the set of
// statuses from which the target is reachable, so duplicate delivery of an
// already-applied event changes nothing and reports advanced=false.
func (r *Repository) Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (advanced bool, err error) {
	guard := models.StatusesBefore(status)
	if len(guard) == 0 {
		return false, fmt.Errorf("status %q is not advanceable", status)
	}
	const q = `UPDATE meetings SET
			status = $1,
			bot_id = COALESCE($2, bot_id),
			recording_id = COALESCE($3, recording_id),
			transcript_id = COALESCE($4, transcript_id),
			transcript_key = COALESCE($5, transcript_key),
			content_type = COALESCE($6, content_type),
			display_name = COALESCE($7, display_name),
			updated_at = NOW()
		WHERE id = $8 AND status = ANY($9)`
	tag, err := r.pool.Exec(ctx, q, status, p.BotID, p.RecordingID, p.TranscriptID, p.TranscriptKey, p.ContentType, p.DisplayName, id, guard)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCompleted records the final outputs and advances to completed. With
// retention configured the record also gets its expiry stamped, which is what
// the sweep selects on.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, outputs map[string]string) error {
	data, err := marshalOutputs(outputs)
	if err != nil {
		return err
	}
	guard := models.StatusesBefore(models.StatusCompleted)
	expires := retentionExpiry(time.Now().UTC(), r.retention)
	const q = `UPDATE meetings SET status = $1, outputs = $2, last_error = NULL, expires_at = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)`
	_, err = r.pool.Exec(ctx, q, models.StatusCompleted, data, expires, id, guard)
	return err
}

// MarkFailed moves a non-terminal record to failed with the error preserved.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	guard := models.StatusesBefore(models.StatusFailed)
	const q = `UPDATE meetings SET status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`
	_, err := r.pool.Exec(ctx, q, models.StatusFailed, errMsg, id, guard)
	return err
}

// ResetForReprocess puts a failed or completed record back into queued so
// the pipeline can run again over the same inputs. The expiry is cleared; the
// next completion re-stamps it.
func (r *Repository) ResetForReprocess(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE meetings SET status = $1, last_error = NULL, expires_at = NULL, completed_at = NULL, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, models.StatusQueued, id)
	return err
}

// Delete removes a meeting record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	return err
}

// ListExpired returns records past their expiry, for the retention sweep.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE expires_at IS NOT NULL AND expires_at <= $1 ORDER BY expires_at LIMIT $2`
	rows, err := r.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (*models.Meeting, error) {
	m, err := scanMeeting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	var settings, outputs []byte
	err := row.Scan(&m.ID, &m.UserID, &m.MeetingURL, &m.DisplayName, &m.Status, &m.ProviderType,
		&m.BotID, &m.RecordingID, &m.TranscriptID, &m.TranscriptKey,
		&m.ContentType, &settings, &outputs, &m.LastError, &m.ExpiresAt, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &m.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	if len(m.Settings) == 0 {
		m.Settings = nil
	}
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &m.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs: %w", err)
		}
	}
	return &m, nil
}

func marshalOutputs(outputs map[string]string) ([]byte, error) {
	if outputs == nil {
		outputs = map[string]string{}
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("encode outputs: %w", err)
	}
	return data, nil
}

func marshalSettings(settings map[string]any) ([]byte, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return data, nil
}
