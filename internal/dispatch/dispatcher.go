// Package dispatch hands transcript-processing work to the task queue, with
// a synchronous fallback so queue outages degrade to slow requests instead
// of lost work.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/transcript"
	"github.com/meetscribe/backend/pkg/queue"
	"github.com/meetscribe/backend/pkg/storage"
)

// Enqueuer pushes a processing task onto the queue.
type Enqueuer interface {
	EnqueueTranscriptProcess(ctx context.Context, payload queue.TranscriptProcessPayload) error
}

// Runner executes the processing pipeline for one meeting.
type Runner interface {
	Run(ctx context.Context, meetingID uuid.UUID, transcriptKey string) error
}

// Records is the slice of the meeting repository the dispatcher needs.
type Records interface {
	Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// TokenMinter signs service-identity tokens attached to queue tasks.
type TokenMinter interface {
	GenerateServiceToken() (string, error)
}

// Blobs is the slice of blob storage the dispatcher needs for staging.
type Blobs interface {
	PutBytes(ctx context.Context, bucket, key, contentType string, data []byte) error
	TranscriptsBucket() string
}

// Dispatcher stages the transcript in blob storage (queue payloads carry
// only small correlation IDs) and enqueues a processing task; when enqueue
// fails it runs the pipeline inline under a bounded timeout.
type Dispatcher struct {
	records     Records
	blobs       Blobs
	queue       Enqueuer
	runner      Runner
	tokens      TokenMinter
	callbackURL string
	syncTimeout time.Duration
	logger      *zap.Logger
}

// New creates a dispatcher. syncTimeout bounds the synchronous fallback so a
// queue outage cannot hang the webhook caller indefinitely.
func New(records Records, blobs Blobs, q Enqueuer, runner Runner, tokens TokenMinter, callbackURL string, syncTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if syncTimeout <= 0 {
		syncTimeout = 2 * time.Minute
	}
	return &Dispatcher{
		records:     records,
		blobs:       blobs,
		queue:       q,
		runner:      runner,
		tokens:      tokens,
		callbackURL: callbackURL,
		syncTimeout: syncTimeout,
		logger:      logger,
	}
}

// Dispatch stages segments and queues processing for the meeting. Safe to
// call again for the same meeting: staging overwrites the same key and the
// pipeline is idempotent.
func (d *Dispatcher) Dispatch(ctx context.Context, meetingID uuid.UUID, segments []transcript.Segment) error {
	key, err := d.Stage(ctx, meetingID, segments)
	if err != nil {
		return err
	}
	return d.DispatchStaged(ctx, meetingID, key)
}

// Stage writes the normalized transcript to blob storage and records the
// staging key on the meeting.
func (d *Dispatcher) Stage(ctx context.Context, meetingID uuid.UUID, segments []transcript.Segment) (string, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}
	key := storage.TranscriptKey(meetingID.String())
	if err := d.blobs.PutBytes(ctx, d.blobs.TranscriptsBucket(), key, "application/json", data); err != nil {
		return "", fmt.Errorf("stage transcript: %w", err)
	}
	return key, nil
}

// DispatchStaged queues processing for an already-staged transcript.
func (d *Dispatcher) DispatchStaged(ctx context.Context, meetingID uuid.UUID, transcriptKey string) error {
	if _, err := d.records.Advance(ctx, meetingID, models.StatusQueued, models.MeetingPatch{TranscriptKey: &transcriptKey}); err != nil {
		return fmt.Errorf("advance to queued: %w", err)
	}

	token, err := d.tokens.GenerateServiceToken()
	if err != nil {
		// Without a token the worker cannot verify origin; treat as a
		// configuration error rather than enqueueing unverifiable work.
		return fmt.Errorf("mint service token: %w", err)
	}

	payload := queue.TranscriptProcessPayload{
		MeetingID:     meetingID,
		TranscriptKey: transcriptKey,
		CallbackURL:   d.callbackURL,
		IdentityToken: token,
	}
	enqueueErr := d.queue.EnqueueTranscriptProcess(ctx, payload)
	if enqueueErr == nil {
		return nil
	}
	d.logger.Warn("enqueue failed, falling back to synchronous processing",
		zap.String("meeting_id", meetingID.String()), zap.Error(enqueueErr))

	// Fallback: run inline, bounded, so the record never sticks in queued
	// when the queue is down.
	syncCtx, cancel := context.WithTimeout(ctx, d.syncTimeout)
	defer cancel()
	if err := d.runner.Run(syncCtx, meetingID, transcriptKey); err != nil {
		if markErr := d.records.MarkFailed(ctx, meetingID, err.Error()); markErr != nil {
			d.logger.Error("mark failed after sync fallback", zap.Error(markErr), zap.String("meeting_id", meetingID.String()))
		}
		return fmt.Errorf("synchronous processing: %w", err)
	}
	return nil
}
