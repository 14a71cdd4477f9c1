// Package worker consumes transcript-processing jobs from the queue.
package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/pkg/queue"
)

// TokenVerifier checks a task's service-identity token.
type TokenVerifier interface {
	ValidateServiceToken(token string) error
}

// Runner executes the processing pipeline for one meeting.
type Runner interface {
	Run(ctx context.Context, meetingID uuid.UUID, transcriptKey string) error
}

// Records marks meetings failed once a job exhausts its retries.
type Records interface {
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Worker is the queue consumer loop: dequeue, verify origin, run the
// pipeline, retry on failure, dead-letter on exhaustion.
type Worker struct {
	queue    *queue.Queue
	runner   Runner
	records  Records
	verifier TokenVerifier
	logger   *zap.Logger
}

// New creates a worker.
func New(q *queue.Queue, runner Runner, records Records, verifier TokenVerifier, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: q, runner: runner, records: records, verifier: verifier, logger: logger}
}

// Run blocks consuming jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	if job.Type != queue.JobTypeTranscriptProcess {
		w.logger.Warn("dropping job of unknown type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return
	}

	var payload queue.TranscriptProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.Error("dropping job with invalid payload", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	if w.verifier != nil && payload.IdentityToken != "" {
		if err := w.verifier.ValidateServiceToken(payload.IdentityToken); err != nil {
			w.logger.Warn("dropping job with invalid identity token",
				zap.String("job_id", job.ID), zap.String("meeting_id", payload.MeetingID.String()))
			return
		}
	}

	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("meeting_id", payload.MeetingID.String()),
		zap.Int("attempt", job.Attempt))
	log.Info("processing transcript job")

	err := w.runner.Run(ctx, payload.MeetingID, payload.TranscriptKey)
	if err == nil {
		log.Info("transcript job completed")
		return
	}
	log.Error("transcript job failed", zap.Error(err))

	exhausted, retryErr := w.queue.Retry(ctx, job)
	if retryErr != nil {
		log.Error("retry scheduling failed", zap.Error(retryErr))
	}
	if exhausted {
		if markErr := w.records.MarkFailed(ctx, payload.MeetingID, err.Error()); markErr != nil {
			log.Error("mark failed after retry exhaustion", zap.Error(markErr))
		}
	}
}
