// Package pipeline runs the transcript-processing flow for one meeting:
// staged transcript in, study-guide artifacts out.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/plugins"
	"github.com/meetscribe/backend/internal/transcript"
	"github.com/meetscribe/backend/pkg/storage"
)

// Records is the slice of the meeting repository the pipeline needs.
type Records interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, outputs map[string]string) error
}

// Blobs is the slice of blob storage the pipeline needs.
type Blobs interface {
	GetBytes(ctx context.Context, bucket, key string) ([]byte, error)
	PutBytes(ctx context.Context, bucket, key, contentType string, data []byte) error
	TranscriptsBucket() string
	OutputsBucket() string
}

// Pipeline executes preprocessing, chunking, extraction and formatting, then
// persists the resulting artifacts. A run is idempotent: re-running the same
// meeting rewrites the same keys and converges on the same final state.
type Pipeline struct {
	records  Records
	blobs    Blobs
	registry *plugins.Registry
	logger   *zap.Logger
}

// New creates a pipeline.
func New(records Records, blobs Blobs, registry *plugins.Registry, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{records: records, blobs: blobs, registry: registry, logger: logger}
}

// Run processes one staged transcript to completion. Errors are returned to
// the caller, which owns the failed-state transition and retry policy.
func (p *Pipeline) Run(ctx context.Context, meetingID uuid.UUID, transcriptKey string) error {
	m, err := p.records.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if m == nil {
		return fmt.Errorf("meeting %s not found", meetingID)
	}
	if transcriptKey == "" {
		transcriptKey = m.TranscriptKey
	}
	if transcriptKey == "" {
		return fmt.Errorf("meeting %s has no staged transcript", meetingID)
	}

	if _, err := p.records.Advance(ctx, meetingID, models.StatusProcessing, models.MeetingPatch{}); err != nil {
		return fmt.Errorf("advance to processing: %w", err)
	}

	data, err := p.blobs.GetBytes(ctx, p.blobs.TranscriptsBucket(), transcriptKey)
	if err != nil {
		return fmt.Errorf("load staged transcript: %w", err)
	}
	segments, err := transcript.Parse(data)
	if err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	metadata := buildMetadata(m)
	plugin, err := p.registry.ResolveConfigured(m.ContentType, metadata, m.Settings)
	if err != nil {
		return fmt.Errorf("resolve plugin: %w", err)
	}
	p.logger.Info("pipeline run started",
		zap.String("meeting_id", meetingID.String()),
		zap.String("plugin", plugin.Name()),
		zap.Int("segments", len(segments)))

	set, err := plugin.Chunker().Chunk(segments)
	if err != nil {
		return fmt.Errorf("chunk transcript: %w", err)
	}

	outputs := make(map[string]string)

	// Chunk-set audit blob, written before extraction so a failed run still
	// leaves the chunking evidence behind.
	chunkKey := storage.ChunkSetKey(meetingID.String())
	if audit, err := json.Marshal(set); err == nil {
		if err := p.blobs.PutBytes(ctx, p.blobs.OutputsBucket(), chunkKey, "application/json", audit); err != nil {
			p.logger.Warn("chunk audit write failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		} else {
			outputs["chunks.json"] = chunkKey
		}
	}

	result, err := plugin.Engine().Extract(ctx, set)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	for _, f := range result.Failures {
		p.logger.Warn("extraction stage degraded",
			zap.String("meeting_id", meetingID.String()),
			zap.String("stage", f.Stage), zap.String("error", f.Error))
	}

	docs, err := plugin.Formatter().Format(result, set, metadata)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	primaryKey := storage.OutputKey(meetingID.String(), docs.Primary.Name)
	if err := p.blobs.PutBytes(ctx, p.blobs.OutputsBucket(), primaryKey, docs.Primary.ContentType, docs.Primary.Data); err != nil {
		return fmt.Errorf("persist primary document: %w", err)
	}
	outputs[docs.Primary.Name] = primaryKey

	if docs.Secondary != nil {
		secondaryKey := storage.OutputKey(meetingID.String(), docs.Secondary.Name)
		if err := p.blobs.PutBytes(ctx, p.blobs.OutputsBucket(), secondaryKey, docs.Secondary.ContentType, docs.Secondary.Data); err != nil {
			// Secondary rendering is best effort and never rolls back the
			// primary document.
			p.logger.Warn("secondary document write failed",
				zap.String("meeting_id", meetingID.String()), zap.Error(err))
		} else {
			outputs[docs.Secondary.Name] = secondaryKey
		}
	}

	if err := p.records.MarkCompleted(ctx, meetingID, outputs); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.logger.Info("pipeline run completed",
		zap.String("meeting_id", meetingID.String()),
		zap.Int("chunks", set.Metadata.ChunkCount),
		zap.Int("outputs", len(outputs)))
	return nil
}

// buildMetadata exposes record fields the formatter and plugin resolution
// care about.
func buildMetadata(m *models.Meeting) map[string]string {
	md := make(map[string]string)
	if m.DisplayName != "" {
		md["session_title"] = m.DisplayName
	}
	if m.MeetingURL != "" {
		md["meeting_url"] = m.MeetingURL
	}
	return md
}
