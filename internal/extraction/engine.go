package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/dedupe"
)

// StageConfig holds per-stage model settings; plugins override these.
type StageConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Config holds the three stage configurations and the per-chunk parallelism
// bound.
type Config struct {
	Chunk       StageConfig
	Consolidate StageConfig
	Actions     StageConfig
	MaxParallel int
}

// Engine turns a chunk set into an extraction result.
type Engine interface {
	Extract(ctx context.Context, set *chunker.ChunkSet) (*Result, error)
}

// LLMEngine is the three-stage extraction orchestrator: parallel per-chunk
// extraction, then consolidation over all chunk results, then action items
// over the consolidated summary. Consolidation never starts before every
// chunk call has finished.
type LLMEngine struct {
	client ChatClient
	cfg    Config
	logger *zap.Logger
}

var _ Engine = (*LLMEngine)(nil)

// NewLLMEngine creates an engine.
func NewLLMEngine(client ChatClient, cfg Config, logger *zap.Logger) *LLMEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &LLMEngine{client: client, cfg: cfg, logger: logger}
}

// Extract implements Engine.
func (e *LLMEngine) Extract(ctx context.Context, set *chunker.ChunkSet) (*Result, error) {
	if set == nil || len(set.Chunks) == 0 {
		return nil, fmt.Errorf("empty chunk set")
	}

	result := &Result{Chunks: make([]ChunkExtraction, len(set.Chunks))}

	// Stage 1: per-chunk extraction, bounded parallelism. A chunk whose call
	// or parse fails degrades to a raw-text record instead of failing the run.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)
	for i := range set.Chunks {
		i := i
		g.Go(func() error {
			result.Chunks[i] = e.extractChunk(gctx, set.Chunks[i], set.Metadata.PrimarySpeaker)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stage 2 runs strictly after all chunk extractions (the Wait above is
	// the barrier).
	consolidated, failure := e.consolidate(ctx, result.Chunks)
	if failure != nil {
		result.Failures = append(result.Failures, *failure)
	}
	result.Consolidated = consolidated

	// Stage 3: action items over the consolidated summary.
	items, failure := e.extractActions(ctx, consolidated)
	if failure != nil {
		result.Failures = append(result.Failures, *failure)
	}
	result.ActionItems = items

	return result, nil
}

func (e *LLMEngine) extractChunk(ctx context.Context, c chunker.Chunk, presenter string) ChunkExtraction {
	raw, err := e.client.Complete(ctx, ChatRequest{
		System:      chunkSystemPrompt,
		User:        buildChunkPrompt(c, presenter),
		Model:       e.cfg.Chunk.Model,
		Temperature: e.cfg.Chunk.Temperature,
		MaxTokens:   e.cfg.Chunk.MaxTokens,
	})
	if err != nil {
		e.logger.Warn("chunk extraction call failed", zap.Int("chunk", c.Index), zap.Error(err))
		return ChunkExtraction{ChunkIndex: c.Index, ParseError: err.Error()}
	}

	var out ChunkExtraction
	if err := decodeStrict(raw, &out); err != nil {
		e.logger.Warn("chunk extraction parse failed", zap.Int("chunk", c.Index), zap.Error(err))
		return ChunkExtraction{ChunkIndex: c.Index, Raw: raw, ParseError: err.Error()}
	}
	out.ChunkIndex = c.Index
	return out
}

func (e *LLMEngine) consolidate(ctx context.Context, chunks []ChunkExtraction) (Consolidated, *StageFailure) {
	ordered := make([]ChunkExtraction, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	chunksJSON, err := json.Marshal(ordered)
	if err != nil {
		return Consolidated{}, &StageFailure{Stage: "consolidate", Error: fmt.Sprintf("marshal chunk results: %v", err)}
	}

	raw, err := e.client.Complete(ctx, ChatRequest{
		System:      consolidateSystemPrompt,
		User:        buildConsolidatePrompt(ordered, string(chunksJSON)),
		Model:       e.cfg.Consolidate.Model,
		Temperature: e.cfg.Consolidate.Temperature,
		MaxTokens:   e.cfg.Consolidate.MaxTokens,
	})
	if err != nil {
		return Consolidated{}, &StageFailure{Stage: "consolidate", Error: err.Error()}
	}

	var out Consolidated
	if err := decodeStrict(raw, &out); err != nil {
		return Consolidated{}, &StageFailure{Stage: "consolidate", Error: err.Error(), Raw: raw}
	}

	// The prompt demands aggressive deduplication; enforce it regardless of
	// what the model returned.
	out.BestPractices = dedupe.Strings(out.BestPractices, dedupe.DefaultThreshold)
	out.Insights = dedupe.Strings(out.Insights, dedupe.DefaultThreshold)
	return out, nil
}

func (e *LLMEngine) extractActions(ctx context.Context, consolidated Consolidated) ([]ActionItem, *StageFailure) {
	consolidatedJSON, err := json.Marshal(consolidated)
	if err != nil {
		return nil, &StageFailure{Stage: "actions", Error: fmt.Sprintf("marshal consolidated: %v", err)}
	}

	raw, err := e.client.Complete(ctx, ChatRequest{
		System:      actionSystemPrompt,
		User:        buildActionPrompt(string(consolidatedJSON)),
		Model:       e.cfg.Actions.Model,
		Temperature: e.cfg.Actions.Temperature,
		MaxTokens:   e.cfg.Actions.MaxTokens,
	})
	if err != nil {
		return nil, &StageFailure{Stage: "actions", Error: err.Error()}
	}

	var out struct {
		ActionItems []ActionItem `json:"action_items"`
	}
	if err := decodeStrict(raw, &out); err != nil {
		return nil, &StageFailure{Stage: "actions", Error: err.Error(), Raw: raw}
	}
	return out.ActionItems, nil
}

// decodeStrict extracts the JSON object from a model response and unmarshals
// it, verifying validity before use.
func decodeStrict(raw string, v any) error {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if !json.Valid([]byte(jsonStr)) {
		return fmt.Errorf("response does not contain valid JSON")
	}
	return json.Unmarshal([]byte(jsonStr), v)
}
