package plugins

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
	"github.com/meetscribe/backend/internal/formatter"
)

// EducationalPlugin processes class/lecture recordings: time-windowed chunks,
// three-stage extraction, markdown study guide.
type EducationalPlugin struct {
	chunker   chunker.Chunker
	engine    extraction.Engine
	formatter formatter.Formatter
	window    time.Duration
	client    extraction.ChatClient
	engineCfg extraction.Config
	logger    *zap.Logger
}

var _ Plugin = (*EducationalPlugin)(nil)

// NewEducationalPlugin creates the educational content-type plugin.
func NewEducationalPlugin(client extraction.ChatClient, engineCfg extraction.Config, window time.Duration, logger *zap.Logger) *EducationalPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EducationalPlugin{
		chunker:   chunker.NewWindowChunker(window),
		engine:    extraction.NewLLMEngine(client, engineCfg, logger),
		formatter: formatter.NewMarkdownFormatter(logger),
		window:    window,
		client:    client,
		engineCfg: engineCfg,
		logger:    logger,
	}
}

func (p *EducationalPlugin) Name() string { return ContentTypeEducational }

// Clone returns a copy safe to Configure per request; the component fields
// are replaced wholesale by Configure, never mutated through.
func (p *EducationalPlugin) Clone() Plugin {
	c := *p
	return &c
}

func (p *EducationalPlugin) MetadataSchema() map[string]FieldSpec {
	return map[string]FieldSpec{
		"title":      {Type: "string", Description: "session title"},
		"instructor": {Type: "string", Description: "instructor name"},
		"course":     {Type: "string", Description: "course name"},
	}
}

func (p *EducationalPlugin) SettingsSchema() map[string]FieldSpec {
	return map[string]FieldSpec{
		"chunk_window_minutes": {Type: "int", Default: 10, Overridable: true, Description: "chunk window size"},
		"model":                {Type: "string", Default: p.engineCfg.Chunk.Model, Overridable: true, Description: "extraction model"},
		"temperature":          {Type: "float", Default: p.engineCfg.Chunk.Temperature, Overridable: false, Description: "sampling temperature"},
	}
}

// Configure applies per-request settings overrides.
func (p *EducationalPlugin) Configure(settings map[string]any) error {
	schema := p.SettingsSchema()
	for key, value := range settings {
		spec, ok := schema[key]
		if !ok {
			return fmt.Errorf("unknown setting %q", key)
		}
		if !spec.Overridable {
			return fmt.Errorf("setting %q is not overridable", key)
		}
		switch key {
		case "chunk_window_minutes":
			mins, ok := asInt(value)
			if !ok || mins <= 0 {
				return fmt.Errorf("setting %q must be a positive integer", key)
			}
			p.window = time.Duration(mins) * time.Minute
			p.chunker = chunker.NewWindowChunker(p.window)
		case "model":
			model, ok := value.(string)
			if !ok || model == "" {
				return fmt.Errorf("setting %q must be a non-empty string", key)
			}
			cfg := p.engineCfg
			cfg.Chunk.Model = model
			cfg.Consolidate.Model = model
			cfg.Actions.Model = model
			p.engineCfg = cfg
			p.engine = extraction.NewLLMEngine(p.client, cfg, p.logger)
		}
	}
	return nil
}

func (p *EducationalPlugin) Chunker() chunker.Chunker       { return p.chunker }
func (p *EducationalPlugin) Engine() extraction.Engine      { return p.engine }
func (p *EducationalPlugin) Formatter() formatter.Formatter { return p.formatter }

// asInt tolerates JSON numbers arriving as float64.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
