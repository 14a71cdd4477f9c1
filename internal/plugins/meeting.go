package plugins

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
	"github.com/meetscribe/backend/internal/formatter"
)

// MeetingPlugin processes general working meetings. It uses the
// whole-session chunker so decisions and their context stay in one unit.
type MeetingPlugin struct {
	chunker   chunker.Chunker
	engine    extraction.Engine
	formatter formatter.Formatter
}

var _ Plugin = (*MeetingPlugin)(nil)

// NewMeetingPlugin creates the meeting content-type plugin.
func NewMeetingPlugin(client extraction.ChatClient, engineCfg extraction.Config, logger *zap.Logger) *MeetingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingPlugin{
		chunker:   chunker.NewSessionChunker(),
		engine:    extraction.NewLLMEngine(client, engineCfg, logger),
		formatter: formatter.NewMarkdownFormatter(logger),
	}
}

func (p *MeetingPlugin) Name() string { return ContentTypeMeeting }

// Clone returns a copy safe to Configure per request.
func (p *MeetingPlugin) Clone() Plugin {
	c := *p
	return &c
}

func (p *MeetingPlugin) MetadataSchema() map[string]FieldSpec {
	return map[string]FieldSpec{
		"title":     {Type: "string", Description: "meeting title"},
		"organizer": {Type: "string", Description: "meeting organizer"},
	}
}

func (p *MeetingPlugin) SettingsSchema() map[string]FieldSpec {
	return map[string]FieldSpec{}
}

// Configure rejects all settings; the meeting plugin has none.
func (p *MeetingPlugin) Configure(settings map[string]any) error {
	for key := range settings {
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func (p *MeetingPlugin) Chunker() chunker.Chunker       { return p.chunker }
func (p *MeetingPlugin) Engine() extraction.Engine      { return p.engine }
func (p *MeetingPlugin) Formatter() formatter.Formatter { return p.formatter }
