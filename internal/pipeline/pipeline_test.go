package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
	"github.com/meetscribe/backend/internal/formatter"
	"github.com/meetscribe/backend/internal/models"
	"github.com/meetscribe/backend/internal/plugins"
	"github.com/meetscribe/backend/internal/transcript"
)

type fakeRecords struct {
	meeting   *models.Meeting
	advanced  []string
	completed map[string]string
}

func (f *fakeRecords) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	return f.meeting, nil
}

func (f *fakeRecords) Advance(ctx context.Context, id uuid.UUID, status string, p models.MeetingPatch) (bool, error) {
	f.advanced = append(f.advanced, status)
	return true, nil
}

func (f *fakeRecords) MarkCompleted(ctx context.Context, id uuid.UUID, outputs map[string]string) error {
	f.completed = outputs
	return nil
}

type memBlobs struct {
	objects    map[string][]byte
	failPuts   map[string]error // key substring -> error
	getMissing bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (b *memBlobs) GetBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	if b.getMissing {
		return nil, errors.New("no such key")
	}
	data, ok := b.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such key %s/%s", bucket, key)
	}
	return data, nil
}

func (b *memBlobs) PutBytes(ctx context.Context, bucket, key, contentType string, data []byte) error {
	for sub, err := range b.failPuts {
		if sub != "" && strings.Contains(key, sub) {
			return err
		}
	}
	b.objects[bucket+"/"+key] = data
	return nil
}

func (b *memBlobs) TranscriptsBucket() string { return "transcripts" }
func (b *memBlobs) OutputsBucket() string     { return "outputs" }

// stubPlugin wires trivial components so the pipeline's own sequencing is
// what the test exercises. Configure records what it was given so tests can
// check that per-request settings land on a clone, not the registered value.
type stubPlugin struct {
	extractErr error
	configured map[string]any
}

func (p *stubPlugin) Name() string                                { return plugins.ContentTypeEducational }
func (p *stubPlugin) MetadataSchema() map[string]plugins.FieldSpec { return nil }
func (p *stubPlugin) SettingsSchema() map[string]plugins.FieldSpec { return nil }

func (p *stubPlugin) Configure(settings map[string]any) error {
	for key := range settings {
		if key != "depth" {
			return fmt.Errorf("unknown setting %q", key)
		}
	}
	p.configured = settings
	return nil
}

func (p *stubPlugin) Clone() plugins.Plugin {
	c := *p
	return &c
}

func (p *stubPlugin) Chunker() chunker.Chunker       { return chunker.NewSessionChunker() }
func (p *stubPlugin) Engine() extraction.Engine      { return stubEngine{err: p.extractErr} }
func (p *stubPlugin) Formatter() formatter.Formatter { return stubFormatter{} }

type stubEngine struct{ err error }

func (e stubEngine) Extract(ctx context.Context, set *chunker.ChunkSet) (*extraction.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &extraction.Result{
		Consolidated: extraction.Consolidated{Summary: "stub summary"},
		Failures:     []extraction.StageFailure{{Stage: "actions", Error: "degraded"}},
	}, nil
}

type stubFormatter struct{}

func (stubFormatter) Format(result *extraction.Result, set *chunker.ChunkSet, metadata map[string]string) (*formatter.Documents, error) {
	return &formatter.Documents{
		Primary:   formatter.Document{Name: "study_guide.md", ContentType: "text/markdown", Data: []byte("# " + result.Consolidated.Summary)},
		Secondary: &formatter.Document{Name: "study_guide.txt", ContentType: "text/plain", Data: []byte(result.Consolidated.Summary)},
	}, nil
}

func testPipeline(t *testing.T, records *fakeRecords, blobs *memBlobs, plugin plugins.Plugin) *Pipeline {
	t.Helper()
	registry := plugins.NewRegistry(nil)
	require.NoError(t, registry.Register(plugin))
	return New(records, blobs, registry, nil)
}

func stageTranscript(t *testing.T, blobs *memBlobs, key string) {
	t.Helper()
	segs := []transcript.Segment{
		{Speaker: "Alice", Text: "welcome to the session", StartSeconds: 0, EndSeconds: 5, WordCount: 4},
		{Speaker: "Bob", Text: "thanks for having me", StartSeconds: 5, EndSeconds: 9, WordCount: 4},
	}
	data, err := json.Marshal(segs)
	require.NoError(t, err)
	blobs.objects["transcripts/"+key] = data
}

func TestRun_HappyPath(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{ID: id, Status: models.StatusQueued, ContentType: plugins.ContentTypeEducational, DisplayName: "Go 101"}}
	blobs := newMemBlobs()
	stageTranscript(t, blobs, key)

	p := testPipeline(t, records, blobs, &stubPlugin{})
	require.NoError(t, p.Run(context.Background(), id, key))

	assert.Equal(t, []string{models.StatusProcessing}, records.advanced)

	require.NotNil(t, records.completed)
	assert.Equal(t, "chunks/"+id.String()+".json", records.completed["chunks.json"])
	assert.Equal(t, "outputs/"+id.String()+"/study_guide.md", records.completed["study_guide.md"])
	assert.Equal(t, "outputs/"+id.String()+"/study_guide.txt", records.completed["study_guide.txt"])

	assert.Equal(t, []byte("# stub summary"), blobs.objects["outputs/outputs/"+id.String()+"/study_guide.md"])
	assert.Contains(t, blobs.objects, "outputs/chunks/"+id.String()+".json", "chunk audit blob written")
}

func TestRun_AppliesRecordSettingsToPluginClone(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{
		ID: id, Status: models.StatusQueued,
		ContentType: plugins.ContentTypeEducational,
		Settings:    map[string]any{"depth": "detailed"},
	}}
	blobs := newMemBlobs()
	stageTranscript(t, blobs, key)

	registered := &stubPlugin{}
	p := testPipeline(t, records, blobs, registered)
	require.NoError(t, p.Run(context.Background(), id, key))

	assert.Nil(t, registered.configured, "shared plugin must stay unconfigured")
	assert.NotNil(t, records.completed)
}

func TestRun_BadSettingsFailTheRun(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{
		ID: id, Status: models.StatusQueued,
		ContentType: plugins.ContentTypeEducational,
		Settings:    map[string]any{"verbosity": 11},
	}}
	blobs := newMemBlobs()
	stageTranscript(t, blobs, key)

	p := testPipeline(t, records, blobs, &stubPlugin{})
	err := p.Run(context.Background(), id, key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")
	assert.Nil(t, records.completed)
}

func TestRun_FallsBackToRecordedKey(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{ID: id, Status: models.StatusQueued, TranscriptKey: key}}
	blobs := newMemBlobs()
	stageTranscript(t, blobs, key)

	p := testPipeline(t, records, blobs, &stubPlugin{})
	require.NoError(t, p.Run(context.Background(), id, ""))
	assert.NotNil(t, records.completed)
}

func TestRun_NoStagedTranscript(t *testing.T) {
	id := uuid.New()
	records := &fakeRecords{meeting: &models.Meeting{ID: id, Status: models.StatusQueued}}
	p := testPipeline(t, records, newMemBlobs(), &stubPlugin{})
	err := p.Run(context.Background(), id, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no staged transcript")
}

func TestRun_ExtractionErrorPropagates(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{ID: id, Status: models.StatusQueued}}
	blobs := newMemBlobs()
	stageTranscript(t, blobs, key)

	p := testPipeline(t, records, blobs, &stubPlugin{extractErr: errors.New("upstream model unavailable")})
	err := p.Run(context.Background(), id, key)
	require.Error(t, err)
	assert.Nil(t, records.completed, "failed runs never mark completed")
}

func TestRun_ChunkAuditFailureIsNonFatal(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{ID: id, Status: models.StatusQueued}}
	blobs := newMemBlobs()
	blobs.failPuts = map[string]error{"chunks/": errors.New("slow disk")}
	stageTranscript(t, blobs, key)

	p := testPipeline(t, records, blobs, &stubPlugin{})
	require.NoError(t, p.Run(context.Background(), id, key))
	assert.NotContains(t, records.completed, "chunks.json")
	assert.Contains(t, records.completed, "study_guide.md")
}

func TestRun_SecondaryWriteFailureIsNonFatal(t *testing.T) {
	id := uuid.New()
	key := "transcripts/" + id.String() + ".json"
	records := &fakeRecords{meeting: &models.Meeting{ID: id, Status: models.StatusQueued}}
	blobs := newMemBlobs()
	blobs.failPuts = map[string]error{"study_guide.txt": errors.New("quota")}
	stageTranscript(t, blobs, key)

	p := testPipeline(t, records, blobs, &stubPlugin{})
	require.NoError(t, p.Run(context.Background(), id, key))
	assert.Contains(t, records.completed, "study_guide.md")
	assert.NotContains(t, records.completed, "study_guide.txt")
}
