package chunker

import "github.com/meetscribe/backend/internal/transcript"

// SessionChunker produces a single chunk spanning the whole transcript, for
// content types where cross-chunk context must not be lost.
type SessionChunker struct{}

// NewSessionChunker creates a whole-session chunker.
func NewSessionChunker() *SessionChunker {
	return &SessionChunker{}
}

// Chunk implements Chunker.
func (s *SessionChunker) Chunk(segments []transcript.Segment) (*ChunkSet, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	start, end := span(segments)
	presenter := primarySpeaker(segments)
	c := Chunk{Index: 0, StartSeconds: start, EndSeconds: end, Segments: segments}
	summarize(&c)
	return &ChunkSet{
		Metadata: Metadata{
			ChunkCount:           1,
			TotalDurationSeconds: end - start,
			PrimarySpeaker:       presenter,
			Context:              map[string]string{"presenter": presenter},
		},
		Chunks: []Chunk{c},
	}, nil
}
