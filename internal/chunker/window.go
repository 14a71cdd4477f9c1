package chunker

import (
	"errors"
	"math"
	"time"

	"github.com/meetscribe/backend/internal/transcript"
)

// DefaultWindow is the default chunk window size.
const DefaultWindow = 10 * time.Minute

// ErrNoSegments is returned when there is nothing to chunk.
var ErrNoSegments = errors.New("no segments to chunk")

// WindowChunker partitions the meeting time span into fixed-size windows.
// Membership is overlap-based: a segment spanning a window boundary appears
// in both neighbouring chunks.
type WindowChunker struct {
	Window time.Duration
}

// NewWindowChunker creates a time-window chunker; window <= 0 uses the default.
func NewWindowChunker(window time.Duration) *WindowChunker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &WindowChunker{Window: window}
}

// Chunk implements Chunker.
func (w *WindowChunker) Chunk(segments []transcript.Segment) (*ChunkSet, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	start, end := span(segments)
	window := w.Window.Seconds()
	total := end - start
	count := int(math.Ceil(total / window))
	if count < 1 {
		count = 1
	}

	presenter := primarySpeaker(segments)
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		winStart := start + float64(i)*window
		winEnd := winStart + window
		if winEnd > end {
			winEnd = end
		}
		last := i == count-1
		c := Chunk{Index: i, StartSeconds: winStart, EndSeconds: winEnd}
		for _, s := range segments {
			if overlaps(s, winStart, winEnd, last) {
				c.Segments = append(c.Segments, s)
			}
		}
		summarize(&c)
		chunks = append(chunks, c)
	}

	return &ChunkSet{
		Metadata: Metadata{
			ChunkCount:           count,
			TotalDurationSeconds: total,
			PrimarySpeaker:       presenter,
			Context:              map[string]string{"presenter": presenter},
		},
		Chunks: chunks,
	}, nil
}

func overlaps(s transcript.Segment, winStart, winEnd float64, lastWindow bool) bool {
	if s.EndSeconds <= s.StartSeconds {
		// Zero-length segment: assign by start point so it lands in exactly
		// one window (the final one if it sits on the transcript end).
		if lastWindow {
			return s.StartSeconds >= winStart && s.StartSeconds <= winEnd
		}
		return s.StartSeconds >= winStart && s.StartSeconds < winEnd
	}
	return s.StartSeconds < winEnd && s.EndSeconds > winStart
}
