// Package chunker splits canonical transcripts into bounded analysis units
// for per-chunk extraction.
package chunker

import (
	"sort"

	"github.com/meetscribe/backend/internal/transcript"
)

// Chunk is one analysis unit: a time range, the speaker segments that
// overlap it, and summary counters used by extraction prompts.
type Chunk struct {
	Index          int                         `json:"index"`
	StartSeconds   float64                     `json:"start_seconds"`
	EndSeconds     float64                     `json:"end_seconds"`
	Segments       []transcript.Segment        `json:"segments"`
	TotalWords     int                         `json:"total_words"`
	SpeakerWords   map[string]int              `json:"speaker_words"`
	Speakers       []string                    `json:"speakers"`
	HasInteraction bool                        `json:"has_interaction"`
}

// Metadata summarizes a chunk set.
type Metadata struct {
	ChunkCount           int               `json:"chunk_count"`
	TotalDurationSeconds float64           `json:"total_duration_seconds"`
	PrimarySpeaker       string            `json:"primary_speaker,omitempty"`
	Context              map[string]string `json:"context,omitempty"`
}

// ChunkSet is the ordered chunk sequence plus its metadata. Chunks are
// contiguous and cover the transcript span exactly once; a segment spanning
// a boundary appears in every chunk it overlaps.
type ChunkSet struct {
	Metadata Metadata `json:"metadata"`
	Chunks   []Chunk  `json:"chunks"`
}

// Chunker partitions canonical segments into a chunk set.
type Chunker interface {
	Chunk(segments []transcript.Segment) (*ChunkSet, error)
}

// primarySpeaker returns the speaker with the highest aggregate word count
// across the whole transcript. Ties break alphabetically so the result is
// deterministic.
func primarySpeaker(segments []transcript.Segment) string {
	totals := make(map[string]int)
	for _, s := range segments {
		totals[s.Speaker] += s.WordCount
	}
	best := ""
	bestCount := -1
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if totals[name] > bestCount {
			best = name
			bestCount = totals[name]
		}
	}
	return best
}

func summarize(c *Chunk) {
	c.SpeakerWords = make(map[string]int)
	for _, s := range c.Segments {
		c.TotalWords += s.WordCount
		c.SpeakerWords[s.Speaker] += s.WordCount
	}
	c.Speakers = make([]string, 0, len(c.SpeakerWords))
	for name := range c.SpeakerWords {
		c.Speakers = append(c.Speakers, name)
	}
	sort.Strings(c.Speakers)
	c.HasInteraction = len(c.Speakers) > 1
}

func span(segments []transcript.Segment) (start, end float64) {
	if len(segments) == 0 {
		return 0, 0
	}
	start = segments[0].StartSeconds
	end = segments[0].EndSeconds
	for _, s := range segments[1:] {
		if s.StartSeconds < start {
			start = s.StartSeconds
		}
		if s.EndSeconds > end {
			end = s.EndSeconds
		}
	}
	return start, end
}
