// Package transcript normalizes vendor transcript payloads into the
// canonical speaker-segment sequence consumed by every downstream stage.
package transcript

import "strings"

// Segment is the canonical transcript unit: one speaker turn with its time
// range. All chunkers, extraction engines and formatters consume this shape.
type Segment struct {
	Speaker      string  `json:"speaker"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	WordCount    int     `json:"word_count"`
}

// Word is a single word token in a raw word-level transcript.
type Word struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// RawSegment is one element of a vendor transcript payload: either an
// already-combined turn (Text set) or a word-level turn (Words set).
type RawSegment struct {
	Speaker      string  `json:"speaker"`
	Text         string  `json:"text,omitempty"`
	StartSeconds float64 `json:"start_seconds,omitempty"`
	EndSeconds   float64 `json:"end_seconds,omitempty"`
	Words        []Word  `json:"words,omitempty"`
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
