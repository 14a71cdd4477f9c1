package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTranscript is returned when a payload contains no usable segments.
var ErrEmptyTranscript = errors.New("transcript has no segments")

// Parse decodes a transcript payload of any supported shape into canonical
// segments. Subtitle text (WebVTT cues or bracket-timestamp dialogue) is
// detected first; everything else must be a JSON array of raw segments.
func Parse(data []byte) ([]Segment, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrEmptyTranscript
	}
	if isSubtitle(trimmed) {
		return parseSubtitle(trimmed)
	}
	var raw []RawSegment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return Preprocess(raw)
}

// Preprocess converts a raw segment sequence into canonical segments.
// Format detection inspects the first element: a words sub-sequence with no
// top-level text signals a word-level transcript that needs merging; anything
// else passes through with word counts filled in.
func Preprocess(raw []RawSegment) ([]Segment, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyTranscript
	}
	if len(raw[0].Words) > 0 && raw[0].Text == "" {
		return mergeWords(raw), nil
	}
	return passThrough(raw), nil
}

// mergeWords combines each word-level segment into one speaker turn: texts
// joined by single spaces, time range taken from the first and last word.
func mergeWords(raw []RawSegment) []Segment {
	out := make([]Segment, 0, len(raw))
	for _, r := range raw {
		if len(r.Words) == 0 {
			continue
		}
		parts := make([]string, 0, len(r.Words))
		for _, w := range r.Words {
			parts = append(parts, w.Text)
		}
		out = append(out, Segment{
			Speaker:      r.Speaker,
			Text:         strings.Join(parts, " "),
			StartSeconds: r.Words[0].StartSeconds,
			EndSeconds:   r.Words[len(r.Words)-1].EndSeconds,
			WordCount:    len(r.Words),
		})
	}
	return out
}

func passThrough(raw []RawSegment) []Segment {
	out := make([]Segment, 0, len(raw))
	for _, r := range raw {
		if r.Text == "" {
			continue
		}
		out = append(out, Segment{
			Speaker:      r.Speaker,
			Text:         r.Text,
			StartSeconds: r.StartSeconds,
			EndSeconds:   r.EndSeconds,
			WordCount:    countWords(r.Text),
		})
	}
	return out
}
