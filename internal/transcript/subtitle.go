package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Two raw text formats are supported besides JSON: WebVTT cues with
// fractional-second start/end pairs, and bracket-timestamp dialogue lines
// ("[00:01:23] Alice: ..."). Both reduce to the same canonical segments with
// consecutive same-speaker lines merged.

var (
	cueTimeRe = regexp.MustCompile(`^(\d{1,2}:)?\d{2}:\d{2}\.\d{3}\s+-->\s+(\d{1,2}:)?\d{2}:\d{2}\.\d{3}`)
	voiceRe   = regexp.MustCompile(`^<v\s+([^>]+)>\s*(.*)$`)
	bracketRe = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})?)\]\s*([^:]+):\s*(.+)$`)
	sentEndRe = regexp.MustCompile(`[.!?]+`)
)

// secondsPerSentence is the duration estimate used when a dialogue format
// carries no end timestamps.
const secondsPerSentence = 4.0

// firstLines returns up to n leading lines, for cheap format sniffing.
func firstLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

func isSubtitle(s string) bool {
	if strings.HasPrefix(s, "WEBVTT") {
		return true
	}
	for _, line := range firstLines(s, 5) {
		if bracketRe.MatchString(line) {
			return true
		}
	}
	return false
}

func parseSubtitle(s string) ([]Segment, error) {
	var segs []Segment
	var err error
	if strings.HasPrefix(s, "WEBVTT") {
		segs, err = parseVTT(s)
	} else {
		segs, err = parseBracketDialogue(s)
	}
	if err != nil {
		return nil, err
	}
	segs = mergeSameSpeaker(segs)
	if len(segs) == 0 {
		return nil, ErrEmptyTranscript
	}
	return segs, nil
}

// parseVTT reads cue blocks: a timing line followed by one or more text
// lines. Speakers come from <v Name> tags or a leading "Name: " prefix.
func parseVTT(s string) ([]Segment, error) {
	var out []Segment
	lines := strings.Split(s, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !cueTimeRe.MatchString(line) {
			i++
			continue
		}
		parts := strings.SplitN(line, "-->", 2)
		start, err := parseClock(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("cue start: %w", err)
		}
		end, err := parseClock(strings.Fields(strings.TrimSpace(parts[1]))[0])
		if err != nil {
			return nil, fmt.Errorf("cue end: %w", err)
		}
		i++
		speaker := ""
		var text []string
		for i < len(lines) {
			t := strings.TrimSpace(lines[i])
			if t == "" {
				break
			}
			if m := voiceRe.FindStringSubmatch(t); m != nil {
				speaker = strings.TrimSpace(m[1])
				t = strings.TrimSpace(m[2])
			} else if speaker == "" {
				if name, rest, ok := splitSpeakerPrefix(t); ok {
					speaker = name
					t = rest
				}
			}
			if t != "" {
				text = append(text, t)
			}
			i++
		}
		joined := strings.Join(text, " ")
		if joined == "" {
			continue
		}
		out = append(out, Segment{
			Speaker:      speaker,
			Text:         joined,
			StartSeconds: start,
			EndSeconds:   end,
			WordCount:    countWords(joined),
		})
	}
	return out, nil
}

// parseBracketDialogue reads "[HH:MM:SS] Speaker: text" lines. End times are
// absent in this format and get estimated from sentence count, capped at the
// next line's start.
func parseBracketDialogue(s string) ([]Segment, error) {
	var out []Segment
	for _, line := range strings.Split(s, "\n") {
		m := bracketRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		start, err := parseClock(m[1])
		if err != nil {
			return nil, fmt.Errorf("dialogue timestamp: %w", err)
		}
		text := strings.TrimSpace(m[3])
		out = append(out, Segment{
			Speaker:      strings.TrimSpace(m[2]),
			Text:         text,
			StartSeconds: start,
			WordCount:    countWords(text),
		})
	}
	for i := range out {
		est := out[i].StartSeconds + estimateDuration(out[i].Text)
		if i+1 < len(out) && est > out[i+1].StartSeconds {
			est = out[i+1].StartSeconds
		}
		out[i].EndSeconds = est
	}
	return out, nil
}

func estimateDuration(text string) float64 {
	n := len(sentEndRe.FindAllString(text, -1))
	if n == 0 {
		n = 1
	}
	return float64(n) * secondsPerSentence
}

// mergeSameSpeaker joins consecutive segments from the same speaker into one
// turn spanning both time ranges.
func mergeSameSpeaker(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if n := len(out); n > 0 && out[n-1].Speaker == s.Speaker {
			prev := &out[n-1]
			prev.Text += " " + s.Text
			prev.EndSeconds = s.EndSeconds
			prev.WordCount = countWords(prev.Text)
			continue
		}
		out = append(out, s)
	}
	return out
}

// parseClock parses "HH:MM:SS.mmm", "MM:SS.mmm", "HH:MM:SS" or "MM:SS" into
// seconds.
func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid clock value %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

func splitSpeakerPrefix(s string) (name, rest string, ok bool) {
	idx := strings.Index(s, ": ")
	if idx <= 0 || idx > 40 {
		return "", "", false
	}
	name = strings.TrimSpace(s[:idx])
	if name == "" || strings.ContainsAny(name, ".!?") {
		return "", "", false
	}
	return name, strings.TrimSpace(s[idx+2:]), true
}
